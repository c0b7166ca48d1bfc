package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scenario is one scripted end-to-end exercise: it builds its own sandbox
// state, invokes an operation, and asserts the outcome. Run returns a
// descriptive error naming the failed assertion with actual vs expected
// content.
type Scenario struct {
	Name string
	Run  func(sb *Sandbox) error
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Runner executes scenarios, each in its own sandbox.
type Runner struct {
	logger   *slog.Logger
	parallel int
}

// NewRunner creates a Runner. parallel bounds concurrent scenarios; values
// below 1 mean sequential execution.
func NewRunner(logger *slog.Logger, parallel int) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{logger: logger, parallel: parallel}
}

// Run executes every scenario and returns outcomes in scenario order. A
// failing scenario never stops the others; sandbox cleanup is guaranteed
// on every exit path, including panics inside a scenario.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Outcome {
	outcomes := make([]Outcome, len(scenarios))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			outcomes[i] = r.runOne(sc)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Runner) runOne(sc Scenario) (out Outcome) {
	out.Name = sc.Name
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("scenario panicked: %v", rec)
		}
		if r.logger != nil {
			if out.Err != nil {
				r.logger.Error("scenario failed",
					slog.String("scenario", sc.Name),
					slog.String("error", out.Err.Error()))
			} else {
				r.logger.Debug("scenario passed",
					slog.String("scenario", sc.Name),
					slog.Duration("duration", out.Duration))
			}
		}
	}()

	sb, err := newSandbox()
	if err != nil {
		out.Err = err
		return out
	}
	defer sb.Cleanup()

	out.Err = sc.Run(sb)
	return out
}

// Failed counts the outcomes carrying an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

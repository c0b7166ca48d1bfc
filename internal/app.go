// Package internal provides the main application initialization and the
// per-command runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/merge"
	"github.com/starford/ansuz/internal/simulate"
	"github.com/starford/ansuz/internal/snapshot"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/watch"
)

// App holds the wired components behind the CLI commands.
type App struct {
	config    *Config
	logger    *slog.Logger
	standards storage.Provider
	snapshots *snapshot.Manager
}

// New builds the application from options. A config is required.
func New(opts ...Option) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)

	standards, err := storage.NewFS(app.config.Standards.Path)
	if err != nil {
		return nil, fmt.Errorf("open standards tree: %w", err)
	}
	app.standards = standards
	app.snapshots = snapshot.NewManager(standards, app.config.Snapshots.Path, app.logger)

	app.logger.Debug("configuration loaded",
		slog.String("standards_path", standards.Root()),
		slog.String("snapshots_path", app.config.Snapshots.Path),
		slog.String("log_level", app.config.App.LogLevel.String()))
	return app, nil
}

// RunValidate builds the navigation graph and certifies it. In strict mode
// the first violation ends the run; otherwise every violation is printed.
// With watchMode the validation re-runs whenever the tree changes, until
// interrupted.
func (a *App) RunValidate(ctx context.Context, strict, watchMode bool) error {
	runOnce := func() (int, error) {
		g, err := graph.NewBuilder(a.standards,
			a.config.Standards.ContentRoots,
			a.config.Standards.IndexFiles,
			a.logger).Build()
		if err != nil {
			return 0, err
		}
		mode := graph.ModeReportAll
		if strict {
			mode = graph.ModeStrict
		}
		violations := g.Validate(mode)
		for _, v := range violations {
			fmt.Fprintln(os.Stdout, v.Error())
		}
		return len(violations), nil
	}

	count, err := runOnce()
	if err != nil {
		return err
	}

	if !watchMode {
		if count > 0 {
			return fmt.Errorf("%d violation(s)", count)
		}
		fmt.Fprintln(os.Stdout, "ok: navigation graph is complete and every link resolves")
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var roots []string
	for _, r := range a.config.Standards.ContentRoots {
		roots = append(roots, filepath.Join(a.standards.Root(), filepath.FromSlash(r)))
	}
	return watch.Watch(ctx, roots, a.logger, func() {
		if n, err := runOnce(); err != nil {
			a.logger.Error("validation failed", slog.String("error", err.Error()))
		} else if n == 0 {
			fmt.Fprintln(os.Stdout, "ok")
		}
	})
}

// AdoptOverrides carries the per-invocation CLI flags layered over the
// adoption config.
type AdoptOverrides struct {
	Mode       string
	ConfigFile string
	Force      bool
}

// RunAdopt applies the merge engine in the configured mode and prints the
// per-marker result table. Any conflict makes the command fail so a human
// reviews the drift before anything is lost.
func (a *App) RunAdopt(ctx context.Context, ov AdoptOverrides) error {
	cfg := a.config.Adoption
	if ov.Mode != "" {
		cfg.Mode = ov.Mode
	}
	if ov.ConfigFile != "" {
		cfg.ConfigFile = ov.ConfigFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	templates := a.standards
	if cfg.Mode == string(merge.ModePinned) {
		tree, err := a.snapshots.Tree(cfg.PinnedVersion)
		if err != nil {
			return err
		}
		templates = tree
	}

	project, err := storage.NewFS(cfg.ProjectPath)
	if err != nil {
		return fmt.Errorf("open project tree: %w", err)
	}

	adopter := merge.NewAdopter(templates, project, a.logger)
	outcome, err := adopter.Adopt(merge.Request{
		Mode:             merge.Mode(cfg.Mode),
		TemplateFile:     a.config.Standards.TemplateFile,
		ConfigFile:       cfg.ConfigFile,
		PinnedVersion:    cfg.PinnedVersion,
		StackOverride:    cfg.StackOverride,
		CommandOverrides: cfg.CommandOverrides,
		Force:            ov.Force,
		AfterSection:     cfg.AfterSection,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKER\tACTION")
	for _, r := range outcome.Results {
		fmt.Fprintf(w, "%s\t%s\n", r.Marker, r.Action)
	}
	w.Flush()

	if n := outcome.Conflicts(); n > 0 {
		return fmt.Errorf("%d block(s) skipped due to local edits; re-run with --force to overwrite", n)
	}
	return nil
}

// RunPin creates an immutable snapshot of the standards tree.
func (a *App) RunPin(ctx context.Context, version string) error {
	manifest, err := a.snapshots.Create(version)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "pinned %s: %d files, tree hash %s\n",
		manifest.Version, len(manifest.Files), manifest.TreeHash)
	return nil
}

// RunVerifyPin recomputes a snapshot's hashes against its manifest.
func (a *App) RunVerifyPin(ctx context.Context, version string) error {
	manifest, err := a.snapshots.Verify(version)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "intact: %s (%d files)\n", manifest.Version, len(manifest.Files))
	return nil
}

// RunDiffPins prints the per-path changes between two snapshots.
func (a *App) RunDiffPins(ctx context.Context, from, to string) error {
	changes, err := a.snapshots.Diff(from, to)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Fprintf(os.Stdout, "no changes between %s and %s\n", from, to)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tCHANGE")
	for _, c := range changes {
		fmt.Fprintf(w, "%s\t%s\n", c.Path, c.Type)
	}
	return w.Flush()
}

// RunSimulate executes the scripted adoption scenarios, each in its own
// sandbox. When scenario is non-empty only the named scenario runs.
func (a *App) RunSimulate(ctx context.Context, scenario string, parallel int) error {
	scenarios := simulate.Builtin()
	if scenario != "" {
		var picked []simulate.Scenario
		for _, sc := range scenarios {
			if sc.Name == scenario {
				picked = append(picked, sc)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("unknown scenario %q", scenario)
		}
		scenarios = picked
	}

	outcomes := simulate.NewRunner(a.logger, parallel).Run(ctx, scenarios)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tRESULT\tDURATION")
	for _, o := range outcomes {
		result := "pass"
		if o.Err != nil {
			result = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Name, result, o.Duration.Round(time.Millisecond))
	}
	w.Flush()

	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(os.Stdout, "\n%s:\n%v\n", o.Name, o.Err)
		}
	}
	if failed := simulate.Failed(outcomes); failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

// RunMCP serves the Ansuz tools over stdio until the client disconnects.
func (a *App) RunMCP(ctx context.Context) error {
	srv := mcpserver.New(a.standards,
		a.config.Standards.ContentRoots,
		a.config.Standards.IndexFiles)
	a.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

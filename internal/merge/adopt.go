package merge

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/storage"
)

// Mode selects the adoption strategy.
type Mode string

const (
	ModeFresh  Mode = "fresh"
	ModeMerge  Mode = "merge"
	ModePinned Mode = "pinned"
)

// Stack labels for downstream project detection.
const (
	StackGo      = "go"
	StackNode    = "node"
	StackPython  = "python"
	StackRust    = "rust"
	StackGeneric = "generic"
)

// Adopter drives the merge engine against a downstream project tree. The
// standards provider is either the live template tree or a pinned snapshot
// tree; the adopter does not care which.
type Adopter struct {
	standards storage.Provider
	project   storage.Provider
	logger    *slog.Logger
}

// NewAdopter creates an Adopter reading templates from standards and
// writing into project.
func NewAdopter(standards, project storage.Provider, logger *slog.Logger) *Adopter {
	return &Adopter{standards: standards, project: project, logger: logger}
}

// Request describes one adoption run.
type Request struct {
	Mode Mode
	// TemplateFile is the template path within the standards tree.
	TemplateFile string
	// ConfigFile is the downstream file the template merges into.
	ConfigFile string
	// PinnedVersion is recorded in the downstream file when non-empty.
	PinnedVersion string
	// StackOverride skips stack detection when non-empty.
	StackOverride string
	// CommandOverrides substitute {{CMD:name}} placeholders.
	CommandOverrides map[string]string
	// Force overwrites drifted blocks.
	Force bool
	// AfterSection anchors newly inserted blocks.
	AfterSection string
}

// Outcome is the aggregate result of an adoption run.
type Outcome struct {
	Results []Result
	Stack   string
	Wrote   bool
}

// Conflicts counts the blocks skipped due to drift.
func (o *Outcome) Conflicts() int {
	n := 0
	for _, r := range o.Results {
		if r.Action == ActionConflict {
			n++
		}
	}
	return n
}

// Adopt applies the template into the downstream config file according to
// the requested mode. The downstream file is only written when its content
// actually changes, and never when a fatal error occurs.
func (a *Adopter) Adopt(req Request) (*Outcome, error) {
	template, err := a.standards.Read(req.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("merge: read template: %w", err)
	}

	stack := req.StackOverride
	if stack == "" {
		stack = DetectStack(a.project)
	}
	template = expandPlaceholders(template, stack, req.CommandOverrides)

	opts := Options{
		Force:          req.Force,
		AfterSection:   req.AfterSection,
		TemplateName:   req.TemplateFile,
		DownstreamName: req.ConfigFile,
	}

	exists := a.project.Exists(req.ConfigFile)

	var merged []byte
	var results []Result
	switch req.Mode {
	case ModeFresh:
		if exists {
			return nil, fmt.Errorf("merge: %s already exists, use mode=merge: %w", req.ConfigFile, apperr.ErrConflict)
		}
		merged, err = RenderFresh(template, opts)
		if err == nil {
			blocks, _ := countBlocks(template, opts)
			for _, id := range blocks {
				results = append(results, Result{Marker: id, Action: ActionInserted})
			}
		}
	case ModeMerge, ModePinned:
		var downstream []byte
		if exists {
			downstream, err = a.project.Read(req.ConfigFile)
			if err != nil {
				return nil, fmt.Errorf("merge: read downstream: %w", err)
			}
		}
		merged, results, err = Apply(template, downstream, opts)
	default:
		return nil, fmt.Errorf("merge: unknown mode %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if req.Mode == ModePinned && req.PinnedVersion != "" {
		merged = ensurePinnedComment(merged, req.PinnedVersion)
	}

	outcome := &Outcome{Results: results, Stack: stack}

	var current []byte
	if exists {
		current, _ = a.project.Read(req.ConfigFile)
	}
	if exists && string(current) == string(merged) {
		return outcome, nil
	}
	if err := a.project.Write(req.ConfigFile, merged); err != nil {
		return nil, fmt.Errorf("merge: write %s: %w", req.ConfigFile, err)
	}
	outcome.Wrote = true

	if a.logger != nil {
		a.logger.Info("adoption applied",
			slog.String("mode", string(req.Mode)),
			slog.String("config_file", req.ConfigFile),
			slog.String("stack", stack),
			slog.Int("conflicts", outcome.Conflicts()))
	}
	return outcome, nil
}

// DetectStack labels the downstream project by its build files.
func DetectStack(project storage.Provider) string {
	switch {
	case project.Exists("go.mod"):
		return StackGo
	case project.Exists("package.json"):
		return StackNode
	case project.Exists("pyproject.toml"):
		return StackPython
	case project.Exists("Cargo.toml"):
		return StackRust
	default:
		return StackGeneric
	}
}

var cmdPlaceholderRe = regexp.MustCompile(`\{\{CMD:([A-Za-z0-9_-]+)\}\}`)

// expandPlaceholders substitutes the detected stack label and any command
// overrides into the template. Unknown {{CMD:name}} placeholders stay
// literal so missing overrides are visible downstream.
func expandPlaceholders(template []byte, stack string, overrides map[string]string) []byte {
	s := strings.ReplaceAll(string(template), "{{STACK}}", stack)
	s = cmdPlaceholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := cmdPlaceholderRe.FindStringSubmatch(m)[1]
		if cmd, ok := overrides[name]; ok {
			return cmd
		}
		return m
	})
	return []byte(s)
}

var pinnedCommentRe = regexp.MustCompile(`^\s*<!--\s*pinned:\s*(\S+)\s*-->\s*$`)

// PinnedVersion reads the pinned-version comment from a downstream file,
// or "" when the file is not pinned.
func PinnedVersion(data []byte) string {
	for _, line := range splitLines(data) {
		if m := pinnedCommentRe.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// ensurePinnedComment records version in the file's pinned comment,
// replacing an existing one or inserting at the top.
func ensurePinnedComment(data []byte, version string) []byte {
	comment := fmt.Sprintf("<!-- pinned: %s -->", version)
	lines := splitLines(data)
	for i, line := range lines {
		if pinnedCommentRe.MatchString(line) {
			lines[i] = comment
			return []byte(strings.Join(lines, "\n") + "\n")
		}
	}
	out := append([]string{comment}, lines...)
	return []byte(strings.Join(out, "\n") + "\n")
}

// countBlocks returns the marker ids of template in document order.
func countBlocks(template []byte, opts Options) ([]string, error) {
	blocks, err := markdown.ScanMarkers(opts.templateName(), template)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

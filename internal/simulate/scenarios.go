package simulate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/merge"
	"github.com/starford/ansuz/internal/snapshot"
	"github.com/starford/ansuz/internal/storage"
)

// Fixture tree used by the scripted scenarios. The standards tree has one
// index file, two guides, and a downstream template with two managed
// blocks.
const (
	fixtureIndex = `# Standards index

| Guide | Purpose |
| --- | --- |
| [Writing tests](guides/writing-tests.md) | How we test |
| [Code review](guides/code-review.md) | Review flow |
`

	fixtureGuideTests = `# Writing tests

Follow the [review checklist](code-review.md#checklist) before merging.

## Fixtures
`

	fixtureGuideReview = `# Code review

## Checklist
`

	fixtureTemplate = `# Project standards

<!-- BEGIN:standards-core -->
Follow the {{STACK}} guide.
Run ` + "`{{CMD:test}}`" + ` before committing.
<!-- END:standards-core -->

<!-- BEGIN:standards-review -->
All changes require review.
<!-- END:standards-review -->
`
)

const (
	standardsDir = "standards"
	projectDir   = "project"
	templatePath = "templates/AGENTS.md"
	configPath   = "AGENTS.md"
)

func writeStandards(sb *Sandbox) error {
	files := map[string]string{
		standardsDir + "/AGENTS.md":               fixtureIndex,
		standardsDir + "/guides/writing-tests.md": fixtureGuideTests,
		standardsDir + "/guides/code-review.md":   fixtureGuideReview,
		standardsDir + "/" + templatePath:         fixtureTemplate,
	}
	for path, content := range files {
		if err := sb.Write(path, content); err != nil {
			return err
		}
	}
	return nil
}

func openTrees(sb *Sandbox) (standards, project storage.Provider, err error) {
	standards, err = sb.Tree(standardsDir)
	if err != nil {
		return nil, nil, err
	}
	project, err = sb.Tree(projectDir)
	if err != nil {
		return nil, nil, err
	}
	return standards, project, nil
}

func adopt(standards, project storage.Provider, req merge.Request) (*merge.Outcome, error) {
	req.TemplateFile = templatePath
	req.ConfigFile = configPath
	return merge.NewAdopter(standards, project, nil).Adopt(req)
}

func validateStandards(standards storage.Provider) []error {
	g, err := graph.NewBuilder(standards, []string{"guides"}, []string{"AGENTS.md"}, nil).Build()
	if err != nil {
		return []error{err}
	}
	return g.Validate(graph.ModeReportAll)
}

func findResult(results []merge.Result, marker string) (merge.Result, bool) {
	for _, r := range results {
		if r.Marker == marker {
			return r, true
		}
	}
	return merge.Result{}, false
}

func expectEqual(what, actual, expected string) error {
	if actual != expected {
		return fmt.Errorf("%s mismatch\n--- actual ---\n%s\n--- expected ---\n%s", what, actual, expected)
	}
	return nil
}

func expectContains(what, actual, fragment string) error {
	if !strings.Contains(actual, fragment) {
		return fmt.Errorf("%s does not contain %q\n--- actual ---\n%s", what, fragment, actual)
	}
	return nil
}

func expectAction(results []merge.Result, marker string, want merge.Action) error {
	r, ok := findResult(results, marker)
	if !ok {
		return fmt.Errorf("no result for marker %q in %v", marker, results)
	}
	if r.Action != want {
		return fmt.Errorf("marker %q: action = %q, expected %q", marker, r.Action, want)
	}
	return nil
}

// Builtin returns the scripted adoption scenarios in execution order.
func Builtin() []Scenario {
	return []Scenario{
		{Name: "fresh-adopt", Run: freshAdopt},
		{Name: "merge-preserves-local-prose", Run: mergePreservesProse},
		{Name: "merge-idempotent", Run: mergeIdempotent},
		{Name: "conflicting-local-edit", Run: conflictingLocalEdit},
		{Name: "forced-overwrite", Run: forcedOverwrite},
		{Name: "pinned-adoption", Run: pinnedAdoption},
		{Name: "snapshot-tamper-detected", Run: snapshotTamper},
		{Name: "stack-detection-shapes", Run: stackShapes},
		{Name: "pilot-readiness-check", Run: pilotReadiness},
		{Name: "findings-summary", Run: findingsSummary},
	}
}

// freshAdopt: no downstream file exists → the full template is written with
// every block marked and hash-trailed, and the standards tree validates
// clean.
func freshAdopt(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	if err := sb.Write(projectDir+"/go.mod", "module example.com/demo\n"); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}

	outcome, err := adopt(standards, project, merge.Request{
		Mode:             merge.ModeFresh,
		CommandOverrides: map[string]string{"test": "go test ./..."},
	})
	if err != nil {
		return err
	}
	if outcome.Conflicts() != 0 {
		return fmt.Errorf("fresh adoption reported %d conflicts", outcome.Conflicts())
	}

	got, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	if err := expectContains("adopted file", got, "Follow the go guide."); err != nil {
		return err
	}
	if err := expectContains("adopted file", got, "`go test ./...`"); err != nil {
		return err
	}

	blocks, err := markdown.ScanMarkers(configPath, []byte(got))
	if err != nil {
		return err
	}
	if len(blocks) != 2 {
		return fmt.Errorf("adopted file has %d managed blocks, expected 2", len(blocks))
	}
	for _, b := range blocks {
		if b.SourceHash != checksum.SumString(b.Content) {
			return fmt.Errorf("block %q: source-hash trailer %s does not match content hash %s",
				b.ID, b.SourceHash, checksum.SumString(b.Content))
		}
	}

	if violations := validateStandards(standards); len(violations) != 0 {
		return fmt.Errorf("standards tree reported %d violations after fresh adopt: %v", len(violations), violations)
	}
	return nil
}

// mergePreservesProse: content outside marker regions is never modified,
// reordered, or re-flowed, while managed blocks pick up template changes.
func mergePreservesProse(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}
	if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeFresh}); err != nil {
		return err
	}

	localProse := "\n## Local notes\n\nThese lines belong to the downstream author.\n"
	adopted, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	if err := sb.Write(projectDir+"/"+configPath, adopted+localProse); err != nil {
		return err
	}

	updated := strings.Replace(fixtureTemplate, "All changes require review.",
		"All changes require two reviewers.", 1)
	if err := sb.Write(standardsDir+"/"+templatePath, updated); err != nil {
		return err
	}

	outcome, err := adopt(standards, project, merge.Request{Mode: merge.ModeMerge})
	if err != nil {
		return err
	}
	if err := expectAction(outcome.Results, "standards-review", merge.ActionUpdated); err != nil {
		return err
	}

	got, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	if err := expectContains("merged file", got, "All changes require two reviewers."); err != nil {
		return err
	}
	return expectContains("merged file", got, "These lines belong to the downstream author.")
}

// mergeIdempotent: a second merge with no intervening edits is a no-op diff.
func mergeIdempotent(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}
	if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeFresh}); err != nil {
		return err
	}
	if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeMerge}); err != nil {
		return err
	}
	before, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}

	outcome, err := adopt(standards, project, merge.Request{Mode: merge.ModeMerge})
	if err != nil {
		return err
	}
	if outcome.Wrote {
		return errors.New("second merge run rewrote an unchanged file")
	}
	after, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	return expectEqual("file after repeated merge", after, before)
}

// conflictingLocalEdit: an edit inside a managed block must surface as a
// conflict and leave that block's downstream content untouched.
func conflictingLocalEdit(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}
	if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeFresh}); err != nil {
		return err
	}

	adopted, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	localEdit := "We review differently around here."
	edited := strings.Replace(adopted, "All changes require review.", localEdit, 1)
	if edited == adopted {
		return errors.New("fixture edit did not apply")
	}
	if err := sb.Write(projectDir+"/"+configPath, edited); err != nil {
		return err
	}

	outcome, err := adopt(standards, project, merge.Request{Mode: merge.ModeMerge})
	if err != nil {
		return err
	}
	if err := expectAction(outcome.Results, "standards-review", merge.ActionConflict); err != nil {
		return err
	}
	r, _ := findResult(outcome.Results, "standards-review")
	var conflict *merge.ConflictError
	if !errors.As(r.Err, &conflict) {
		return fmt.Errorf("conflict result carries %T, expected *merge.ConflictError", r.Err)
	}
	if err := expectContains("conflict downstream content", conflict.Downstream, localEdit); err != nil {
		return err
	}

	got, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	return expectContains("file after conflicted merge", got, localEdit)
}

// forcedOverwrite: --force replaces a drifted block with template content.
func forcedOverwrite(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}
	if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeFresh}); err != nil {
		return err
	}

	adopted, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	edited := strings.Replace(adopted, "All changes require review.", "Local drift.", 1)
	if err := sb.Write(projectDir+"/"+configPath, edited); err != nil {
		return err
	}

	outcome, err := adopt(standards, project, merge.Request{Mode: merge.ModeMerge, Force: true})
	if err != nil {
		return err
	}
	if err := expectAction(outcome.Results, "standards-review", merge.ActionUpdated); err != nil {
		return err
	}
	got, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	if strings.Contains(got, "Local drift.") {
		return errors.New("forced merge left drifted content in place")
	}
	return expectContains("forced merge result", got, "All changes require review.")
}

// pinnedAdoption: the template source is a snapshot, not the live tree, and
// the downstream file records the pin.
func pinnedAdoption(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, project, err := openTrees(sb)
	if err != nil {
		return err
	}

	mgr := snapshot.NewManager(standards, sb.Path(".snapshots"), nil)
	if _, err := mgr.Create("v1"); err != nil {
		return err
	}

	// The live template moves on after the pin.
	moved := strings.Replace(fixtureTemplate, "All changes require review.",
		"Post-pin template drift.", 1)
	if err := sb.Write(standardsDir+"/"+templatePath, moved); err != nil {
		return err
	}

	pinned, err := mgr.Tree("v1")
	if err != nil {
		return err
	}
	if _, err := adopt(pinned, project, merge.Request{
		Mode:          merge.ModePinned,
		PinnedVersion: "v1",
	}); err != nil {
		return err
	}

	got, err := sb.Read(projectDir + "/" + configPath)
	if err != nil {
		return err
	}
	if strings.Contains(got, "Post-pin template drift.") {
		return errors.New("pinned adoption used the live template instead of the snapshot")
	}
	if v := merge.PinnedVersion([]byte(got)); v != "v1" {
		return fmt.Errorf("pinned version recorded as %q, expected %q", v, "v1")
	}
	return expectContains("pinned file", got, "All changes require review.")
}

// snapshotTamper: mutating any byte under the snapshot path must fail
// verification naming the mutated file.
func snapshotTamper(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, err := sb.Tree(standardsDir)
	if err != nil {
		return err
	}

	mgr := snapshot.NewManager(standards, sb.Path(".snapshots"), nil)
	if _, err := mgr.Create("v1"); err != nil {
		return err
	}
	if _, err := mgr.Verify("v1"); err != nil {
		return fmt.Errorf("freshly created snapshot failed verification: %w", err)
	}

	victim := sb.Path(".snapshots/v1/guides/code-review.md")
	if err := os.Chmod(victim, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(victim, []byte("# Tampered\n"), 0o644); err != nil {
		return err
	}

	_, err = mgr.Verify("v1")
	var mismatch *snapshot.HashMismatchError
	if !errors.As(err, &mismatch) {
		return fmt.Errorf("verify returned %v, expected *snapshot.HashMismatchError", err)
	}
	return expectEqual("mismatched path", mismatch.Path, "guides/code-review.md")
}

// stackShapes: adoption labels the downstream project by its build files
// and substitutes the label into the template.
func stackShapes(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	standards, err := sb.Tree(standardsDir)
	if err != nil {
		return err
	}

	shapes := []struct {
		dir       string
		buildFile string
		want      string
	}{
		{"project-go", "go.mod", "Follow the go guide."},
		{"project-node", "package.json", "Follow the node guide."},
		{"project-bare", "", "Follow the generic guide."},
	}
	for _, shape := range shapes {
		if shape.buildFile != "" {
			if err := sb.Write(shape.dir+"/"+shape.buildFile, "{}\n"); err != nil {
				return err
			}
		}
		project, err := sb.Tree(shape.dir)
		if err != nil {
			return err
		}
		if _, err := adopt(standards, project, merge.Request{Mode: merge.ModeFresh}); err != nil {
			return err
		}
		got, err := sb.Read(shape.dir + "/" + configPath)
		if err != nil {
			return err
		}
		if err := expectContains(shape.dir+" adopted file", got, shape.want); err != nil {
			return err
		}
	}
	return nil
}

// pilotReadiness: an unindexed guide is exactly one orphan violation, and
// indexing it makes the tree clean again.
func pilotReadiness(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	if err := sb.Write(standardsDir+"/guides/new-topic.md", "# New topic\n"); err != nil {
		return err
	}
	standards, err := sb.Tree(standardsDir)
	if err != nil {
		return err
	}

	violations := validateStandards(standards)
	if len(violations) != 1 {
		return fmt.Errorf("expected exactly 1 violation, got %d: %v", len(violations), violations)
	}
	var orphan *graph.OrphanGuideError
	if !errors.As(violations[0], &orphan) {
		return fmt.Errorf("violation is %T, expected *graph.OrphanGuideError", violations[0])
	}
	if err := expectEqual("orphan path", orphan.Path, "guides/new-topic.md"); err != nil {
		return err
	}

	indexed := fixtureIndex + "| [New topic](guides/new-topic.md) | Pilot topic |\n"
	if err := sb.Write(standardsDir+"/AGENTS.md", indexed); err != nil {
		return err
	}
	if violations := validateStandards(standards); len(violations) != 0 {
		return fmt.Errorf("expected clean tree after indexing, got %v", violations)
	}
	return nil
}

// findingsSummary: report-all mode accumulates every violation kind in a
// deterministic order so two runs over the same tree summarise identically.
func findingsSummary(sb *Sandbox) error {
	if err := writeStandards(sb); err != nil {
		return err
	}
	// One orphan, one broken anchor, one stale index entry.
	if err := sb.Write(standardsDir+"/guides/unlisted.md",
		"# Unlisted\n\nSee the [missing section](code-review.md#nope).\n"); err != nil {
		return err
	}
	stale := fixtureIndex + "| [Gone](guides/deleted.md) | Removed guide |\n"
	if err := sb.Write(standardsDir+"/AGENTS.md", stale); err != nil {
		return err
	}
	standards, err := sb.Tree(standardsDir)
	if err != nil {
		return err
	}

	first := validateStandards(standards)
	second := validateStandards(standards)

	render := func(violations []error) string {
		var b strings.Builder
		for _, v := range violations {
			b.WriteString(v.Error())
			b.WriteString("\n")
		}
		return b.String()
	}
	if err := expectEqual("findings across runs", render(second), render(first)); err != nil {
		return err
	}

	kinds := map[string]bool{}
	for _, v := range first {
		switch v.(type) {
		case *graph.OrphanGuideError:
			kinds["orphan"] = true
		case *graph.BrokenLinkError:
			kinds["broken"] = true
		case *graph.StaleIndexError:
			kinds["stale"] = true
		}
	}
	for _, k := range []string{"orphan", "broken", "stale"} {
		if !kinds[k] {
			return fmt.Errorf("findings summary missing %s violation:\n%s", k, render(first))
		}
	}
	return nil
}

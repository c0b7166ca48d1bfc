package merge

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/markdown"
)

const testTemplate = `# Standards

<!-- BEGIN:core -->
core content v1
<!-- END:core -->

<!-- BEGIN:review -->
review content v1
<!-- END:review -->
`

func applyOK(t *testing.T, template, downstream string, opts Options) (string, []Result) {
	t.Helper()
	merged, results, err := Apply([]byte(template), []byte(downstream), opts)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return string(merged), results
}

func actionFor(t *testing.T, results []Result, marker string) Action {
	t.Helper()
	for _, r := range results {
		if r.Marker == marker {
			return r.Action
		}
	}
	t.Fatalf("no result for marker %q in %v", marker, results)
	return ""
}

func TestApply_InsertsIntoEmptyFile(t *testing.T) {
	merged, results, err := Apply([]byte(testTemplate), nil, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if actionFor(t, results, "core") != ActionInserted {
		t.Errorf("core action = %v", results)
	}
	blocks, err := markdown.ScanMarkers("merged", merged)
	if err != nil {
		t.Fatalf("ScanMarkers: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	for _, b := range blocks {
		if b.SourceHash != checksum.SumString(b.Content) {
			t.Errorf("block %q trailer does not match content", b.ID)
		}
	}
}

func TestApply_InsertAfterSection(t *testing.T) {
	downstream := "# Project\n\n## Setup\n\nlocal setup notes\n\n## Usage\n\nlocal usage notes\n"
	merged, _ := applyOK(t, testTemplate, downstream, Options{AfterSection: "setup"})

	setupAt := strings.Index(merged, "## Setup")
	coreAt := strings.Index(merged, "<!-- BEGIN:core -->")
	usageAt := strings.Index(merged, "## Usage")
	if !(setupAt < coreAt && coreAt < usageAt) {
		t.Errorf("block not inserted after setup section:\n%s", merged)
	}
}

func TestApply_PreservesOutsideContent(t *testing.T) {
	downstream := "# Mine\n\nMy prose stays.\n"
	merged, _ := applyOK(t, testTemplate, downstream, Options{})
	if !strings.Contains(merged, "My prose stays.") {
		t.Errorf("outside content modified:\n%s", merged)
	}
	if !strings.HasPrefix(merged, "# Mine") {
		t.Errorf("outside content reordered:\n%s", merged)
	}
}

func TestApply_Idempotent(t *testing.T) {
	once, _ := applyOK(t, testTemplate, "", Options{})
	twice, results := applyOK(t, testTemplate, once, Options{})
	if twice != once {
		t.Errorf("second run changed bytes:\n--- first ---\n%s\n--- second ---\n%s", once, twice)
	}
	for _, r := range results {
		if r.Action != ActionUnchanged {
			t.Errorf("marker %q action = %q, want unchanged", r.Marker, r.Action)
		}
	}
}

func TestApply_UpdatesCleanBlock(t *testing.T) {
	once, _ := applyOK(t, testTemplate, "", Options{})
	updated := strings.Replace(testTemplate, "core content v1", "core content v2", 1)

	merged, results := applyOK(t, updated, once, Options{})
	if actionFor(t, results, "core") != ActionUpdated {
		t.Errorf("core action = %v", results)
	}
	if actionFor(t, results, "review") != ActionUnchanged {
		t.Errorf("review action = %v", results)
	}
	if !strings.Contains(merged, "core content v2") {
		t.Errorf("updated content missing:\n%s", merged)
	}
}

func TestApply_ConflictOnLocalEdit(t *testing.T) {
	once, _ := applyOK(t, testTemplate, "", Options{})
	edited := strings.Replace(once, "review content v1", "my local version", 1)
	updated := strings.Replace(testTemplate, "review content v1", "review content v2", 1)

	merged, results := applyOK(t, updated, edited, Options{})

	var conflict *ConflictError
	for _, r := range results {
		if r.Marker == "review" {
			if r.Action != ActionConflict {
				t.Fatalf("review action = %q, want conflict", r.Action)
			}
			if !errors.As(r.Err, &conflict) {
				t.Fatalf("review error = %T, want *ConflictError", r.Err)
			}
		}
	}
	if conflict == nil {
		t.Fatal("no conflict result for review")
	}
	if !strings.Contains(conflict.Downstream, "my local version") {
		t.Errorf("conflict.Downstream = %q", conflict.Downstream)
	}
	if !strings.Contains(conflict.Template, "review content v2") {
		t.Errorf("conflict.Template = %q", conflict.Template)
	}
	// The drifted block keeps the local edit byte for byte.
	if !strings.Contains(merged, "my local version") {
		t.Errorf("conflicted block was rewritten:\n%s", merged)
	}
	if strings.Contains(merged, "review content v2") {
		t.Errorf("conflicted block took template content:\n%s", merged)
	}
}

func TestApply_ConflictIsolatedPerMarker(t *testing.T) {
	once, _ := applyOK(t, testTemplate, "", Options{})
	edited := strings.Replace(once, "review content v1", "local drift", 1)
	updated := strings.Replace(
		strings.Replace(testTemplate, "core content v1", "core content v2", 1),
		"review content v1", "review content v2", 1)

	merged, results := applyOK(t, updated, edited, Options{})
	if actionFor(t, results, "core") != ActionUpdated {
		t.Errorf("core should still update: %v", results)
	}
	if actionFor(t, results, "review") != ActionConflict {
		t.Errorf("review should conflict: %v", results)
	}
	if !strings.Contains(merged, "core content v2") {
		t.Errorf("core not updated despite review conflict:\n%s", merged)
	}
}

func TestApply_ForceOverwritesDrift(t *testing.T) {
	once, _ := applyOK(t, testTemplate, "", Options{})
	edited := strings.Replace(once, "review content v1", "local drift", 1)

	merged, results := applyOK(t, testTemplate, edited, Options{Force: true})
	if actionFor(t, results, "review") != ActionUpdated {
		t.Errorf("forced action = %v", results)
	}
	if strings.Contains(merged, "local drift") {
		t.Errorf("forced merge kept drifted content:\n%s", merged)
	}
}

func TestApply_PreservesCRLFLineEndings(t *testing.T) {
	prose := "Author prose line one.\r\n\r\n"
	downstream := prose +
		"<!-- BEGIN:a -->\r\n" +
		"old\r\n" +
		"<!-- source-hash: " + checksum.SumString("old") + " -->\r\n" +
		"<!-- END:a -->\r\n"
	template := "<!-- BEGIN:a -->\nnew\n<!-- END:a -->\n"

	merged, results := applyOK(t, template, downstream, Options{})
	if actionFor(t, results, "a") != ActionUpdated {
		t.Fatalf("a action = %v", results)
	}
	if !strings.HasPrefix(merged, prose) {
		t.Errorf("author-owned lines lost their line endings:\n%q", merged)
	}
	if !strings.Contains(merged, "new\r\n") {
		t.Errorf("merged block does not use the file's line endings:\n%q", merged)
	}
	if strings.Contains(strings.ReplaceAll(merged, "\r\n", ""), "\n") {
		t.Errorf("merged output mixes line endings:\n%q", merged)
	}
}

func TestApply_MissingTrailerIsDrift(t *testing.T) {
	downstream := "<!-- BEGIN:core -->\nhand-written, no trailer\n<!-- END:core -->\n"
	_, results := applyOK(t, testTemplate, downstream, Options{})
	if actionFor(t, results, "core") != ActionConflict {
		t.Errorf("block without trailer should conflict: %v", results)
	}
}

func TestApply_TemplateParseErrorIsFatal(t *testing.T) {
	_, _, err := Apply([]byte("<!-- BEGIN:a -->\nnever closed\n"), nil, Options{})
	var perr *markdown.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *markdown.ParseError", err)
	}
}

func TestRenderFresh_AddsTrailers(t *testing.T) {
	out, err := RenderFresh([]byte(testTemplate), Options{})
	if err != nil {
		t.Fatalf("RenderFresh: %v", err)
	}
	blocks, err := markdown.ScanMarkers("fresh", out)
	if err != nil {
		t.Fatalf("ScanMarkers: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	for _, b := range blocks {
		if b.SourceHash == "" {
			t.Errorf("block %q missing source-hash trailer", b.ID)
		}
	}
	if !strings.HasPrefix(string(out), "# Standards") {
		t.Errorf("content outside markers not preserved:\n%s", out)
	}
}

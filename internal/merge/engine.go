// Package merge applies marker-delimited template blocks into a downstream
// file. Text inside a marker region is owned by the engine and may be
// rewritten; everything outside is owned by the downstream author and is
// never touched.
package merge

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/models"
)

// Action describes what happened to one marker block during a merge.
type Action string

const (
	ActionInserted  Action = "inserted"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionConflict  Action = "conflict"
)

// Result is the per-marker outcome of a merge run.
type Result struct {
	Marker string
	Action Action
	Err    error // *ConflictError when Action is ActionConflict
}

// Options tunes a merge run.
type Options struct {
	// Force overwrites blocks whose downstream content drifted.
	Force bool
	// AfterSection is the heading slug after which newly inserted blocks
	// are placed. Empty means end of file.
	AfterSection string
	// TemplateName and DownstreamName label parse errors.
	TemplateName   string
	DownstreamName string
}

func (o *Options) templateName() string {
	if o.TemplateName == "" {
		return "template"
	}
	return o.TemplateName
}

func (o *Options) downstreamName() string {
	if o.DownstreamName == "" {
		return "downstream"
	}
	return o.DownstreamName
}

// Apply merges every template block into downstream and returns the new
// file content plus per-marker results in template order. Conflicts are
// isolated: a drifted block is left byte-for-byte intact while the other
// blocks are still processed. The operation is idempotent — applying the
// same template twice yields identical bytes on the second run.
func Apply(template, downstream []byte, opts Options) ([]byte, []Result, error) {
	tblocks, err := markdown.ScanMarkers(opts.templateName(), template)
	if err != nil {
		return nil, nil, err
	}
	dblocks, err := markdown.ScanMarkers(opts.downstreamName(), downstream)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]models.MarkerBlock, len(dblocks))
	for _, b := range dblocks {
		byID[b.ID] = b
	}

	lines := splitLines(downstream)
	trailingNewline := len(downstream) == 0 || downstream[len(downstream)-1] == '\n'

	replacements := make(map[string][]string) // marker id → rendered lines
	var inserted [][]string
	var results []Result

	for _, tb := range tblocks {
		rendered := renderBlock(tb.ID, tb.Content)

		db, present := byID[tb.ID]
		if !present {
			inserted = append(inserted, rendered)
			results = append(results, Result{Marker: tb.ID, Action: ActionInserted})
			continue
		}

		drifted := db.SourceHash == "" || db.SourceHash != checksum.SumString(db.Content)
		if drifted && !opts.Force {
			results = append(results, Result{
				Marker: tb.ID,
				Action: ActionConflict,
				Err: &ConflictError{
					Marker:     tb.ID,
					Downstream: db.Content,
					Template:   tb.Content,
				},
			})
			continue
		}

		old := lines[db.BeginLine : db.EndLine+1]
		if equalLines(old, rendered) {
			results = append(results, Result{Marker: tb.ID, Action: ActionUnchanged})
			continue
		}
		replacements[tb.ID] = rendered
		results = append(results, Result{Marker: tb.ID, Action: ActionUpdated})
	}

	out := rebuild(lines, dblocks, replacements)
	out = insertBlocks(out, inserted, opts.AfterSection)

	eol := lineEnding(downstream)
	merged := strings.Join(out, eol)
	if trailingNewline && merged != "" {
		merged += eol
	}
	return []byte(merged), results, nil
}

// RenderFresh returns the template with a source-hash trailer injected into
// every marker block, for first-time adoption of a file that does not exist
// downstream. Content outside markers is carried verbatim.
func RenderFresh(template []byte, opts Options) ([]byte, error) {
	blocks, err := markdown.ScanMarkers(opts.templateName(), template)
	if err != nil {
		return nil, err
	}
	lines := splitLines(template)
	trailingNewline := len(template) == 0 || template[len(template)-1] == '\n'

	replacements := make(map[string][]string, len(blocks))
	for _, b := range blocks {
		replacements[b.ID] = renderBlock(b.ID, b.Content)
	}
	out := rebuild(lines, blocks, replacements)

	eol := lineEnding(template)
	rendered := strings.Join(out, eol)
	if trailingNewline && rendered != "" {
		rendered += eol
	}
	return []byte(rendered), nil
}

// renderBlock produces the canonical managed-block layout: BEGIN marker,
// content, source-hash trailer, END marker.
func renderBlock(id, content string) []string {
	out := []string{markdown.FormatBegin(id)}
	if content != "" {
		out = append(out, strings.Split(content, "\n")...)
	}
	out = append(out, markdown.FormatSourceHash(checksum.SumString(content)))
	out = append(out, markdown.FormatEnd(id))
	return out
}

// rebuild reassembles lines, substituting the rendered replacement for each
// block that has one. Blocks without a replacement are kept untouched.
func rebuild(lines []string, blocks []models.MarkerBlock, replacements map[string][]string) []string {
	if len(replacements) == 0 {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}
	var out []string
	i := 0
	for _, b := range blocks {
		repl, ok := replacements[b.ID]
		if !ok {
			continue
		}
		out = append(out, lines[i:b.BeginLine]...)
		out = append(out, repl...)
		i = b.EndLine + 1
	}
	out = append(out, lines[i:]...)
	return out
}

var headingLineRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// insertBlocks places newly managed blocks either right after the heading
// whose slug matches afterSection, or at the end of the file.
func insertBlocks(lines []string, blocks [][]string, afterSection string) []string {
	if len(blocks) == 0 {
		return lines
	}

	var chunk []string
	for _, b := range blocks {
		if len(lines)+len(chunk) > 0 {
			chunk = append(chunk, "")
		}
		chunk = append(chunk, b...)
	}

	at := len(lines)
	if afterSection != "" {
		for i, line := range lines {
			m := headingLineRe.FindStringSubmatch(line)
			if m != nil && markdown.Slugify(m[2]) == afterSection {
				at = i + 1
				break
			}
		}
	}

	out := make([]string, 0, len(lines)+len(chunk))
	out = append(out, lines[:at]...)
	out = append(out, chunk...)
	out = append(out, lines[at:]...)
	return out
}

// lineEnding returns the newline sequence the file uses so author-owned
// lines round-trip byte-identically. An empty or LF-only file gets "\n".
func lineEnding(data []byte) string {
	if bytes.Contains(data, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

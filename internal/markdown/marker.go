package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// Marker comment forms recognised inside managed files.
var (
	beginMarkerRe = regexp.MustCompile(`^\s*<!--\s*BEGIN:([A-Za-z0-9._/-]+)\s*-->\s*$`)
	endMarkerRe   = regexp.MustCompile(`^\s*<!--\s*END:([A-Za-z0-9._/-]+)\s*-->\s*$`)
	sourceHashRe  = regexp.MustCompile(`^\s*<!--\s*source-hash:\s*([0-9a-f]+)\s*-->\s*$`)
)

// ParseError reports a structural problem in a markdown file, with the
// file and 1-based line it was found on.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// FormatBegin renders the opening marker comment for id.
func FormatBegin(id string) string { return fmt.Sprintf("<!-- BEGIN:%s -->", id) }

// FormatEnd renders the closing marker comment for id.
func FormatEnd(id string) string { return fmt.Sprintf("<!-- END:%s -->", id) }

// FormatSourceHash renders the hidden trailer comment recording the hash
// the merge engine last wrote for a block.
func FormatSourceHash(hash string) string { return fmt.Sprintf("<!-- source-hash: %s -->", hash) }

// IsSourceHashLine reports whether line is a source-hash trailer and
// returns the recorded hash.
func IsSourceHashLine(line string) (string, bool) {
	m := sourceHashRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ScanMarkers extracts every marker-delimited block from data. Block
// content excludes the marker lines and the source-hash trailer, which is
// returned separately on the block. It fails with a *ParseError when a
// block is unterminated, when regions nest or overlap, or when the same id
// appears twice.
func ScanMarkers(file string, data []byte) ([]models.MarkerBlock, error) {
	lines := splitLines(data)

	var blocks []models.MarkerBlock
	seen := make(map[string]struct{})

	openID := ""
	openLine := 0
	var content []string
	sourceHash := ""

	for i, line := range lines {
		if m := beginMarkerRe.FindStringSubmatch(line); m != nil {
			if openID != "" {
				return nil, &ParseError{File: file, Line: i + 1,
					Msg: fmt.Sprintf("marker %q opened inside open marker %q", m[1], openID)}
			}
			if _, dup := seen[m[1]]; dup {
				return nil, &ParseError{File: file, Line: i + 1,
					Msg: fmt.Sprintf("duplicate marker id %q", m[1])}
			}
			openID = m[1]
			openLine = i
			content = nil
			sourceHash = ""
			continue
		}
		if m := endMarkerRe.FindStringSubmatch(line); m != nil {
			if openID == "" {
				return nil, &ParseError{File: file, Line: i + 1,
					Msg: fmt.Sprintf("END marker %q without matching BEGIN", m[1])}
			}
			if m[1] != openID {
				return nil, &ParseError{File: file, Line: i + 1,
					Msg: fmt.Sprintf("END marker %q does not close open marker %q", m[1], openID)}
			}
			seen[openID] = struct{}{}
			blocks = append(blocks, models.MarkerBlock{
				ID:         openID,
				BeginLine:  openLine,
				EndLine:    i,
				Content:    strings.Join(content, "\n"),
				SourceHash: sourceHash,
			})
			openID = ""
			continue
		}
		if openID != "" {
			if h, ok := IsSourceHashLine(line); ok {
				sourceHash = h
				continue
			}
			content = append(content, line)
		}
	}

	if openID != "" {
		return nil, &ParseError{File: file, Line: openLine + 1,
			Msg: fmt.Sprintf("marker %q is never closed", openID)}
	}
	return blocks, nil
}

// splitLines splits data on newlines without dropping empty lines. A
// trailing newline does not produce a phantom final element.
func splitLines(data []byte) []string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Package markdown parses standards documents: headings with anchor slugs,
// links, navigation-table rows, and managed marker blocks.
package markdown

import (
	"bytes"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// engine is stateless and safe to share across calls.
var engine = goldmark.New(goldmark.WithExtensions(extension.GFM))

type docMatter struct {
	Title string `yaml:"title"`
}

// Parse turns the raw bytes of one markdown file into a Document. path is
// the file's tree-relative path, used for link sources and error messages.
// Marker structure is checked as part of parsing, so a file with nested or
// unterminated markers fails with *ParseError.
func Parse(path string, data []byte) (*models.Document, error) {
	if _, err := ScanMarkers(path, data); err != nil {
		return nil, err
	}

	var matter docMatter
	body, err := frontmatter.Parse(bytes.NewReader(data), &matter)
	if err != nil {
		// Invalid frontmatter is not fatal: treat the whole file as body.
		body = data
		matter = docMatter{}
	}

	doc := &models.Document{
		Path:     path,
		Checksum: checksum.Sum(data),
	}

	root := engine.Parser().Parse(text.NewReader(body))
	dedup := newSlugDeduper()

	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			txt := string(node.Text(body))
			doc.Headings = append(doc.Headings, models.Heading{
				Text:  txt,
				Level: node.Level,
				Slug:  dedup.assign(Slugify(txt)),
			})
		case *ast.Link:
			doc.Links = append(doc.Links, newLink(path, string(node.Destination)))
		case *ast.AutoLink:
			doc.Links = append(doc.Links, newLink(path, string(node.URL(body))))
		case *east.TableRow:
			if entry, ok := tableRowEntry(path, node, body); ok {
				doc.Entries = append(doc.Entries, entry)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	doc.Title = matter.Title
	if doc.Title == "" {
		for _, h := range doc.Headings {
			if h.Level == 1 {
				doc.Title = h.Text
				break
			}
		}
	}
	return doc, nil
}

// newLink splits a raw link destination into path and anchor halves.
func newLink(source, raw string) models.Link {
	l := models.Link{Source: source, RawTarget: raw}
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "mailto:") {
		l.External = true
		return l
	}
	target := raw
	if i := strings.Index(target, "#"); i >= 0 {
		l.Anchor = target[i+1:]
		target = target[:i]
	}
	l.Path = target
	return l
}

// tableRowEntry extracts an index-entry candidate from a table row: the
// first link found in the row's first or second cell.
func tableRowEntry(path string, row *east.TableRow, source []byte) (models.IndexEntry, bool) {
	col := 0
	for cell := row.FirstChild(); cell != nil && col < 2; cell = cell.NextSibling() {
		if link := firstLink(cell); link != nil {
			raw := string(link.Destination)
			l := newLink(path, raw)
			if l.External {
				return models.IndexEntry{}, false
			}
			return models.IndexEntry{
				IndexFile: path,
				Target:    l.Path,
				Anchor:    l.Anchor,
				Title:     string(link.Text(source)),
			}, true
		}
		col++
	}
	return models.IndexEntry{}, false
}

// firstLink returns the first link node under n, depth first.
func firstLink(n ast.Node) *ast.Link {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if link, ok := c.(*ast.Link); ok {
			return link
		}
		if link := firstLink(c); link != nil {
			return link
		}
	}
	return nil
}

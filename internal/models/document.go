// Package models defines the domain types for Ansuz.
package models

import "time"

// Document represents one parsed markdown file in the standards tree.
type Document struct {
	Path     string       `json:"path"`
	Title    string       `json:"title,omitempty"`
	Headings []Heading    `json:"headings,omitempty"`
	Links    []Link       `json:"links,omitempty"`
	Entries  []IndexEntry `json:"entries,omitempty"`
	Checksum string       `json:"checksum"`
}

// Slugs returns the set of anchor slugs defined by the document's headings.
func (d *Document) Slugs() map[string]struct{} {
	out := make(map[string]struct{}, len(d.Headings))
	for _, h := range d.Headings {
		out[h.Slug] = struct{}{}
	}
	return out
}

// Heading is one ATX heading with its computed anchor slug.
// Slugs are unique within a document: duplicates carry -1, -2, … suffixes
// in order of appearance.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	Slug  string `json:"slug"`
}

// Link is a directed reference from one document to a target.
// Path and Anchor are the split halves of the raw target; a link with an
// empty Path refers to an anchor in its own document.
type Link struct {
	Source    string `json:"source"`
	RawTarget string `json:"raw_target"`
	Path      string `json:"path,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
	External  bool   `json:"external,omitempty"`
}

// IndexEntry is a navigation-table row: a link found in the first or second
// column of a markdown table. Entries only carry meaning when the containing
// file is a designated index file.
type IndexEntry struct {
	IndexFile string `json:"index_file"`
	Target    string `json:"target"`
	Anchor    string `json:"anchor,omitempty"`
	Title     string `json:"title"`
}

// MarkerBlock is a named, marker-delimited region whose content is managed
// by the merge engine. Line offsets are zero-based and refer to the marker
// comment lines themselves.
type MarkerBlock struct {
	ID         string `json:"id"`
	BeginLine  int    `json:"begin_line"`
	EndLine    int    `json:"end_line"`
	Content    string `json:"content"`
	SourceHash string `json:"source_hash,omitempty"`
}

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

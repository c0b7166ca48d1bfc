package markdown

import (
	"errors"
	"testing"
)

func TestParse_HeadingsAndSlugs(t *testing.T) {
	input := []byte("# Title\n\n## Section\n\n## Section\n\n### Sub Topic\n")
	doc, err := Parse("guide.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Headings) != 4 {
		t.Fatalf("len(headings) = %d, want 4", len(doc.Headings))
	}
	wantSlugs := []string{"title", "section", "section-1", "sub-topic"}
	for i, want := range wantSlugs {
		if doc.Headings[i].Slug != want {
			t.Errorf("headings[%d].Slug = %q, want %q", i, doc.Headings[i].Slug, want)
		}
	}
	if doc.Headings[3].Level != 3 {
		t.Errorf("headings[3].Level = %d, want 3", doc.Headings[3].Level)
	}
	if doc.Title != "Title" {
		t.Errorf("title = %q, want %q", doc.Title, "Title")
	}
}

func TestParse_FrontmatterTitleWins(t *testing.T) {
	input := []byte("---\ntitle: From Frontmatter\n---\n# From Heading\n")
	doc, err := Parse("guide.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "From Frontmatter" {
		t.Errorf("title = %q, want %q", doc.Title, "From Frontmatter")
	}
}

func TestParse_Links(t *testing.T) {
	input := []byte("# Doc\n\nSee [other](other.md#section) and [self](#doc).\n\n" +
		"External: [site](https://example.com/page).\n\n" +
		"Reference style: [ref link][1].\n\n[1]: target.md\n")
	doc, err := Parse("guide.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Links) != 4 {
		t.Fatalf("len(links) = %d, want 4: %+v", len(doc.Links), doc.Links)
	}

	first := doc.Links[0]
	if first.Path != "other.md" || first.Anchor != "section" {
		t.Errorf("first link = %+v, want path=other.md anchor=section", first)
	}
	second := doc.Links[1]
	if second.Path != "" || second.Anchor != "doc" {
		t.Errorf("second link = %+v, want self-anchor doc", second)
	}
	if !doc.Links[2].External {
		t.Errorf("third link should be external: %+v", doc.Links[2])
	}
	if doc.Links[3].Path != "target.md" {
		t.Errorf("reference link = %+v, want path=target.md", doc.Links[3])
	}
	for _, l := range doc.Links {
		if l.Source != "guide.md" {
			t.Errorf("link source = %q, want guide.md", l.Source)
		}
	}
}

func TestParse_IndexTableEntries(t *testing.T) {
	input := []byte("# Index\n\n| Guide | Purpose |\n| --- | --- |\n" +
		"| [Tests](guides/tests.md) | How we test |\n" +
		"| plain text | [Review](guides/review.md#checklist) |\n" +
		"| no link here | none |\n")
	doc, err := Parse("AGENTS.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %+v", len(doc.Entries), doc.Entries)
	}
	if doc.Entries[0].Target != "guides/tests.md" || doc.Entries[0].Title != "Tests" {
		t.Errorf("entries[0] = %+v", doc.Entries[0])
	}
	if doc.Entries[1].Target != "guides/review.md" || doc.Entries[1].Anchor != "checklist" {
		t.Errorf("entries[1] = %+v", doc.Entries[1])
	}
	if doc.Entries[0].IndexFile != "AGENTS.md" {
		t.Errorf("entries[0].IndexFile = %q", doc.Entries[0].IndexFile)
	}
}

func TestParse_InvalidFrontmatterFallsBack(t *testing.T) {
	input := []byte("---\n: not: yaml: {{{\n---\n# Body Heading\n")
	doc, err := Parse("guide.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Headings) == 0 {
		t.Fatal("expected headings from fallback body parse")
	}
}

func TestParse_MarkerErrorsSurface(t *testing.T) {
	input := []byte("# Doc\n\n<!-- BEGIN:core -->\nnever closed\n")
	_, err := Parse("guide.md", input)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if perr.File != "guide.md" || perr.Line != 3 {
		t.Errorf("error location = %s:%d, want guide.md:3", perr.File, perr.Line)
	}
}

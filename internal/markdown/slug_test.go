package markdown

import "testing"

func TestSlugify_Basic(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Hello  World", "hello-world"},
		{"UPPER case", "upper-case"},
		{"Already-hyphenated", "already-hyphenated"},
		{"Trailing punctuation!", "trailing-punctuation"},
		{"A & B", "a-b"},
		{"A - B", "a---b"},
		{"**Bold** heading", "bold-heading"},
		{"_emphasis_ here", "emphasis-here"},
		{"`code` span", "code-span"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"1.2 Numbered Section", "12-numbered-section"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello World",
		"A & B",
		"**Bold** heading",
		"1.2 Numbered Section",
		"already-a-slug",
	}
	for _, in := range inputs {
		once := Slugify(in)
		twice := Slugify(once)
		if once != twice {
			t.Errorf("Slugify not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSlugDeduper_Suffixes(t *testing.T) {
	d := newSlugDeduper()
	if got := d.assign("section"); got != "section" {
		t.Errorf("first = %q, want %q", got, "section")
	}
	if got := d.assign("section"); got != "section-1" {
		t.Errorf("second = %q, want %q", got, "section-1")
	}
	if got := d.assign("section"); got != "section-2" {
		t.Errorf("third = %q, want %q", got, "section-2")
	}
}

func TestSlugDeduper_LiteralCollision(t *testing.T) {
	d := newSlugDeduper()
	d.assign("section")
	// A literal heading already owns "section-1".
	if got := d.assign("section-1"); got != "section-1" {
		t.Fatalf("literal = %q, want %q", got, "section-1")
	}
	// The next duplicate of "section" must skip the taken suffix.
	if got := d.assign("section"); got != "section-2" {
		t.Errorf("duplicate = %q, want %q", got, "section-2")
	}
}

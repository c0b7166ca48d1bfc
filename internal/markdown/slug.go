package markdown

import (
	"fmt"
	"strings"
	"unicode"
)

var emphasisStripper = strings.NewReplacer("*", "", "_", "", "`", "")

// Slugify computes the anchor slug for a heading the way the publishing
// renderer does: lowercase, drop emphasis markers, keep only [a-z0-9 -],
// collapse each internal whitespace run to a single hyphen, trim hyphens.
// The rule is idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = emphasisStripper.Replace(s)

	var b strings.Builder
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// slugDeduper disambiguates duplicate slugs within one document by
// appending -1, -2, … in order of appearance.
type slugDeduper struct {
	seen map[string]int
}

func newSlugDeduper() *slugDeduper {
	return &slugDeduper{seen: make(map[string]int)}
}

// assign returns the unique slug for base, recording every slug it hands
// out so later literal headings cannot collide with a generated suffix.
func (d *slugDeduper) assign(base string) string {
	if _, ok := d.seen[base]; !ok {
		d.seen[base] = 0
		return base
	}
	for i := d.seen[base] + 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, ok := d.seen[candidate]; !ok {
			d.seen[base] = i
			d.seen[candidate] = 0
			return candidate
		}
	}
}

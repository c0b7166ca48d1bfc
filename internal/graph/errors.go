package graph

import (
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

// OrphanGuideError reports a guide file that a required index never lists.
type OrphanGuideError struct {
	Path             string
	MissingFromIndex string
}

func (e *OrphanGuideError) Error() string {
	return fmt.Sprintf("orphan guide: %s is not listed in %s", e.Path, e.MissingFromIndex)
}

// BrokenLinkError reports a link whose target file or anchor does not
// resolve.
type BrokenLinkError struct {
	Source string
	Target string
}

func (e *BrokenLinkError) Error() string {
	return fmt.Sprintf("broken link: %s -> %s", e.Source, e.Target)
}

// StaleIndexError reports an index entry pointing at a missing or renamed
// target.
type StaleIndexError struct {
	Entry models.IndexEntry
}

func (e *StaleIndexError) Error() string {
	return fmt.Sprintf("stale index entry: %s lists %s (%q)",
		e.Entry.IndexFile, e.Entry.Target, e.Entry.Title)
}

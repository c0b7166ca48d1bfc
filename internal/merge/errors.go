package merge

import "fmt"

// ConflictError reports a managed block whose downstream content was edited
// since the engine last wrote it. The engine never overwrites such a block
// without an explicit force, so both sides are carried for review.
type ConflictError struct {
	Marker     string
	Downstream string
	Template   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflict in block %q: downstream content was edited since last merge", e.Marker)
}

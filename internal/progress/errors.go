package progress

import (
	"errors"
	"fmt"
)

// ErrDataInconsistency marks violated data invariants. Match it with errors.Is.
var ErrDataInconsistency = errors.New("data inconsistency")

// DataInconsistencyError reports an invariant violated by loaded data, such as a course
// carrying more than one start date. It is never auto-corrected.
type DataInconsistencyError struct {
	CourseID string
	Detail   string
}

func (e *DataInconsistencyError) Error() string {
	if e.CourseID == "" {
		return fmt.Sprintf("data inconsistency: %s", e.Detail)
	}
	return fmt.Sprintf("data inconsistency in course %s: %s", e.CourseID, e.Detail)
}

// Is lets errors.Is match ErrDataInconsistency.
func (e *DataInconsistencyError) Is(target error) bool {
	return target == ErrDataInconsistency
}

// IngestError reports a source row that could not be converted into an event.
type IngestError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: column %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

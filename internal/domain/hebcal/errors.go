package hebcal

import (
	"errors"
	"fmt"
)

// ErrUnsupportedDateRange is returned when a date falls outside the supported
// conversion range. It is fatal for the affected record and never retried.
var ErrUnsupportedDateRange = errors.New("date outside supported conversion range")

// ErrNoSuchDate is returned when a Hebrew month/day does not exist in the
// requested year (Adar II in a common year, day 30 of a 29-day month).
var ErrNoSuchDate = errors.New("hebrew date does not exist in that year")

// ComputationError wraps a transient failure of the underlying year-table
// source. Callers retry on the next sweep rather than escalating.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("date computation failed during %s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// IsComputationError reports whether err is a transient table-source failure.
func IsComputationError(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}

package events

import (
	"fmt"

	"github.com/warp/benefits-engine/generic"
)

var (
	// ErrInvalidEvent is returned for records that cannot form an event.
	ErrInvalidEvent = fmt.Errorf("%w: event", generic.ErrInvalidInput)

	// ErrEventOverlap is returned when a leave event intersects an existing
	// leave event of the same employee.
	ErrEventOverlap = fmt.Errorf("%w: leave event overlaps an existing one", generic.ErrConflict)

	// ErrMissingColumns is returned by the CSV importer when the identity or
	// value column cannot be found in the header.
	ErrMissingColumns = fmt.Errorf("%w: could not identify employee and value columns", generic.ErrInvalidInput)
)

// OverlapError names the clashing interval.
type OverlapError struct {
	EmployeeID string
	StartDate  string
	EndDate    string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("employee %s already has a leave event between %s and %s",
		e.EmployeeID, e.StartDate, e.EndDate)
}

func (e *OverlapError) Unwrap() error {
	return ErrEventOverlap
}

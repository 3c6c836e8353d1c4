/*
errors.go - Centralized error types for the benefits engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context, and the API
  layer maps them to HTTP status codes through the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Bad input, rejected before any write
  2. Not found errors - Referenced record does not exist
  3. Conflict errors - Deletion with dependents, overlapping leave,
     illegal status transition

USAGE:
  if errors.Is(err, generic.ErrHasDependents) {
      // 409
  }

SEE ALSO:
  - org/store.go: Not-found errors for the hierarchy
  - events/errors.go: Overlap conflicts
  - api/handlers.go: HTTP mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidWorkingDays is returned when a planned or actual working-day
	// count is missing or not positive. The whole batch is rejected.
	ErrInvalidWorkingDays = errors.New("working days must be a positive integer")

	// ErrInvalidInput is the parent of domain specific validation errors
	// declared outside this package.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidMonthKey = errors.New("invalid month key, expected YYYY-MM")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidAmount   = errors.New("invalid amount")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	ErrNotFound = errors.New("not found")

	// ErrHasDependents is returned when deleting a record that other records
	// still reference. Nothing is deleted.
	ErrHasDependents = errors.New("record has dependents")

	// ErrConflict is the parent of every state conflict below.
	ErrConflict = errors.New("conflict")

	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DependentsError reports why a delete was refused.
type DependentsError struct {
	Kind           string
	ID             string
	DependentKind  string
	DependentCount int
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("cannot delete %s %q: %d %s still reference it",
		e.Kind, e.ID, e.DependentCount, e.DependentKind)
}

func (e *DependentsError) Unwrap() error {
	return ErrHasDependents
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidWorkingDays) ||
		errors.Is(err, ErrInvalidMonthKey) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrHasDependents) || errors.Is(err, ErrConflict)
}

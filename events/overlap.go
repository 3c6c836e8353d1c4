package events

import (
	"context"
	"fmt"

	"github.com/warp/benefits-engine/generic"
)

// Store persists event records. Get returns (nil, nil) when absent.
type Store interface {
	SaveEvent(ctx context.Context, r Record) error
	SaveEvents(ctx context.Context, rs []Record) error
	GetEvent(ctx context.Context, id string) (*Record, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context) ([]Record, error)
	ListEventsByEmployee(ctx context.Context, employeeID string) ([]Record, error)
}

// =============================================================================
// OVERLAP VALIDATOR
// =============================================================================

// OverlapValidator guards the no-overlapping-leave invariant.
type OverlapValidator struct {
	store Store
}

func NewOverlapValidator(store Store) *OverlapValidator {
	return &OverlapValidator{store: store}
}

// HasOverlap reports whether any stored leave event of the employee, other
// than excludeID, intersects [start, end].
func (v *OverlapValidator) HasOverlap(ctx context.Context, employeeID string, start, end generic.Date, excludeID string) (bool, error) {
	clash, err := v.Conflict(ctx, employeeID, generic.Period{Start: start, End: end}, excludeID)
	if err != nil {
		return false, err
	}
	return clash != nil, nil
}

// Conflict returns the first clashing leave event, or nil.
func (v *OverlapValidator) Conflict(ctx context.Context, employeeID string, p generic.Period, excludeID string) (*LeaveEvent, error) {
	records, err := v.store.ListEventsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return FirstOverlap(Decode(records), p, excludeID), nil
}

// Overlaps is the pure form of HasOverlap over an already loaded history.
func Overlaps(existing []Event, p generic.Period, excludeID string) bool {
	return FirstOverlap(existing, p, excludeID) != nil
}

// FirstOverlap scans leave events only. Events whose own dates are malformed
// cannot clash with anything.
func FirstOverlap(existing []Event, p generic.Period, excludeID string) *LeaveEvent {
	for _, e := range existing {
		leave, ok := e.(LeaveEvent)
		if !ok || (excludeID != "" && leave.ID == excludeID) {
			continue
		}
		span, err := leave.Period()
		if err != nil {
			continue
		}
		if p.Start.BeforeOrEqual(span.End) && p.End.AfterOrEqual(span.Start) {
			return &leave
		}
	}
	return nil
}

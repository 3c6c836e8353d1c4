/*
Package events models what happens to an employee during a month.

PURPOSE:
  Two kinds of event exist and they never share fields:

    LeaveEvent       a continuous absence (falta, atestado, ferias, suspensao)
    AdjustmentEvent  a signed manual correction to one benefit bucket of one
                     reference month (ajuste)

  Event is the sum type over both. Storage and the HTTP API use the flat
  Record form, tagged by "type"; Record.Event converts and rejects invalid
  field combinations.

INVARIANT:
  No two leave events of the same employee overlap, inclusive and at day
  granularity. Adjustments are exempt. OverlapValidator enforces it on
  every write path.

MALFORMED DATA:
  Leave dates are stored raw. A leave event whose dates do not parse, or
  whose end precedes its start, is kept but counts zero absence days.

SEE ALSO:
  - absence.go: Absence Accumulator
  - overlap.go: Overlap Validator
  - service.go: Create, update, mass creation
  - importcsv.go: CSV adjustment import
*/
package events

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind string

const (
	KindAbsence    Kind = "falta"
	KindMedical    Kind = "atestado"
	KindVacation   Kind = "ferias"
	KindSuspension Kind = "suspensao"
	KindAdjustment Kind = "ajuste"
)

func (k Kind) IsLeave() bool {
	switch k {
	case KindAbsence, KindMedical, KindVacation, KindSuspension:
		return true
	}
	return false
}

func (k Kind) Valid() bool { return k.IsLeave() || k == KindAdjustment }

func (k Kind) Label() string {
	switch k {
	case KindAbsence:
		return "Falta"
	case KindMedical:
		return "Atestado"
	case KindVacation:
		return "Férias"
	case KindSuspension:
		return "Suspensão"
	case KindAdjustment:
		return "Ajuste"
	}
	return string(k)
}

// BenefitType is the bucket an adjustment lands in.
type BenefitType string

const (
	BenefitVABase    BenefitType = "va_base"
	BenefitVAComp    BenefitType = "va_comp"
	BenefitVT        BenefitType = "vt"
	BenefitDinner    BenefitType = "janta"
	BenefitBreakfast BenefitType = "cafe"
)

func (b BenefitType) Valid() bool {
	switch b {
	case BenefitVABase, BenefitVAComp, BenefitVT, BenefitDinner, BenefitBreakfast:
		return true
	}
	return false
}

// =============================================================================
// EVENT SUM TYPE
// =============================================================================

// Event is either a LeaveEvent or an AdjustmentEvent.
type Event interface {
	EventID() string
	EmployeeRef() string
	Kind() Kind
	isEvent()
}

// LeaveEvent is an inclusive absence interval. Dates are kept as entered.
type LeaveEvent struct {
	ID         string
	EmployeeID string
	Type       Kind
	StartDate  string
	EndDate    string
	Notes      string
}

func (e LeaveEvent) EventID() string     { return e.ID }
func (e LeaveEvent) EmployeeRef() string { return e.EmployeeID }
func (e LeaveEvent) Kind() Kind          { return e.Type }
func (LeaveEvent) isEvent()              {}

// Period parses the interval. It fails for unparsable dates or an end
// before the start.
func (e LeaveEvent) Period() (generic.Period, error) {
	start, err := generic.ParseDate(e.StartDate)
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(e.EndDate)
	if err != nil {
		return generic.Period{}, err
	}
	return generic.NewPeriod(start, end)
}

// AdjustmentEvent is a signed delta for one benefit bucket of one month.
type AdjustmentEvent struct {
	ID             string
	EmployeeID     string
	ReferenceMonth generic.MonthKey
	BenefitType    BenefitType
	Value          decimal.Decimal
	Notes          string
}

func (e AdjustmentEvent) EventID() string     { return e.ID }
func (e AdjustmentEvent) EmployeeRef() string { return e.EmployeeID }
func (AdjustmentEvent) Kind() Kind            { return KindAdjustment }
func (AdjustmentEvent) isEvent()              {}

// Split partitions events by variant.
func Split(evts []Event) ([]LeaveEvent, []AdjustmentEvent) {
	var leaves []LeaveEvent
	var adjustments []AdjustmentEvent
	for _, e := range evts {
		switch v := e.(type) {
		case LeaveEvent:
			leaves = append(leaves, v)
		case AdjustmentEvent:
			adjustments = append(adjustments, v)
		}
	}
	return leaves, adjustments
}

// =============================================================================
// RECORD - Flat persisted form
// =============================================================================

// Record is how events are stored and transported.
type Record struct {
	ID             string           `json:"id"`
	EmployeeID     string           `json:"employeeId"`
	Type           Kind             `json:"type"`
	StartDate      string           `json:"startDate,omitempty"`
	EndDate        string           `json:"endDate,omitempty"`
	ReferenceMonth string           `json:"referenceMonth,omitempty"`
	BenefitType    BenefitType      `json:"benefitType,omitempty"`
	Value          *decimal.Decimal `json:"value,omitempty"`
	Notes          string           `json:"notes"`
}

// Event converts the record into its variant. Leave dates are not parsed
// here; see LeaveEvent.Period.
func (r Record) Event() (Event, error) {
	switch {
	case r.Type.IsLeave():
		if r.ReferenceMonth != "" || r.BenefitType != "" || r.Value != nil {
			return nil, invalid("leave event %q carries adjustment fields", r.ID)
		}
		return LeaveEvent{
			ID:         r.ID,
			EmployeeID: r.EmployeeID,
			Type:       r.Type,
			StartDate:  r.StartDate,
			EndDate:    r.EndDate,
			Notes:      r.Notes,
		}, nil

	case r.Type == KindAdjustment:
		if r.StartDate != "" || r.EndDate != "" {
			return nil, invalid("adjustment %q carries leave dates", r.ID)
		}
		month, err := generic.ParseMonthKey(r.ReferenceMonth)
		if err != nil {
			return nil, invalid("adjustment %q: %v", r.ID, err)
		}
		if !r.BenefitType.Valid() {
			return nil, invalid("adjustment %q: unknown benefit type %q", r.ID, r.BenefitType)
		}
		if r.Value == nil {
			return nil, invalid("adjustment %q: value required", r.ID)
		}
		return AdjustmentEvent{
			ID:             r.ID,
			EmployeeID:     r.EmployeeID,
			ReferenceMonth: month,
			BenefitType:    r.BenefitType,
			Value:          *r.Value,
			Notes:          r.Notes,
		}, nil
	}
	return nil, invalid("event %q: unknown type %q", r.ID, r.Type)
}

// ToRecord flattens an event.
func ToRecord(e Event) Record {
	switch v := e.(type) {
	case LeaveEvent:
		return Record{
			ID:         v.ID,
			EmployeeID: v.EmployeeID,
			Type:       v.Type,
			StartDate:  v.StartDate,
			EndDate:    v.EndDate,
			Notes:      v.Notes,
		}
	case AdjustmentEvent:
		value := v.Value
		return Record{
			ID:             v.ID,
			EmployeeID:     v.EmployeeID,
			Type:           KindAdjustment,
			ReferenceMonth: v.ReferenceMonth.String(),
			BenefitType:    v.BenefitType,
			Value:          &value,
			Notes:          v.Notes,
		}
	}
	return Record{}
}

// Decode converts records, dropping those that cannot form a valid event.
func Decode(records []Record) []Event {
	out := make([]Event, 0, len(records))
	for _, r := range records {
		e, err := r.Event()
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// withID returns e carrying the given id.
func withID(e Event, id string) Event {
	switch v := e.(type) {
	case LeaveEvent:
		v.ID = id
		return v
	case AdjustmentEvent:
		v.ID = id
		return v
	}
	return e
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

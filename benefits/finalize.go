package benefits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// EventSource yields an employee's full event history.
type EventSource interface {
	ForEmployee(ctx context.Context, employeeID string) ([]events.Event, error)
}

// =============================================================================
// FINALIZATION CALCULATOR
// =============================================================================

type FinalizationCalculator struct {
	ledger *Ledger
	rates  *org.RateResolver
	events EventSource
	now    func() time.Time
	logger *slog.Logger
}

func NewFinalizationCalculator(ledger *Ledger, rates *org.RateResolver, src EventSource, logger *slog.Logger) *FinalizationCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FinalizationCalculator{ledger: ledger, rates: rates, events: src, now: time.Now, logger: logger}
}

// WithClock replaces the FinalizedAt source.
func (c *FinalizationCalculator) WithClock(now func() time.Time) *FinalizationCalculator {
	c.now = now
	return c
}

type FinalizeInput struct {
	Month      generic.MonthKey
	ActualDays int
	Employees  []org.Employee
}

type FinalizeResult struct {
	Month   generic.MonthKey    `json:"month"`
	Records []CalculationRecord `json:"records"`
}

// Run settles the month for every employee and marks each record
// finalized. Running it again recomputes the settlement in place; the
// advance phase is never touched.
func (c *FinalizationCalculator) Run(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.ActualDays <= 0 {
		return FinalizeResult{}, generic.ErrInvalidWorkingDays
	}
	if !in.Month.Valid() {
		return FinalizeResult{}, fmt.Errorf("%w: %q", generic.ErrInvalidMonthKey, in.Month)
	}

	type resolved struct {
		emp    org.Employee
		rates  org.RateSet
		events []events.Event
	}
	batch := make([]resolved, 0, len(in.Employees))
	for _, emp := range in.Employees {
		rates, err := c.rates.ResolveEmployee(ctx, emp)
		if err != nil {
			return FinalizeResult{}, err
		}
		evts, err := c.events.ForEmployee(ctx, emp.ID)
		if err != nil {
			return FinalizeResult{}, err
		}
		batch = append(batch, resolved{emp: emp, rates: rates, events: evts})
	}

	now := c.now()
	result := FinalizeResult{Month: in.Month}

	err := c.ledger.Update(ctx, func(tx *Ledger) error {
		result.Records = result.Records[:0]
		for _, b := range batch {
			existing, err := tx.Get(ctx, in.Month, b.emp.ID)
			if err != nil {
				return fmt.Errorf("load record: %w", err)
			}

			rec := CalculationRecord{Month: in.Month, EmployeeID: b.emp.ID}
			if existing != nil {
				rec = *existing
			}
			settlement := ComputeSettlement(SettlementInput{
				Month:       in.Month,
				WorkingDays: in.ActualDays,
				Rates:       b.rates,
				Salary:      b.emp.Salary,
				Events:      b.events,
				Advance:     rec.Advance,
				Now:         now,
			})
			rec.Settlement = &settlement
			rec.Status = StatusFinalized

			if err := tx.Put(ctx, rec); err != nil {
				return err
			}
			result.Records = append(result.Records, rec)
		}
		return nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	c.logger.Info("month finalized",
		"month", in.Month.String(), "actual_days", in.ActualDays,
		"employees", len(result.Records))
	return result, nil
}

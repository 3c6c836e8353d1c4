package benefits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// ADVANCE CALCULATOR
// =============================================================================

type AdvanceCalculator struct {
	ledger *Ledger
	rates  *org.RateResolver
	now    func() time.Time
	logger *slog.Logger
}

func NewAdvanceCalculator(ledger *Ledger, rates *org.RateResolver, logger *slog.Logger) *AdvanceCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvanceCalculator{ledger: ledger, rates: rates, now: time.Now, logger: logger}
}

// WithClock replaces the timestamp source.
func (c *AdvanceCalculator) WithClock(now func() time.Time) *AdvanceCalculator {
	c.now = now
	return c
}

// AdvanceInput names the current month; records are written for the month
// after it.
type AdvanceInput struct {
	Month       generic.MonthKey
	PlannedDays int
	Employees   []org.Employee
}

type AdvanceResult struct {
	TargetMonth generic.MonthKey    `json:"targetMonth"`
	Records     []CalculationRecord `json:"records"`
}

// Run computes and stores the advance for every employee, or for none when
// the input is invalid or a write fails.
func (c *AdvanceCalculator) Run(ctx context.Context, in AdvanceInput) (AdvanceResult, error) {
	if in.PlannedDays <= 0 {
		return AdvanceResult{}, generic.ErrInvalidWorkingDays
	}
	if !in.Month.Valid() {
		return AdvanceResult{}, fmt.Errorf("%w: %q", generic.ErrInvalidMonthKey, in.Month)
	}

	type resolved struct {
		emp   org.Employee
		rates org.RateSet
	}
	batch := make([]resolved, 0, len(in.Employees))
	for _, emp := range in.Employees {
		rates, err := c.rates.ResolveEmployee(ctx, emp)
		if err != nil {
			return AdvanceResult{}, err
		}
		batch = append(batch, resolved{emp: emp, rates: rates})
	}

	target := in.Month.Next()
	now := c.now()
	result := AdvanceResult{TargetMonth: target}

	err := c.ledger.Update(ctx, func(tx *Ledger) error {
		result.Records = result.Records[:0]
		for _, b := range batch {
			current, err := tx.Get(ctx, in.Month, b.emp.ID)
			if err != nil {
				return fmt.Errorf("load current record: %w", err)
			}
			existing, err := tx.Get(ctx, target, b.emp.ID)
			if err != nil {
				return fmt.Errorf("load target record: %w", err)
			}

			phase := ComputeAdvance(b.rates, b.emp.Salary, in.PlannedDays, current, now)
			rec := mergeAdvance(existing, target, b.emp.ID, phase)
			if err := tx.Put(ctx, rec); err != nil {
				return err
			}
			result.Records = append(result.Records, rec)
		}
		return nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}

	c.logger.Info("advance calculated",
		"month", in.Month.String(), "target_month", target.String(),
		"planned_days", in.PlannedDays, "employees", len(result.Records),
		"total_va", totalAdvancedVA(result.Records).StringFixed(2))
	return result, nil
}

// mergeAdvance replaces only the advance phase. A finalized record stays
// finalized with its settlement untouched.
func mergeAdvance(existing *CalculationRecord, month generic.MonthKey, employeeID string, phase AdvancePhase) CalculationRecord {
	rec := CalculationRecord{Month: month, EmployeeID: employeeID}
	if existing != nil {
		rec = *existing
	}
	rec.Advance = &phase
	if rec.Status != StatusFinalized {
		rec.Status = StatusAdvanced
	}
	return rec
}

func totalAdvancedVA(records []CalculationRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Advance != nil {
			total = total.Add(r.Advance.TotalAdvancedVA)
		}
	}
	return total
}

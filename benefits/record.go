/*
Package benefits is the monthly settlement engine.

PURPOSE:
  Every (month, employee) pair owns one CalculationRecord that moves through
  two phases:

    ADVANCE   computed at the end of month M-1 for month M from the planned
              working days, the current rates and the balance carried out
              of M-1 (only when M-1 is finalized)
    FINALIZE  computed at the end of month M from the real working days,
              absences and adjustments; compared against the advance to
              produce a balance that the next advance carries forward

STATE MACHINE:
    (none) ──advance──▶ advanced ──finalize──▶ finalized
                         │  ▲                    │  ▲
                         └──┘ recompute          └──┘ recompute

  A finalized record never goes back to advanced. An advance recompute on a
  finalized record refreshes the advance phase and leaves the settlement
  alone.

KEY TYPES:
  - CalculationRecord: one ledger entry
  - AdvancePhase / Settlement: the fields each phase owns
  - Ledger: validated access to the injected RecordStore

SEE ALSO:
  - advance.go: Advance Calculator
  - finalize.go: Finalization Calculator
  - annual.go: Annual Aggregator
  - ledger.go: Ledger and RecordStore
*/
package benefits

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusAdvanced  Status = "advanced"
	StatusFinalized Status = "finalized"
)

// allowedTransitions lists the legal next statuses. A record that does not
// exist yet is pending.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAdvanced, StatusFinalized},
	StatusAdvanced:  {StatusAdvanced, StatusFinalized},
	StatusFinalized: {StatusFinalized},
}

// CanTransition reports whether a record in status from may be written
// with status to.
func CanTransition(from, to Status) bool {
	if from == "" {
		from = StatusPending
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// =============================================================================
// CALCULATION RECORD
// =============================================================================

// CalculationRecord is keyed by (Month, EmployeeID).
type CalculationRecord struct {
	Month      generic.MonthKey `json:"month"`
	EmployeeID string           `json:"employeeId"`
	Status     Status           `json:"status"`
	Advance    *AdvancePhase    `json:"advance,omitempty"`
	Settlement *Settlement      `json:"settlement,omitempty"`
}

// AdvancePhase is written by the Advance Calculator only.
type AdvancePhase struct {
	DaysPlannedWorked   int             `json:"daysPlannedWorked"`
	PriorMonthBalanceVA decimal.Decimal `json:"priorMonthBalanceVA"`
	PriorMonthBalanceVT decimal.Decimal `json:"priorMonthBalanceVT"`
	AdvancedVABase      decimal.Decimal `json:"advancedVABase"`
	AdvancedVAComp      decimal.Decimal `json:"advancedVAComp"`
	AdvancedVT          decimal.Decimal `json:"advancedVT"`
	VTDiscount          decimal.Decimal `json:"vtDiscount"`
	TotalAdvancedVA     decimal.Decimal `json:"totalAdvancedVA"`
	TotalAdvancedVT     decimal.Decimal `json:"totalAdvancedVT"`
	CalculatedAt        time.Time       `json:"calculatedAt"`
}

// Settlement is written by the Finalization Calculator only.
type Settlement struct {
	WorkingDays            int                `json:"workingDays"`
	DaysAbsent             int                `json:"daysAbsent"`
	DaysActualWorked       int                `json:"daysActualWorked"`
	AdjustmentVABase       decimal.Decimal    `json:"adjustmentVABase"`
	AdjustmentVAComp       decimal.Decimal    `json:"adjustmentVAComp"`
	AdjustmentVT           decimal.Decimal    `json:"adjustmentVT"`
	DuedVABase             decimal.Decimal    `json:"duedVABase"`
	DuedVAComp             decimal.Decimal    `json:"duedVAComp"`
	DuedVT                 decimal.Decimal    `json:"duedVT"`
	VTDiscount             decimal.Decimal    `json:"vtDiscount"`
	BalanceVA              decimal.Decimal    `json:"balanceVA"`
	BalanceVT              decimal.Decimal    `json:"balanceVT"`
	MealReimbursement      decimal.Decimal    `json:"mealReimbursement"`
	BreakfastReimbursement decimal.Decimal    `json:"breakfastReimbursement"`
	FoodBasketValue        decimal.Decimal    `json:"foodBasketValue"`
	FoodBasketKind         org.FoodBasketKind `json:"foodBasketKind"`
	Total                  decimal.Decimal    `json:"total"`
	Rates                  org.RateSet        `json:"rates"`
	FinalizedAt            time.Time          `json:"finalizedAt"`
}

// DuedVA is base plus complementary VA owed.
func (s Settlement) DuedVA() decimal.Decimal {
	return s.DuedVABase.Add(s.DuedVAComp)
}

// PhysicalBasketGranted is true when a physical basket was delivered.
func (s Settlement) PhysicalBasketGranted() bool {
	return s.FoodBasketKind == org.BasketPhysical && s.FoodBasketValue.IsPositive()
}

func (r CalculationRecord) IsFinalized() bool { return r.Status == StatusFinalized }

// CarryForward is the balance the next month's advance picks up. Only a
// finalized record carries anything.
func (r *CalculationRecord) CarryForward() (va, vt decimal.Decimal) {
	if r == nil || r.Status != StatusFinalized || r.Settlement == nil {
		return decimal.Zero, decimal.Zero
	}
	return r.Settlement.BalanceVA, r.Settlement.BalanceVT
}

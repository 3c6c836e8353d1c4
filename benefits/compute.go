package benefits

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// vtSalaryCap is the share of salary an employee pays toward transit.
var vtSalaryCap = decimal.RequireFromString("0.06")

// dailyAmounts is the common math of both phases for a given day count.
type dailyAmounts struct {
	VABase     decimal.Decimal
	VAComp     decimal.Decimal
	VTGross    decimal.Decimal
	VTDiscount decimal.Decimal
	VT         decimal.Decimal
}

func computeDaily(rates org.RateSet, salary decimal.Decimal, days int) dailyAmounts {
	n := decimal.NewFromInt(int64(days))
	factor := generic.DiscountFactor(rates.DiscountPercent)

	vtGross := n.Mul(rates.DailyVT)
	vtDiscount := generic.MinDecimal(vtGross, salary.Mul(vtSalaryCap))

	return dailyAmounts{
		VABase:     n.Mul(rates.BaseDailyVA).Mul(factor),
		VAComp:     n.Mul(rates.ComplementaryDailyVA()).Mul(factor),
		VTGross:    vtGross,
		VTDiscount: vtDiscount,
		VT:         vtGross.Sub(vtDiscount),
	}
}

// =============================================================================
// ADVANCE
// =============================================================================

// ComputeAdvance projects next month's advance. current is this month's
// record; its balance is carried only when it is finalized.
func ComputeAdvance(rates org.RateSet, salary decimal.Decimal, plannedDays int, current *CalculationRecord, now time.Time) AdvancePhase {
	priorVA, priorVT := current.CarryForward()
	amounts := computeDaily(rates, salary, plannedDays)

	return AdvancePhase{
		DaysPlannedWorked:   plannedDays,
		PriorMonthBalanceVA: priorVA,
		PriorMonthBalanceVT: priorVT,
		AdvancedVABase:      amounts.VABase,
		AdvancedVAComp:      amounts.VAComp,
		AdvancedVT:          amounts.VT,
		VTDiscount:          amounts.VTDiscount,
		TotalAdvancedVA:     generic.Sum(amounts.VABase, amounts.VAComp, priorVA),
		TotalAdvancedVT:     amounts.VT.Add(priorVT),
		CalculatedAt:        now,
	}
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// SettlementInput is everything the finalization math needs for one
// employee and month.
type SettlementInput struct {
	Month       generic.MonthKey
	WorkingDays int
	Rates       org.RateSet
	Salary      decimal.Decimal
	Events      []events.Event
	Advance     *AdvancePhase
	Now         time.Time
}

// Buckets are adjustment totals for one month.
type Buckets struct {
	VABase    decimal.Decimal
	VAComp    decimal.Decimal
	VT        decimal.Decimal
	Meal      decimal.Decimal
	Breakfast decimal.Decimal
}

// SumAdjustments totals the adjustments referencing month.
func SumAdjustments(adjustments []events.AdjustmentEvent, month generic.MonthKey) Buckets {
	var b Buckets
	for _, a := range adjustments {
		if a.ReferenceMonth != month {
			continue
		}
		switch a.BenefitType {
		case events.BenefitVABase:
			b.VABase = b.VABase.Add(a.Value)
		case events.BenefitVAComp:
			b.VAComp = b.VAComp.Add(a.Value)
		case events.BenefitVT:
			b.VT = b.VT.Add(a.Value)
		case events.BenefitDinner:
			b.Meal = b.Meal.Add(a.Value)
		case events.BenefitBreakfast:
			b.Breakfast = b.Breakfast.Add(a.Value)
		}
	}
	return b
}

// ComputeSettlement is the finalization math. It is deterministic: equal
// inputs give equal settlements.
func ComputeSettlement(in SettlementInput) Settlement {
	leaves, adjustments := events.Split(in.Events)
	absent := events.AbsenceDays(leaves, in.Month.Period())
	worked := in.WorkingDays - absent
	if worked < 0 {
		worked = 0
	}

	amounts := computeDaily(in.Rates, in.Salary, worked)
	adj := SumAdjustments(adjustments, in.Month)

	s := Settlement{
		WorkingDays:            in.WorkingDays,
		DaysAbsent:             absent,
		DaysActualWorked:       worked,
		AdjustmentVABase:       adj.VABase,
		AdjustmentVAComp:       adj.VAComp,
		AdjustmentVT:           adj.VT,
		DuedVABase:             amounts.VABase.Add(adj.VABase),
		DuedVAComp:             amounts.VAComp.Add(adj.VAComp),
		DuedVT:                 amounts.VT.Add(adj.VT),
		VTDiscount:             amounts.VTDiscount,
		MealReimbursement:      adj.Meal,
		BreakfastReimbursement: adj.Breakfast,
		FoodBasketKind:         in.Rates.FoodBasketKind,
		FoodBasketValue:        decimal.Zero,
		Rates:                  in.Rates,
		FinalizedAt:            in.Now,
	}
	if s.FoodBasketKind == "" {
		s.FoodBasketKind = org.BasketNone
	}

	// Any absence in the month voids the basket.
	if absent == 0 && s.FoodBasketKind != org.BasketNone {
		s.FoodBasketValue = in.Rates.FoodBasketValue
		if s.FoodBasketKind == org.BasketPaidAsVA {
			s.DuedVAComp = s.DuedVAComp.Add(s.FoodBasketValue)
		}
	}

	// Balances compare against the advance's own-month parts; the carried
	// prior balance was already settled.
	advancedVA, advancedVT := decimal.Zero, decimal.Zero
	if in.Advance != nil {
		advancedVA = in.Advance.AdvancedVABase.Add(in.Advance.AdvancedVAComp)
		advancedVT = in.Advance.AdvancedVT
	}
	s.BalanceVA = s.DuedVA().Sub(advancedVA)
	s.BalanceVT = s.DuedVT.Sub(advancedVT)
	s.Total = generic.Sum(s.DuedVABase, s.DuedVAComp, s.DuedVT)
	return s
}

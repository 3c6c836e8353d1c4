/*
benefits_test.go - Settlement engine behavior

ORGANIZATION:
  1. Advance phase (worked example A, carry-forward rules)
  2. Finalization (worked examples B, C, D, food baskets, idempotence)
  3. Status machine and ledger atomicity
  4. Annual aggregation, month summary and cost evolution

Every test reads GIVEN/WHEN/THEN. Money is compared with decimal.Equal.
*/
package benefits_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2025, time.April, 30, 18, 0, 0, 0, time.UTC)

type engine struct {
	store    *memory.Memory
	ledger   *benefits.Ledger
	rates    *org.RateResolver
	events   *events.Service
	advance  *benefits.AdvanceCalculator
	finalize *benefits.FinalizationCalculator
	annual   *benefits.AnnualAggregator
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := memory.New()
	ledger := benefits.NewLedger(store)
	rates := org.NewRateResolver(store)
	evts := events.NewService(store, store, nil)
	clock := func() time.Time { return fixedNow }

	return &engine{
		store:    store,
		ledger:   ledger,
		rates:    rates,
		events:   evts,
		advance:  benefits.NewAdvanceCalculator(ledger, rates, nil).WithClock(clock),
		finalize: benefits.NewFinalizationCalculator(ledger, rates, evts, nil).WithClock(clock),
		annual:   benefits.NewAnnualAggregator(ledger, store, rates),
	}
}

// seedScenarioA stores unit VA 20, sector override 25, 10% discount,
// VT 10/day and one employee earning 3000.
func (e *engine) seedScenarioA(t *testing.T) org.Employee {
	t.Helper()
	return e.seedEmployee(t, "ana", org.Sector{
		OverrideDailyVA:   generic.MoneyFromInt(25),
		DailyVT:           generic.MoneyFromInt(10),
		VADiscountPercent: generic.MoneyFromInt(10),
		FoodBasketKind:    org.BasketNone,
	}, generic.MoneyFromInt(20), generic.MoneyFromInt(3000))
}

// seedEmployee creates a unit, location and sector dedicated to one
// employee. ids are derived from key.
func (e *engine) seedEmployee(t *testing.T, key string, sector org.Sector, baseVA, salary decimal.Decimal) org.Employee {
	t.Helper()
	ctx := context.Background()

	unit := org.Unit{ID: "unit-" + key, Name: "Unit " + key, BaseDailyVA: baseVA}
	loc := org.Location{ID: "loc-" + key, Name: "Location " + key, UnitID: unit.ID}
	sector.ID = "sec-" + key
	sector.Name = "Sector " + key
	sector.LocationID = loc.ID
	emp := org.Employee{ID: "emp-" + key, Name: "Employee " + key, Salary: salary, SectorID: sector.ID}

	require.NoError(t, e.store.SaveUnit(ctx, unit))
	require.NoError(t, e.store.SaveLocation(ctx, loc))
	require.NoError(t, e.store.SaveSector(ctx, sector))
	require.NoError(t, e.store.SaveEmployee(ctx, emp))
	return emp
}

func (e *engine) leave(t *testing.T, emp org.Employee, kind events.Kind, start, end string) {
	t.Helper()
	_, err := e.events.Create(context.Background(), events.LeaveEvent{
		EmployeeID: emp.ID, Type: kind, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
}

func (e *engine) adjust(t *testing.T, emp org.Employee, month string, bt events.BenefitType, value string) {
	t.Helper()
	_, err := e.events.Create(context.Background(), events.AdjustmentEvent{
		EmployeeID: emp.ID, ReferenceMonth: generic.MonthKey(month),
		BenefitType: bt, Value: decimal.RequireFromString(value),
	})
	require.NoError(t, err)
}

func (e *engine) runAdvance(t *testing.T, month string, days int, emps ...org.Employee) benefits.AdvanceResult {
	t.Helper()
	res, err := e.advance.Run(context.Background(), benefits.AdvanceInput{
		Month: generic.MonthKey(month), PlannedDays: days, Employees: emps,
	})
	require.NoError(t, err)
	return res
}

func (e *engine) runFinalize(t *testing.T, month string, days int, emps ...org.Employee) benefits.FinalizeResult {
	t.Helper()
	res, err := e.finalize.Run(context.Background(), benefits.FinalizeInput{
		Month: generic.MonthKey(month), ActualDays: days, Employees: emps,
	})
	require.NoError(t, err)
	return res
}

func (e *engine) record(t *testing.T, month string, emp org.Employee) *benefits.CalculationRecord {
	t.Helper()
	rec, err := e.ledger.Get(context.Background(), generic.MonthKey(month), emp.ID)
	require.NoError(t, err)
	require.NotNil(t, rec, "record %s/%s should exist", month, emp.ID)
	return rec
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

// =============================================================================
// ADVANCE PHASE
// =============================================================================

func TestAdvance_ScenarioA_ComputesNextMonth(t *testing.T) {
	// GIVEN: Unit VA 20, sector override 25, 10% discount, VT 10, salary 3000
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	// WHEN: Advancing March with 22 planned days
	res := e.runAdvance(t, "2025-03", 22, emp)

	// THEN: April is advanced with the expected amounts
	assert.Equal(t, generic.MonthKey("2025-04"), res.TargetMonth)
	require.Len(t, res.Records, 1)

	rec := e.record(t, "2025-04", emp)
	assert.Equal(t, benefits.StatusAdvanced, rec.Status)
	assert.Nil(t, rec.Settlement)
	require.NotNil(t, rec.Advance)

	a := rec.Advance
	assert.Equal(t, 22, a.DaysPlannedWorked)
	assertMoney(t, "396", a.AdvancedVABase, "advancedVABase")
	assertMoney(t, "99", a.AdvancedVAComp, "advancedVAComp")
	assertMoney(t, "180", a.VTDiscount, "vtDiscount")
	assertMoney(t, "40", a.AdvancedVT, "advancedVT")
	assertMoney(t, "0", a.PriorMonthBalanceVA, "priorMonthBalanceVA")
	assertMoney(t, "495", a.TotalAdvancedVA, "totalAdvancedVA")
	assertMoney(t, "40", a.TotalAdvancedVT, "totalAdvancedVT")
	assert.Equal(t, fixedNow, a.CalculatedAt)
}

func TestAdvance_CurrentMonthNotWritten(t *testing.T) {
	// GIVEN: An employee with no records
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	// WHEN: Advancing March
	e.runAdvance(t, "2025-03", 22, emp)

	// THEN: Only April exists
	rec, err := e.ledger.Get(context.Background(), "2025-03", emp.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "advance must never write the current month")
}

func TestAdvance_CarriesBalanceOfFinalizedMonth(t *testing.T) {
	// GIVEN: April advanced, then finalized with 2 days of absence
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)
	e.leave(t, emp, events.KindAbsence, "2025-04-07", "2025-04-08")
	e.runFinalize(t, "2025-04", 22, emp)

	// WHEN: Advancing April for May
	e.runAdvance(t, "2025-04", 22, emp)

	// THEN: May carries April's negative balances
	a := e.record(t, "2025-05", emp).Advance
	require.NotNil(t, a)
	assertMoney(t, "-45", a.PriorMonthBalanceVA, "priorMonthBalanceVA")
	assertMoney(t, "-20", a.PriorMonthBalanceVT, "priorMonthBalanceVT")
	assertMoney(t, "450", a.TotalAdvancedVA, "totalAdvancedVA")
	assertMoney(t, "20", a.TotalAdvancedVT, "totalAdvancedVT")
}

func TestAdvance_AdvancedMonthCarriesNothing(t *testing.T) {
	// GIVEN: April only advanced, never finalized
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)

	// WHEN: Advancing April for May
	e.runAdvance(t, "2025-04", 22, emp)

	// THEN: No prior balance is picked up
	a := e.record(t, "2025-05", emp).Advance
	assertMoney(t, "0", a.PriorMonthBalanceVA, "priorMonthBalanceVA")
	assertMoney(t, "0", a.PriorMonthBalanceVT, "priorMonthBalanceVT")
	assertMoney(t, "495", a.TotalAdvancedVA, "totalAdvancedVA")
}

func TestAdvance_FinalizedTarget_StaysFinalized(t *testing.T) {
	// GIVEN: April already finalized
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)
	e.runFinalize(t, "2025-04", 22, emp)
	before := e.record(t, "2025-04", emp)

	// WHEN: Recomputing the advance with a different day count
	e.runAdvance(t, "2025-03", 21, emp)

	// THEN: Status and settlement are untouched, advance is refreshed
	after := e.record(t, "2025-04", emp)
	assert.Equal(t, benefits.StatusFinalized, after.Status)
	require.NotNil(t, after.Settlement)
	assertMoney(t, before.Settlement.Total.String(), after.Settlement.Total, "total")
	assert.Equal(t, 21, after.Advance.DaysPlannedWorked)
}

func TestAdvance_InvalidDays_WritesNothing(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	for _, days := range []int{0, -3} {
		_, err := e.advance.Run(context.Background(), benefits.AdvanceInput{
			Month: "2025-03", PlannedDays: days, Employees: []org.Employee{emp},
		})
		assert.ErrorIs(t, err, generic.ErrInvalidWorkingDays)
		assert.True(t, generic.IsClientError(err))
	}

	all, err := e.ledger.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAdvance_InvalidMonth_Rejected(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	_, err := e.advance.Run(context.Background(), benefits.AdvanceInput{
		Month: "2025-13", PlannedDays: 22, Employees: []org.Employee{emp},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidMonthKey)
}

func TestAdvance_BrokenSectorChain_ZeroRates(t *testing.T) {
	// GIVEN: An employee whose sector does not exist
	e := newEngine(t)
	emp := org.Employee{ID: "emp-orphan", Name: "Orphan", Salary: generic.MoneyFromInt(2000), SectorID: "sec-gone"}
	require.NoError(t, e.store.SaveEmployee(context.Background(), emp))

	// WHEN: Advancing
	e.runAdvance(t, "2025-03", 22, emp)

	// THEN: A record is written with zero amounts
	a := e.record(t, "2025-04", emp).Advance
	assertMoney(t, "0", a.TotalAdvancedVA, "totalAdvancedVA")
	assertMoney(t, "0", a.TotalAdvancedVT, "totalAdvancedVT")
}

func TestAdvance_DecemberRollsIntoNextYear(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	res := e.runAdvance(t, "2025-12", 20, emp)

	assert.Equal(t, generic.MonthKey("2026-01"), res.TargetMonth)
	e.record(t, "2026-01", emp)
}

// =============================================================================
// FINALIZATION
// =============================================================================

func TestFinalize_ScenarioB_AbsenceReducesDuedAmounts(t *testing.T) {
	// GIVEN: Scenario A advance for April and a 2-day absence in April
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)
	e.leave(t, emp, events.KindAbsence, "2025-04-07", "2025-04-08")

	// WHEN: Finalizing April with 22 working days
	e.runFinalize(t, "2025-04", 22, emp)

	// THEN: 20 worked days, negative balances against the advance
	rec := e.record(t, "2025-04", emp)
	assert.Equal(t, benefits.StatusFinalized, rec.Status)
	require.NotNil(t, rec.Advance, "advance phase must survive finalization")
	s := rec.Settlement
	require.NotNil(t, s)

	assert.Equal(t, 22, s.WorkingDays)
	assert.Equal(t, 2, s.DaysAbsent)
	assert.Equal(t, 20, s.DaysActualWorked)
	assertMoney(t, "360", s.DuedVABase, "duedVABase")
	assertMoney(t, "90", s.DuedVAComp, "duedVAComp")
	assertMoney(t, "-45", s.BalanceVA, "balanceVA")
	assertMoney(t, "180", s.VTDiscount, "vtDiscount")
	assertMoney(t, "20", s.DuedVT, "duedVT")
	assertMoney(t, "-20", s.BalanceVT, "balanceVT")
	assertMoney(t, "470", s.Total, "total")
	assert.Equal(t, org.BasketNone, s.FoodBasketKind)
	assert.Equal(t, fixedNow, s.FinalizedAt)
}

func TestFinalize_ScenarioC_AbsenceVoidsPhysicalBasket(t *testing.T) {
	// GIVEN: A sector with a physical basket of 150 and one absence day
	e := newEngine(t)
	emp := e.seedEmployee(t, "bia", org.Sector{
		DailyVT:         generic.MoneyFromInt(10),
		FoodBasketValue: generic.MoneyFromInt(150),
		FoodBasketKind:  org.BasketPhysical,
	}, generic.MoneyFromInt(20), generic.MoneyFromInt(3000))
	e.leave(t, emp, events.KindMedical, "2025-04-15", "2025-04-15")

	// WHEN: Finalizing April
	e.runFinalize(t, "2025-04", 22, emp)

	// THEN: Basket value is recorded as zero
	s := e.record(t, "2025-04", emp).Settlement
	assert.Equal(t, org.BasketPhysical, s.FoodBasketKind)
	assertMoney(t, "0", s.FoodBasketValue, "foodBasketValue")
	assert.False(t, s.PhysicalBasketGranted())
	assertMoney(t, "150", s.Rates.FoodBasketValue, "policy basket value")
}

func TestFinalize_PhysicalBasket_NoAbsence_Granted(t *testing.T) {
	e := newEngine(t)
	emp := e.seedEmployee(t, "bia", org.Sector{
		FoodBasketValue: generic.MoneyFromInt(150),
		FoodBasketKind:  org.BasketPhysical,
	}, generic.MoneyFromInt(20), generic.MoneyFromInt(3000))

	e.runFinalize(t, "2025-04", 22, emp)

	s := e.record(t, "2025-04", emp).Settlement
	assertMoney(t, "150", s.FoodBasketValue, "foodBasketValue")
	assert.True(t, s.PhysicalBasketGranted())
	// A physical basket is not money on the card.
	assertMoney(t, "0", s.DuedVAComp, "duedVAComp")
}

func TestFinalize_BasketPaidAsVA_AddsToComplementary(t *testing.T) {
	e := newEngine(t)
	emp := e.seedEmployee(t, "caio", org.Sector{
		FoodBasketValue: generic.MoneyFromInt(200),
		FoodBasketKind:  org.BasketPaidAsVA,
	}, generic.MoneyFromInt(20), generic.MoneyFromInt(3000))

	e.runFinalize(t, "2025-04", 22, emp)

	s := e.record(t, "2025-04", emp).Settlement
	assertMoney(t, "440", s.DuedVABase, "duedVABase")
	assertMoney(t, "200", s.DuedVAComp, "duedVAComp")
	assertMoney(t, "640", s.DuedVA(), "duedVA")
	// Finalizing without an advance settles against zero.
	assertMoney(t, "640", s.BalanceVA, "balanceVA")
}

func TestFinalize_ScenarioD_AdjustmentShiftsBucket(t *testing.T) {
	// GIVEN: Scenario B plus a -25 va_base adjustment for April and one for May
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)
	e.leave(t, emp, events.KindAbsence, "2025-04-07", "2025-04-08")
	e.adjust(t, emp, "2025-04", events.BenefitVABase, "-25")
	e.adjust(t, emp, "2025-05", events.BenefitVABase, "-1000")

	// WHEN: Finalizing April
	e.runFinalize(t, "2025-04", 22, emp)

	// THEN: duedVABase is exactly 25 below scenario B; May's adjustment is ignored
	s := e.record(t, "2025-04", emp).Settlement
	assertMoney(t, "-25", s.AdjustmentVABase, "adjustmentVABase")
	assertMoney(t, "335", s.DuedVABase, "duedVABase")
	assertMoney(t, "-70", s.BalanceVA, "balanceVA")
}

func TestFinalize_Reimbursements_FromAdjustments(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.adjust(t, emp, "2025-04", events.BenefitDinner, "120")
	e.adjust(t, emp, "2025-04", events.BenefitDinner, "30.50")
	e.adjust(t, emp, "2025-04", events.BenefitBreakfast, "45")
	e.adjust(t, emp, "2025-04", events.BenefitVT, "12")

	e.runFinalize(t, "2025-04", 22, emp)

	s := e.record(t, "2025-04", emp).Settlement
	assertMoney(t, "150.5", s.MealReimbursement, "mealReimbursement")
	assertMoney(t, "45", s.BreakfastReimbursement, "breakfastReimbursement")
	assertMoney(t, "12", s.AdjustmentVT, "adjustmentVT")
	// 22 × 10 = 220 gross, minus the 180 cap, plus 12.
	assertMoney(t, "52", s.DuedVT, "duedVT")
}

func TestFinalize_Idempotent(t *testing.T) {
	// GIVEN: A finalized month
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)
	e.leave(t, emp, events.KindVacation, "2025-04-21", "2025-04-25")
	first := e.runFinalize(t, "2025-04", 22, emp).Records[0]

	// WHEN: Finalizing again with the same inputs
	second := e.runFinalize(t, "2025-04", 22, emp).Records[0]

	// THEN: Same settlement, same advance
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Settlement.DaysActualWorked, second.Settlement.DaysActualWorked)
	assertMoney(t, first.Settlement.Total.String(), second.Settlement.Total, "total")
	assertMoney(t, first.Settlement.BalanceVA.String(), second.Settlement.BalanceVA, "balanceVA")
	assertMoney(t, first.Advance.TotalAdvancedVA.String(), second.Advance.TotalAdvancedVA, "advance")
}

func TestFinalize_RatesResolvedLive(t *testing.T) {
	// GIVEN: April advanced at unit VA 20
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.runAdvance(t, "2025-03", 22, emp)

	// WHEN: The sector override is removed and the unit rate raised before finalization
	ctx := context.Background()
	sector, err := e.store.GetSector(ctx, emp.SectorID)
	require.NoError(t, err)
	sector.OverrideDailyVA = decimal.Zero
	require.NoError(t, e.store.SaveSector(ctx, *sector))
	unit, err := e.store.GetUnit(ctx, "unit-ana")
	require.NoError(t, err)
	unit.BaseDailyVA = generic.MoneyFromInt(30)
	require.NoError(t, e.store.SaveUnit(ctx, *unit))

	e.runFinalize(t, "2025-04", 22, emp)

	// THEN: The settlement uses the new rates
	s := e.record(t, "2025-04", emp).Settlement
	assertMoney(t, "594", s.DuedVABase, "duedVABase")
	assertMoney(t, "0", s.DuedVAComp, "duedVAComp")
	assertMoney(t, "30", s.Rates.EffectiveDailyVA, "rates snapshot")
}

func TestFinalize_AbsenceBeyondWorkingDays_ClampsAtZero(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)
	e.leave(t, emp, events.KindSuspension, "2025-04-01", "2025-04-30")

	e.runFinalize(t, "2025-04", 22, emp)

	s := e.record(t, "2025-04", emp).Settlement
	assert.Equal(t, 30, s.DaysAbsent, "calendar days are counted")
	assert.Equal(t, 0, s.DaysActualWorked)
	assertMoney(t, "0", s.DuedVA(), "duedVA")
}

func TestFinalize_InvalidDays_WritesNothing(t *testing.T) {
	e := newEngine(t)
	emp := e.seedScenarioA(t)

	_, err := e.finalize.Run(context.Background(), benefits.FinalizeInput{
		Month: "2025-04", ActualDays: 0, Employees: []org.Employee{emp},
	})

	assert.ErrorIs(t, err, generic.ErrInvalidWorkingDays)
	all, err := e.ledger.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// PURE SETTLEMENT MATH
// =============================================================================

func TestComputeSettlement_LeaveSpanningMonths_CountsOnlyInside(t *testing.T) {
	rates := org.RateSet{
		BaseDailyVA:      generic.MoneyFromInt(20),
		EffectiveDailyVA: generic.MoneyFromInt(20),
		FoodBasketKind:   org.BasketNone,
	}
	leave := events.LeaveEvent{ID: "l1", EmployeeID: "e", Type: events.KindVacation, StartDate: "2025-03-30", EndDate: "2025-04-02"}

	s := benefits.ComputeSettlement(benefits.SettlementInput{
		Month: "2025-04", WorkingDays: 22, Rates: rates,
		Salary: generic.MoneyFromInt(3000), Events: []events.Event{leave},
	})

	assert.Equal(t, 2, s.DaysAbsent)
	assert.Equal(t, 20, s.DaysActualWorked)
	assertMoney(t, "400", s.DuedVABase, "duedVABase")
}

func TestComputeSettlement_MalformedLeave_CountsZero(t *testing.T) {
	leave := events.LeaveEvent{ID: "l1", EmployeeID: "e", Type: events.KindAbsence, StartDate: "2025-04-10", EndDate: "2025-04-02"}

	s := benefits.ComputeSettlement(benefits.SettlementInput{
		Month: "2025-04", WorkingDays: 22, Rates: org.ZeroRates(), Events: []events.Event{leave},
	})

	assert.Equal(t, 0, s.DaysAbsent)
	assert.Equal(t, 22, s.DaysActualWorked)
}

func TestComputeSettlement_LowSalary_CapsVTDiscount(t *testing.T) {
	rates := org.RateSet{DailyVT: generic.MoneyFromInt(10), FoodBasketKind: org.BasketNone}

	s := benefits.ComputeSettlement(benefits.SettlementInput{
		Month: "2025-04", WorkingDays: 20, Rates: rates, Salary: generic.MoneyFromInt(1000),
	})

	assertMoney(t, "60", s.VTDiscount, "vtDiscount")
	assertMoney(t, "140", s.DuedVT, "duedVT")
}

func TestComputeAdvance_OverrideBelowBase_NoComplementary(t *testing.T) {
	rates := org.RateSet{
		BaseDailyVA:      generic.MoneyFromInt(30),
		EffectiveDailyVA: generic.MoneyFromInt(25),
		FoodBasketKind:   org.BasketNone,
	}

	a := benefits.ComputeAdvance(rates, generic.MoneyFromInt(3000), 10, nil, fixedNow)

	assertMoney(t, "300", a.AdvancedVABase, "advancedVABase")
	assertMoney(t, "0", a.AdvancedVAComp, "advancedVAComp")
}

// =============================================================================
// STATUS MACHINE & LEDGER
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to benefits.Status
		want     bool
	}{
		{benefits.StatusPending, benefits.StatusAdvanced, true},
		{benefits.StatusPending, benefits.StatusFinalized, true},
		{benefits.StatusAdvanced, benefits.StatusAdvanced, true},
		{benefits.StatusAdvanced, benefits.StatusFinalized, true},
		{benefits.StatusFinalized, benefits.StatusFinalized, true},
		{benefits.StatusFinalized, benefits.StatusAdvanced, false},
		{benefits.StatusAdvanced, benefits.StatusPending, false},
		{"", benefits.StatusAdvanced, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, benefits.CanTransition(tt.from, tt.to))
		})
	}
}

func TestLedger_Put_FinalizedToAdvanced_Refused(t *testing.T) {
	// GIVEN: A finalized record
	e := newEngine(t)
	ctx := context.Background()
	rec := benefits.CalculationRecord{Month: "2025-04", EmployeeID: "emp-1", Status: benefits.StatusFinalized}
	require.NoError(t, e.ledger.Put(ctx, rec))

	// WHEN: Writing it back as advanced
	rec.Status = benefits.StatusAdvanced
	err := e.ledger.Put(ctx, rec)

	// THEN: TransitionError, mapped to a conflict
	var te *benefits.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, benefits.StatusFinalized, te.From)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	assert.True(t, generic.IsConflict(err))
}

func TestLedger_Update_RollsBackOnError(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := e.ledger.Update(ctx, func(tx *benefits.Ledger) error {
		if err := tx.Put(ctx, benefits.CalculationRecord{Month: "2025-04", EmployeeID: "emp-1", Status: benefits.StatusAdvanced}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	rec, err := e.ledger.Get(ctx, "2025-04", "emp-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "write inside a failed update must be rolled back")
}

func TestLedger_Put_ConcurrentWrites_NeverDowngradeFinalized(t *testing.T) {
	// GIVEN: An advanced record
	e := newEngine(t)
	ctx := context.Background()
	rec := benefits.CalculationRecord{Month: "2025-04", EmployeeID: "emp-1", Status: benefits.StatusAdvanced}
	require.NoError(t, e.ledger.Put(ctx, rec))

	// WHEN: Advanced writes race one finalized write
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		r := rec
		if i == 25 {
			r.Status = benefits.StatusFinalized
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.ledger.Put(ctx, r)
		}()
	}
	wg.Wait()

	// THEN: The check and the write were atomic, so finalized stuck
	got, err := e.ledger.Get(ctx, "2025-04", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, benefits.StatusFinalized, got.Status)
}

func TestLedger_Put_InvalidMonth_Rejected(t *testing.T) {
	e := newEngine(t)

	err := e.ledger.Put(context.Background(), benefits.CalculationRecord{Month: "April", EmployeeID: "e", Status: benefits.StatusAdvanced})

	assert.ErrorIs(t, err, generic.ErrInvalidMonthKey)
}

// =============================================================================
// ANNUAL, SUMMARY, EVOLUTION
// =============================================================================

// seedYear finalizes January and February for two employees in two units.
// Only bia gets a physical basket and only in February (absent in January).
func seedYear(t *testing.T) (*engine, org.Employee, org.Employee) {
	t.Helper()
	e := newEngine(t)
	ana := e.seedScenarioA(t)
	bia := e.seedEmployee(t, "bia", org.Sector{
		DailyVT:         generic.MoneyFromInt(5),
		FoodBasketValue: generic.MoneyFromInt(150),
		FoodBasketKind:  org.BasketPhysical,
	}, generic.MoneyFromInt(10), generic.MoneyFromInt(5000))

	e.leave(t, bia, events.KindAbsence, "2025-01-10", "2025-01-10")
	e.adjust(t, ana, "2025-02", events.BenefitDinner, "80")

	e.runFinalize(t, "2025-01", 20, ana, bia)
	e.runFinalize(t, "2025-02", 20, ana, bia)
	e.runAdvance(t, "2025-02", 21, ana, bia)
	return e, ana, bia
}

func TestAnnual_GroupByEmployee(t *testing.T) {
	// GIVEN: Two finalized months and one advanced-only month
	e, ana, bia := seedYear(t)

	// WHEN: Summarizing 2025 per employee
	rows, err := e.annual.Summarize(context.Background(), 2025, benefits.GroupByEmployee, nil)
	require.NoError(t, err)

	// THEN: One row per employee, sorted by name, advanced months excluded
	require.Len(t, rows, 2)
	assert.Equal(t, ana.ID, rows[0].Key)
	assert.Equal(t, bia.ID, rows[1].Key)

	// ana: 20 days × (20 + 5) × 0.9 = 450 per month
	assertMoney(t, "900", rows[0].TotalVA, "ana totalVA")
	assertMoney(t, "40", rows[0].TotalVT, "ana totalVT")
	assertMoney(t, "80", rows[0].TotalMeal, "ana totalMeal")
	assert.Equal(t, 2, rows[0].Months)
	assert.Equal(t, 0, rows[0].PhysicalBaskets)

	// bia: 19 + 20 days × 10 VA
	assertMoney(t, "390", rows[1].TotalVA, "bia totalVA")
	assert.Equal(t, 1, rows[1].AbsenceDays)
	assert.Equal(t, 1, rows[1].PhysicalBaskets, "January basket voided by absence")
}

func TestAnnual_GroupByUnit(t *testing.T) {
	e, _, _ := seedYear(t)

	rows, err := e.annual.Summarize(context.Background(), 2025, benefits.GroupByUnit, nil)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Unit ana", rows[0].Name)
	assert.Equal(t, "unit-bia", rows[1].Key)
}

func TestAnnual_FilteredEmployees(t *testing.T) {
	e, _, bia := seedYear(t)

	rows, err := e.annual.Summarize(context.Background(), 2025, benefits.GroupByEmployee, []org.Employee{bia})
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, bia.ID, rows[0].Key)
}

func TestAnnual_DeletedEmployeeSkipped(t *testing.T) {
	e, ana, _ := seedYear(t)
	require.NoError(t, e.store.DeleteEmployee(context.Background(), ana.ID))

	rows, err := e.annual.Summarize(context.Background(), 2025, benefits.GroupByEmployee, nil)
	require.NoError(t, err)

	assert.Len(t, rows, 1)
}

func TestAnnual_OtherYearEmpty(t *testing.T) {
	e, _, _ := seedYear(t)

	rows, err := e.annual.Summarize(context.Background(), 2024, benefits.GroupByEmployee, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseGroupBy(t *testing.T) {
	g, err := benefits.ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, benefits.GroupByEmployee, g)

	g, err = benefits.ParseGroupBy("unit")
	require.NoError(t, err)
	assert.Equal(t, benefits.GroupByUnit, g)

	_, err = benefits.ParseGroupBy("sector")
	assert.Error(t, err)
}

func TestSummarizeMonth_CountsStatuses(t *testing.T) {
	// GIVEN: March advanced for two, one extra employee with nothing
	e, ana, bia := seedYear(t)
	carl := org.Employee{ID: "emp-carl", Name: "Carl"}

	records, err := e.ledger.Month(context.Background(), "2025-03")
	require.NoError(t, err)

	// WHEN: Summarizing March
	sum := benefits.SummarizeMonth("2025-03", records, []org.Employee{ana, bia, carl})

	// THEN
	assert.Equal(t, 3, sum.Employees)
	assert.Equal(t, 2, sum.Advanced)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 0, sum.Finalized)
	assertMoney(t, "0", sum.TotalDuedVA, "totalDuedVA")
	assert.True(t, sum.TotalAdvancedVA.IsPositive())
}

func TestSummarizeMonth_FinalizedTotals(t *testing.T) {
	e, ana, bia := seedYear(t)
	records, err := e.ledger.Month(context.Background(), "2025-02")
	require.NoError(t, err)

	sum := benefits.SummarizeMonth("2025-02", records, []org.Employee{ana, bia})

	assert.Equal(t, 2, sum.Finalized)
	assertMoney(t, "650", sum.TotalDuedVA, "totalDuedVA")
	assertMoney(t, "80", sum.TotalMeal, "totalMeal")
	assert.Equal(t, 1, sum.PhysicalBaskets)
}

func TestCostEvolution_OldestFirst(t *testing.T) {
	e, ana, bia := seedYear(t)

	points, err := benefits.CostEvolution(context.Background(), e.ledger, "2025-03", 3, []org.Employee{ana, bia})
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, generic.MonthKey("2025-01"), points[0].Month)
	assert.Equal(t, generic.MonthKey("2025-03"), points[2].Month)
	// ana 450 + bia 19 × 10
	assertMoney(t, "640", points[0].VA, "january VA")
	assertMoney(t, "0", points[2].VA, "advanced-only month")
}

func TestCostEvolution_DefaultsToSixMonths(t *testing.T) {
	e, ana, _ := seedYear(t)

	points, err := benefits.CostEvolution(context.Background(), e.ledger, "2025-02", 0, []org.Employee{ana})
	require.NoError(t, err)

	assert.Len(t, points, 6)
	assert.Equal(t, generic.MonthKey("2024-09"), points[0].Month)
}

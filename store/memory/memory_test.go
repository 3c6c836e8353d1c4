package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/snapshot"
	"github.com/warp/benefits-engine/store/memory"
)

func TestRecords_CallersDoNotShareState(t *testing.T) {
	// GIVEN: A stored advanced record
	m := memory.New()
	ctx := context.Background()
	rec := benefits.CalculationRecord{
		Month: "2025-04", EmployeeID: "e1", Status: benefits.StatusAdvanced,
		Advance: &benefits.AdvancePhase{TotalAdvancedVA: decimal.NewFromInt(495)},
	}
	require.NoError(t, m.PutRecord(ctx, rec))

	// WHEN: Mutating both the original and a fetched copy
	rec.Advance.TotalAdvancedVA = decimal.NewFromInt(1)
	got, err := m.GetRecord(ctx, "2025-04", "e1")
	require.NoError(t, err)
	got.Advance.TotalAdvancedVA = decimal.NewFromInt(2)

	// THEN: The stored record is unchanged
	again, err := m.GetRecord(ctx, "2025-04", "e1")
	require.NoError(t, err)
	assert.True(t, again.Advance.TotalAdvancedVA.Equal(decimal.NewFromInt(495)))
}

func TestWithRecordTx_RestoresOnError(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.PutRecord(ctx, benefits.CalculationRecord{Month: "2025-03", EmployeeID: "e1", Status: benefits.StatusFinalized}))

	err := m.WithRecordTx(ctx, func(tx benefits.RecordStore) error {
		require.NoError(t, tx.PutRecord(ctx, benefits.CalculationRecord{Month: "2025-04", EmployeeID: "e1", Status: benefits.StatusAdvanced}))
		return errors.New("abort")
	})

	require.Error(t, err)
	all, err := m.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, generic.MonthKey("2025-03"), all[0].Month)
}

func TestRecords_ByYear(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	for _, month := range []generic.MonthKey{"2024-12", "2025-01", "2025-02"} {
		require.NoError(t, m.PutRecord(ctx, benefits.CalculationRecord{Month: month, EmployeeID: "e1", Status: benefits.StatusAdvanced}))
	}

	recs, err := m.ListRecordsByYear(ctx, 2025)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, generic.MonthKey("2025-01"), recs[0].Month)
}

func TestEvents_SortedByDate(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	value := decimal.NewFromInt(10)
	require.NoError(t, m.SaveEvents(ctx, []events.Record{
		{ID: "b", EmployeeID: "e1", Type: events.KindAbsence, StartDate: "2025-04-20", EndDate: "2025-04-20"},
		{ID: "a", EmployeeID: "e1", Type: events.KindAbsence, StartDate: "2025-04-02", EndDate: "2025-04-02"},
		{ID: "c", EmployeeID: "e2", Type: events.KindAdjustment, ReferenceMonth: "2025-03", BenefitType: events.BenefitVT, Value: &value},
	}))

	mine, err := m.ListEventsByEmployee(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a", mine[0].ID)

	all, err := m.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", all[0].ID, "2025-03 sorts before 2025-04-02")
}

func TestCounts(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.SaveLocation(ctx, org.Location{ID: "l1", Name: "A", UnitID: "u1"}))
	require.NoError(t, m.SaveLocation(ctx, org.Location{ID: "l2", Name: "B", UnitID: "u1"}))
	require.NoError(t, m.SaveSector(ctx, org.Sector{ID: "s1", Name: "S", LocationID: "l1"}))

	n, err := m.CountLocationsInUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = m.CountSectorsInLocation(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRestoreAndReset(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.SaveUnit(ctx, org.Unit{ID: "old", Name: "Old"}))
	require.NoError(t, m.PutRecord(ctx, benefits.CalculationRecord{Month: "2025-04", EmployeeID: "e1", Status: benefits.StatusAdvanced}))
	require.NoError(t, m.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: generic.NewDate(2025, 1, 1), Name: "Ano Novo", Recurring: true}))

	require.NoError(t, m.Restore(ctx, snapshot.State{Units: []org.Unit{{ID: "new", Name: "New"}}}))

	units, err := m.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "new", units[0].ID)
	recs, err := m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "records survive a restore")
	in2030, err := m.HolidaysIn(ctx, 2030)
	require.NoError(t, err)
	assert.Len(t, in2030, 1, "recurring holiday applies every year")

	require.NoError(t, m.Reset(ctx))
	recs, err = m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	hols, err := m.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Empty(t, hols)
}

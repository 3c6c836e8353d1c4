package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/store/postgres"
)

// newTestStore connects to TEST_DATABASE_URL and empties the calculations
// table. Tests are skipped when no database is configured.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := postgres.New(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Reset(ctx))
	return store
}

func record(month, employeeID string, status benefits.Status) benefits.CalculationRecord {
	return benefits.CalculationRecord{
		Month:      generic.MonthKey(month),
		EmployeeID: employeeID,
		Status:     status,
		Advance: &benefits.AdvancePhase{
			DaysPlannedWorked: 22,
			TotalAdvancedVA:   decimal.RequireFromString("495.00"),
		},
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutRecord(ctx, record("2025-04", "e1", benefits.StatusAdvanced)))

	got, err := store.GetRecord(ctx, "2025-04", "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, benefits.StatusAdvanced, got.Status)
	assert.True(t, got.Advance.TotalAdvancedVA.Equal(decimal.NewFromInt(495)))
	assert.Nil(t, got.Settlement)

	missing, err := store.GetRecord(ctx, "2025-04", "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceRecords(ctx, []benefits.CalculationRecord{
		record("2024-12", "e1", benefits.StatusFinalized),
		record("2025-01", "e1", benefits.StatusFinalized),
		record("2025-01", "e2", benefits.StatusAdvanced),
	}))

	recs, err := store.ListRecordsByYear(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	month, err := store.ListRecordsByMonth(ctx, "2024-12")
	require.NoError(t, err)
	assert.Len(t, month, 1)
}

func TestWithRecordTx_Rollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithRecordTx(ctx, func(tx benefits.RecordStore) error {
		if err := tx.PutRecord(ctx, record("2025-04", "e1", benefits.StatusAdvanced)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	all, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedger_TransitionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ledger := benefits.NewLedger(store)
	require.NoError(t, ledger.Put(ctx, record("2025-04", "e1", benefits.StatusFinalized)))

	err := ledger.Put(ctx, record("2025-04", "e1", benefits.StatusAdvanced))

	var te *benefits.TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestWithRecordTx_ConcurrentReadModifyWrite_NoLostUpdates(t *testing.T) {
	// GIVEN: An advanced record with 0 planned days
	store := newTestStore(t)
	ctx := context.Background()
	start := record("2025-02", "e1", benefits.StatusAdvanced)
	start.Advance.DaysPlannedWorked = 0
	require.NoError(t, store.PutRecord(ctx, start))

	// WHEN: Many transactions read the record and write it back incremented
	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithRecordTx(ctx, func(tx benefits.RecordStore) error {
				rec, err := tx.GetRecord(ctx, "2025-02", "e1")
				if err != nil {
					return err
				}
				rec.Advance.DaysPlannedWorked++
				return tx.PutRecord(ctx, *rec)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// THEN: Every increment landed
	got, err := store.GetRecord(ctx, "2025-02", "e1")
	require.NoError(t, err)
	assert.Equal(t, workers, got.Advance.DaysPlannedWorked)
}

func TestLedger_ConcurrentAdvanceAndFinalize_NeverDowngrades(t *testing.T) {
	// GIVEN: An advanced month
	store := newTestStore(t)
	ctx := context.Background()
	ledger := benefits.NewLedger(store)
	require.NoError(t, ledger.Put(ctx, record("2025-02", "e1", benefits.StatusAdvanced)))

	// WHEN: Advance recomputes race a finalize of the same month
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		status := benefits.StatusAdvanced
		if i == 6 {
			status = benefits.StatusFinalized
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Update(ctx, func(tx *benefits.Ledger) error {
				return tx.Put(ctx, record("2025-02", "e1", status))
			})
			if err != nil {
				var te *benefits.TransitionError
				assert.ErrorAs(t, err, &te, "only refused transitions may fail")
			}
		}()
	}
	wg.Wait()

	// THEN: The finalize was not overwritten by a later advance
	got, err := ledger.Get(ctx, "2025-02", "e1")
	require.NoError(t, err)
	assert.Equal(t, benefits.StatusFinalized, got.Status)
}

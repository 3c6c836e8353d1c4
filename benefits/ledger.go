package benefits

import (
	"context"
	"fmt"

	"github.com/warp/benefits-engine/generic"
)

// =============================================================================
// RECORD STORE - Injected persistence
// =============================================================================

// RecordStore persists calculation records. GetRecord returns (nil, nil)
// when no record exists for the key.
type RecordStore interface {
	GetRecord(ctx context.Context, month generic.MonthKey, employeeID string) (*CalculationRecord, error)
	PutRecord(ctx context.Context, rec CalculationRecord) error
	ListRecordsByMonth(ctx context.Context, month generic.MonthKey) ([]CalculationRecord, error)
	ListRecordsByYear(ctx context.Context, year int) ([]CalculationRecord, error)
	ListRecords(ctx context.Context) ([]CalculationRecord, error)
}

// TxRecordStore runs fn atomically: every PutRecord inside fn lands or none
// does. Implementations serialize concurrent transactions.
type TxRecordStore interface {
	RecordStore
	WithRecordTx(ctx context.Context, fn func(RecordStore) error) error
}

// =============================================================================
// LEDGER - Status-checked record access
// =============================================================================

// Ledger validates the status transition of every write against the stored
// record.
type Ledger struct {
	store RecordStore
	tx    TxRecordStore
}

func NewLedger(store TxRecordStore) *Ledger {
	return &Ledger{store: store, tx: store}
}

// Get returns the record or nil.
func (l *Ledger) Get(ctx context.Context, month generic.MonthKey, employeeID string) (*CalculationRecord, error) {
	return l.store.GetRecord(ctx, month, employeeID)
}

// Put writes rec after checking CanTransition(stored.Status, rec.Status).
// On a root ledger the check and the write share one store transaction.
func (l *Ledger) Put(ctx context.Context, rec CalculationRecord) error {
	if l.tx != nil {
		return l.Update(ctx, func(tx *Ledger) error {
			return tx.Put(ctx, rec)
		})
	}
	if !rec.Month.Valid() {
		return fmt.Errorf("%w: %q", generic.ErrInvalidMonthKey, rec.Month)
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", generic.ErrInvalidTransition, rec.Status)
	}

	existing, err := l.store.GetRecord(ctx, rec.Month, rec.EmployeeID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	from := StatusPending
	if existing != nil {
		from = existing.Status
	}
	if !CanTransition(from, rec.Status) {
		return &TransitionError{Month: rec.Month, EmployeeID: rec.EmployeeID, From: from, To: rec.Status}
	}
	return l.store.PutRecord(ctx, rec)
}

func (l *Ledger) Month(ctx context.Context, month generic.MonthKey) ([]CalculationRecord, error) {
	return l.store.ListRecordsByMonth(ctx, month)
}

func (l *Ledger) Year(ctx context.Context, year int) ([]CalculationRecord, error) {
	return l.store.ListRecordsByYear(ctx, year)
}

func (l *Ledger) All(ctx context.Context) ([]CalculationRecord, error) {
	return l.store.ListRecords(ctx)
}

// Update runs fn inside one store transaction. The Ledger handed to fn reads
// and writes through that transaction.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Ledger) error) error {
	if l.tx == nil {
		return fn(l)
	}
	return l.tx.WithRecordTx(ctx, func(s RecordStore) error {
		return fn(&Ledger{store: s})
	})
}

// TransitionError is returned when a write would move a record backwards.
type TransitionError struct {
	Month      generic.MonthKey
	EmployeeID string
	From, To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record %s/%s: cannot move from %s to %s", e.Month, e.EmployeeID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return generic.ErrInvalidTransition
}

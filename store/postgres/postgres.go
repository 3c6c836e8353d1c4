// Package postgres keeps calculation records in PostgreSQL. It backs the
// ledger only; the hierarchy, events and holidays stay in SQLite.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/generic"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and creates the table.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS calculations (
			month TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			status TEXT NOT NULL,
			advance JSONB,
			settlement JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (month, employee_id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	return getRecord(ctx, s.pool, month, employeeID)
}

func (s *Store) PutRecord(ctx context.Context, rec benefits.CalculationRecord) error {
	return putRecord(ctx, s.pool, rec)
}

func (s *Store) ListRecordsByMonth(ctx context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, s.pool, `WHERE month = $1`, month.String())
}

func (s *Store) ListRecordsByYear(ctx context.Context, year int) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, s.pool, `WHERE month LIKE $1`, fmt.Sprintf("%04d-%%", year))
}

func (s *Store) ListRecords(ctx context.Context) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, s.pool, ``)
}

// WithRecordTx runs fn inside a transaction, rolling back when fn fails.
// Ledger transactions are serialized by withTransaction, so a finalize never
// reads an advance that a concurrent recompute is about to overwrite.
func (s *Store) WithRecordTx(ctx context.Context, fn func(benefits.RecordStore) error) error {
	return s.withTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// ReplaceRecords drops every record and writes recs atomically.
func (s *Store) ReplaceRecords(ctx context.Context, recs []benefits.CalculationRecord) error {
	return s.withTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM calculations`); err != nil {
			return err
		}
		for _, r := range recs {
			if err := putRecord(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset removes every record.
func (s *Store) Reset(ctx context.Context) error {
	return s.withTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM calculations`)
		return err
	})
}

// ledgerLockKey identifies the advisory lock held by every ledger
// transaction. Holding it for the whole transaction makes read-check-write
// sequences atomic across connections and processes; the lock is released
// on commit or rollback.
const ledgerLockKey int64 = 0x62656e6566697473

func (s *Store) withTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("lock ledger: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetRecord(ctx context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	return getRecord(ctx, t.tx, month, employeeID)
}

func (t *txStore) PutRecord(ctx context.Context, rec benefits.CalculationRecord) error {
	return putRecord(ctx, t.tx, rec)
}

func (t *txStore) ListRecordsByMonth(ctx context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, t.tx, `WHERE month = $1`, month.String())
}

func (t *txStore) ListRecordsByYear(ctx context.Context, year int) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, t.tx, `WHERE month LIKE $1`, fmt.Sprintf("%04d-%%", year))
}

func (t *txStore) ListRecords(ctx context.Context) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, t.tx, ``)
}

// =============================================================================
// QUERIES
// =============================================================================

func getRecord(ctx context.Context, q Querier, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	row := q.QueryRow(ctx, `
		SELECT month, employee_id, status, advance, settlement
		FROM calculations WHERE month = $1 AND employee_id = $2`, month.String(), employeeID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func putRecord(ctx context.Context, q Querier, rec benefits.CalculationRecord) error {
	advance, err := encodePhase(rec.Advance)
	if err != nil {
		return err
	}
	settlement, err := encodePhase(rec.Settlement)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO calculations (month, employee_id, status, advance, settlement, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (month, employee_id) DO UPDATE SET
			status = EXCLUDED.status,
			advance = EXCLUDED.advance,
			settlement = EXCLUDED.settlement,
			updated_at = now()`,
		rec.Month.String(), rec.EmployeeID, string(rec.Status), advance, settlement)
	if err != nil {
		return fmt.Errorf("save calculation %s/%s: %w", rec.Month, rec.EmployeeID, err)
	}
	return nil
}

func queryRecords(ctx context.Context, q Querier, where string, args ...any) ([]benefits.CalculationRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT month, employee_id, status, advance, settlement
		FROM calculations `+where+`
		ORDER BY month, employee_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []benefits.CalculationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (benefits.CalculationRecord, error) {
	var (
		rec                 benefits.CalculationRecord
		month, status       string
		advance, settlement []byte
	)
	if err := row.Scan(&month, &rec.EmployeeID, &status, &advance, &settlement); err != nil {
		return rec, err
	}
	rec.Month = generic.MonthKey(month)
	rec.Status = benefits.Status(status)
	if advance != nil {
		rec.Advance = &benefits.AdvancePhase{}
		if err := json.Unmarshal(advance, rec.Advance); err != nil {
			return rec, fmt.Errorf("decode advance: %w", err)
		}
	}
	if settlement != nil {
		rec.Settlement = &benefits.Settlement{}
		if err := json.Unmarshal(settlement, rec.Settlement); err != nil {
			return rec, fmt.Errorf("decode settlement: %w", err)
		}
	}
	return rec, nil
}

func encodePhase[T any](phase *T) ([]byte, error) {
	if phase == nil {
		return nil, nil
	}
	data, err := json.Marshal(phase)
	if err != nil {
		return nil, fmt.Errorf("encode phase: %w", err)
	}
	return data, nil
}

/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Durable local persistence for the organization hierarchy, events,
  calculation records and the holiday calendar. The same Store satisfies
  org.Repository, events.Store, benefits.TxRecordStore and the snapshot
  restore contracts, so one file holds the whole application state.

INTERFACES IMPLEMENTED:
  org.Repository:          units, locations, sectors, employees
  events.Store:            leave and adjustment events
  benefits.TxRecordStore:  calculation records, keyed (month, employee)
  snapshot.Target:         wholesale restore of hierarchy and events
  snapshot.RecordTarget:   wholesale restore of calculation records

KEY TABLES:
  units, locations, sectors, employees:  hierarchy, decimals stored as TEXT
  events:        flat event records, one row per event
  calculations:  PRIMARY KEY(month, employee_id), each phase as JSON
  holidays:      calendar entries, recurring or dated

REFERENTIAL INTEGRITY:
  No foreign keys. Deletion guards live in org.Service, and a restored
  backup may legitimately carry dangling references.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, which
  also keeps ":memory:" databases shared across calls. WithRecordTx hands
  out a view bound to the *sql.Tx so callbacks never re-enter the lock.

USAGE:
  store, err := sqlite.New("./data/benefits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := benefits.NewLedger(store)

SEE ALSO:
  - store/memory: In-memory implementation for tests
  - store/postgres: Ledger-only PostgreSQL backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/snapshot"
)

// Store implements every persistence interface using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and migrates the schema. Use ":memory:"
// for a throwaway database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = dbPath + "?_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_daily_va TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locations_unit ON locations(unit_id);

	CREATE TABLE IF NOT EXISTS sectors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location_id TEXT NOT NULL,
		override_daily_va TEXT NOT NULL DEFAULT '0',
		daily_vt TEXT NOT NULL DEFAULT '0',
		va_discount_percent TEXT NOT NULL DEFAULT '0',
		food_basket_value TEXT NOT NULL DEFAULT '0',
		food_basket_kind TEXT NOT NULL DEFAULT 'none'
	);

	CREATE INDEX IF NOT EXISTS idx_sectors_location ON sectors(location_id);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		registration_number TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		salary TEXT NOT NULL DEFAULT '0',
		sector_id TEXT NOT NULL,
		sector_name TEXT NOT NULL DEFAULT '',
		location_name TEXT NOT NULL DEFAULT '',
		unit_name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_employees_sector ON employees(sector_id);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		reference_month TEXT,
		benefit_type TEXT,
		value TEXT,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_events_employee ON events(employee_id);

	-- One row per (month, employee); phases stored as JSON
	CREATE TABLE IF NOT EXISTS calculations (
		month TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		status TEXT NOT NULL,
		advance_json TEXT,
		settlement_json TEXT,
		PRIMARY KEY (month, employee_id)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY (org.Directory interface)
// =============================================================================

func (s *Store) GetUnit(ctx context.Context, id string) (*org.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u org.Unit
	err := s.db.QueryRowContext(ctx, `SELECT id, name, base_daily_va FROM units WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.BaseDailyVA)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (*org.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l org.Location
	err := s.db.QueryRowContext(ctx, `SELECT id, name, unit_id FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.UnitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const sectorColumns = `id, name, location_id, override_daily_va, daily_vt, va_discount_percent, food_basket_value, food_basket_kind`

func scanSector(row interface{ Scan(...any) error }) (org.Sector, error) {
	var sec org.Sector
	err := row.Scan(&sec.ID, &sec.Name, &sec.LocationID, &sec.OverrideDailyVA, &sec.DailyVT,
		&sec.VADiscountPercent, &sec.FoodBasketValue, &sec.FoodBasketKind)
	return sec, err
}

func (s *Store) GetSector(ctx context.Context, id string) (*org.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, err := scanSector(s.db.QueryRowContext(ctx, `SELECT `+sectorColumns+` FROM sectors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

const employeeColumns = `id, registration_number, name, salary, sector_id, sector_name, location_name, unit_name`

func scanEmployee(row interface{ Scan(...any) error }) (org.Employee, error) {
	var e org.Employee
	err := row.Scan(&e.ID, &e.RegistrationNumber, &e.Name, &e.Salary, &e.SectorID,
		&e.SectorName, &e.LocationName, &e.UnitName)
	return e, err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*org.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := scanEmployee(s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListUnits(ctx context.Context) ([]org.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, base_daily_va FROM units ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []org.Unit{}
	for rows.Next() {
		var u org.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.BaseDailyVA); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListLocations(ctx context.Context) ([]org.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, unit_id FROM locations ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []org.Location{}
	for rows.Next() {
		var l org.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.UnitID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListSectors(ctx context.Context) ([]org.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+sectorColumns+` FROM sectors ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []org.Sector{}
	for rows.Next() {
		sec, err := scanSector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context) ([]org.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []org.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// REPOSITORY WRITES (org.Repository interface)
// =============================================================================

func (s *Store) SaveUnit(ctx context.Context, u org.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUnit(ctx, s.db, u)
}

func saveUnit(ctx context.Context, q querier, u org.Unit) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO units (id, name, base_daily_va) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_daily_va = excluded.base_daily_va
	`, u.ID, u.Name, u.BaseDailyVA.String())
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

func (s *Store) SaveLocation(ctx context.Context, l org.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLocation(ctx, s.db, l)
}

func saveLocation(ctx context.Context, q querier, l org.Location) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO locations (id, name, unit_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, unit_id = excluded.unit_id
	`, l.ID, l.Name, l.UnitID)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

func (s *Store) SaveSector(ctx context.Context, sec org.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSector(ctx, s.db, sec)
}

func saveSector(ctx context.Context, q querier, sec org.Sector) error {
	kind := sec.FoodBasketKind
	if kind == "" {
		kind = org.BasketNone
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO sectors (`+sectorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location_id = excluded.location_id,
			override_daily_va = excluded.override_daily_va,
			daily_vt = excluded.daily_vt,
			va_discount_percent = excluded.va_discount_percent,
			food_basket_value = excluded.food_basket_value,
			food_basket_kind = excluded.food_basket_kind
	`, sec.ID, sec.Name, sec.LocationID, sec.OverrideDailyVA.String(), sec.DailyVT.String(),
		sec.VADiscountPercent.String(), sec.FoodBasketValue.String(), string(kind))
	if err != nil {
		return fmt.Errorf("failed to save sector: %w", err)
	}
	return nil
}

func (s *Store) SaveEmployee(ctx context.Context, e org.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, e)
}

func saveEmployee(ctx context.Context, q querier, e org.Employee) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			registration_number = excluded.registration_number,
			name = excluded.name,
			salary = excluded.salary,
			sector_id = excluded.sector_id,
			sector_name = excluded.sector_name,
			location_name = excluded.location_name,
			unit_name = excluded.unit_name
	`, e.ID, e.RegistrationNumber, e.Name, e.Salary.String(), e.SectorID,
		e.SectorName, e.LocationName, e.UnitName)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "units", id)
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "locations", id)
}

func (s *Store) DeleteSector(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "sectors", id)
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "employees", id)
}

// deleteByID is only called with the fixed table names above.
func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (s *Store) CountLocationsInUnit(ctx context.Context, unitID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM locations WHERE unit_id = ?`, unitID)
}

func (s *Store) CountSectorsInLocation(ctx context.Context, locationID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM sectors WHERE location_id = ?`, locationID)
}

func (s *Store) CountEmployeesInSector(ctx context.Context, sectorID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM employees WHERE sector_id = ?`, sectorID)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// EVENTS (events.Store interface)
// =============================================================================

const eventColumns = `id, employee_id, type, start_date, end_date, reference_month, benefit_type, value, notes`

func (s *Store) SaveEvent(ctx context.Context, r events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEvent(ctx, s.db, r)
}

// SaveEvents writes the batch atomically.
func (s *Store) SaveEvents(ctx context.Context, rs []events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, r := range rs {
		if err := saveEvent(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func saveEvent(ctx context.Context, q querier, r events.Record) error {
	var value sql.NullString
	if r.Value != nil {
		value = sql.NullString{String: r.Value.String(), Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			type = excluded.type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			reference_month = excluded.reference_month,
			benefit_type = excluded.benefit_type,
			value = excluded.value,
			notes = excluded.notes
	`, r.ID, r.EmployeeID, string(r.Type), nullString(r.StartDate), nullString(r.EndDate),
		nullString(r.ReferenceMonth), nullString(string(r.BenefitType)), value, r.Notes)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "events", id)
}

func (s *Store) ListEvents(ctx context.Context) ([]events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(ctx, s.db, `SELECT `+eventColumns+` FROM events
		ORDER BY COALESCE(start_date, reference_month), id`)
}

func (s *Store) ListEventsByEmployee(ctx context.Context, employeeID string) ([]events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(ctx, s.db, `SELECT `+eventColumns+` FROM events WHERE employee_id = ?
		ORDER BY COALESCE(start_date, reference_month), id`, employeeID)
}

func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]events.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []events.Record{}
	for rows.Next() {
		r, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEvent(row interface{ Scan(...any) error }) (events.Record, error) {
	var (
		r                                  events.Record
		kind                               string
		start, end, month, benefit, amount sql.NullString
	)
	if err := row.Scan(&r.ID, &r.EmployeeID, &kind, &start, &end, &month, &benefit, &amount, &r.Notes); err != nil {
		return events.Record{}, err
	}
	r.Type = events.Kind(kind)
	r.StartDate = start.String
	r.EndDate = end.String
	r.ReferenceMonth = month.String
	r.BenefitType = events.BenefitType(benefit.String)
	if amount.Valid {
		v, err := decimal.NewFromString(amount.String)
		if err != nil {
			return events.Record{}, fmt.Errorf("event %s: bad value %q: %w", r.ID, amount.String, err)
		}
		r.Value = &v
	}
	return r, nil
}

// =============================================================================
// CALCULATION RECORDS (benefits.TxRecordStore interface)
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, month, employeeID)
}

func (s *Store) PutRecord(ctx context.Context, rec benefits.CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putRecord(ctx, s.db, rec)
}

func (s *Store) ListRecordsByMonth(ctx context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRecords(ctx, s.db, `WHERE month = ?`, month.String())
}

func (s *Store) ListRecordsByYear(ctx context.Context, year int) ([]benefits.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRecords(ctx, s.db, `WHERE month LIKE ?`, fmt.Sprintf("%04d-%%", year))
}

func (s *Store) ListRecords(ctx context.Context) ([]benefits.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRecords(ctx, s.db, ``)
}

// ReplaceRecords drops every calculation and writes recs in one transaction.
func (s *Store) ReplaceRecords(ctx context.Context, recs []benefits.CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM calculations`); err != nil {
		return err
	}
	for _, r := range recs {
		if err := putRecord(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func getRecord(ctx context.Context, q querier, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	recs, err := queryRecords(ctx, q, `WHERE month = ? AND employee_id = ?`, month.String(), employeeID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func putRecord(ctx context.Context, q querier, rec benefits.CalculationRecord) error {
	advance, err := marshalPhase(rec.Advance)
	if err != nil {
		return err
	}
	settlement, err := marshalPhase(rec.Settlement)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO calculations (month, employee_id, status, advance_json, settlement_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(month, employee_id) DO UPDATE SET
			status = excluded.status,
			advance_json = excluded.advance_json,
			settlement_json = excluded.settlement_json
	`, rec.Month.String(), rec.EmployeeID, string(rec.Status), advance, settlement)
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}
	return nil
}

func marshalPhase[T any](phase *T) (sql.NullString, error) {
	if phase == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(phase)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode phase: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func queryRecords(ctx context.Context, q querier, where string, args ...any) ([]benefits.CalculationRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT month, employee_id, status, advance_json, settlement_json
		FROM calculations `+where+`
		ORDER BY month, employee_id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []benefits.CalculationRecord{}
	for rows.Next() {
		var (
			rec                 benefits.CalculationRecord
			month, status       string
			advance, settlement sql.NullString
		)
		if err := rows.Scan(&month, &rec.EmployeeID, &status, &advance, &settlement); err != nil {
			return nil, err
		}
		rec.Month = generic.MonthKey(month)
		rec.Status = benefits.Status(status)
		if advance.Valid {
			rec.Advance = &benefits.AdvancePhase{}
			if err := json.Unmarshal([]byte(advance.String), rec.Advance); err != nil {
				return nil, fmt.Errorf("decode advance %s/%s: %w", month, rec.EmployeeID, err)
			}
		}
		if settlement.Valid {
			rec.Settlement = &benefits.Settlement{}
			if err := json.Unmarshal([]byte(settlement.String), rec.Settlement); err != nil {
				return nil, fmt.Errorf("decode settlement %s/%s: %w", month, rec.EmployeeID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (benefits.TxRecordStore interface)
// =============================================================================

// WithRecordTx executes fn within a database transaction.
func (s *Store) WithRecordTx(ctx context.Context, fn func(benefits.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetRecord(ctx context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	return getRecord(ctx, ts.tx, month, employeeID)
}

func (ts *txStore) PutRecord(ctx context.Context, rec benefits.CalculationRecord) error {
	return putRecord(ctx, ts.tx, rec)
}

func (ts *txStore) ListRecordsByMonth(ctx context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, ts.tx, `WHERE month = ?`, month.String())
}

func (ts *txStore) ListRecordsByYear(ctx context.Context, year int) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, ts.tx, `WHERE month LIKE ?`, fmt.Sprintf("%04d-%%", year))
}

func (ts *txStore) ListRecords(ctx context.Context) ([]benefits.CalculationRecord, error) {
	return queryRecords(ctx, ts.tx, ``)
}

// =============================================================================
// RESTORE (snapshot.Target interface)
// =============================================================================

// Restore replaces the hierarchy and events in one transaction. Holidays
// and calculations are left alone.
func (s *Store) Restore(ctx context.Context, st snapshot.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"units", "locations", "sectors", "employees", "events"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	for _, u := range st.Units {
		if err := saveUnit(ctx, sqlTx, u); err != nil {
			return err
		}
	}
	for _, l := range st.Locations {
		if err := saveLocation(ctx, sqlTx, l); err != nil {
			return err
		}
	}
	for _, sec := range st.Sectors {
		if err := saveSector(ctx, sqlTx, sec); err != nil {
			return err
		}
	}
	for _, e := range st.Employees {
		if err := saveEmployee(ctx, sqlTx, e); err != nil {
			return err
		}
	}
	for _, r := range st.Events {
		if err := saveEvent(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// HOLIDAYS (generic.HolidayCalendar interface)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, name = excluded.name, recurring = excluded.recurring
	`, h.ID, h.Date.String(), h.Name, h.Recurring)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "holidays", id)
}

func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []generic.Holiday{}
	for rows.Next() {
		var (
			h    generic.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HolidaysIn returns recurring holidays and those dated in year.
func (s *Store) HolidaysIn(ctx context.Context, year int) ([]generic.Holiday, error) {
	all, err := s.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	out := []generic.Holiday{}
	for _, h := range all {
		if h.Recurring || h.Date.Year() == year {
			out = append(out, h)
		}
	}
	return out, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"calculations", "events", "employees", "sectors", "locations", "units", "holidays"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

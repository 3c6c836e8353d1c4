// Package memory provides an in-memory implementation of every store
// interface, for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/snapshot"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	units     map[string]org.Unit
	locations map[string]org.Location
	sectors   map[string]org.Sector
	employees map[string]org.Employee
	events    map[string]events.Record
	records   map[recordKey]benefits.CalculationRecord
	holidays  map[string]generic.Holiday
}

type recordKey struct {
	Month      generic.MonthKey
	EmployeeID string
}

func New() *Memory {
	m := &Memory{}
	m.clear()
	return m
}

func (m *Memory) clear() {
	m.units = make(map[string]org.Unit)
	m.locations = make(map[string]org.Location)
	m.sectors = make(map[string]org.Sector)
	m.employees = make(map[string]org.Employee)
	m.events = make(map[string]events.Record)
	m.records = make(map[recordKey]benefits.CalculationRecord)
	m.holidays = make(map[string]generic.Holiday)
}

// -----------------------------------------------------------------------------
// Directory
// -----------------------------------------------------------------------------

func (m *Memory) GetUnit(_ context.Context, id string) (*org.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.units[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *Memory) GetLocation(_ context.Context, id string) (*org.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.locations[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (m *Memory) GetSector(_ context.Context, id string) (*org.Sector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sectors[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*org.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.employees[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) ListUnits(_ context.Context) ([]org.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]org.Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[i].ID, out[j].Name, out[j].ID) })
	return out, nil
}

func (m *Memory) ListLocations(_ context.Context) ([]org.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]org.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[i].ID, out[j].Name, out[j].ID) })
	return out, nil
}

func (m *Memory) ListSectors(_ context.Context) ([]org.Sector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]org.Sector, 0, len(m.sectors))
	for _, s := range m.sectors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[i].ID, out[j].Name, out[j].ID) })
	return out, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]org.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]org.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[i].ID, out[j].Name, out[j].ID) })
	return out, nil
}

func byName(ni, idi, nj, idj string) bool {
	li, lj := strings.ToLower(ni), strings.ToLower(nj)
	if li != lj {
		return li < lj
	}
	return idi < idj
}

// -----------------------------------------------------------------------------
// Repository writes
// -----------------------------------------------------------------------------

func (m *Memory) SaveUnit(_ context.Context, u org.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
	return nil
}

func (m *Memory) SaveLocation(_ context.Context, l org.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[l.ID] = l
	return nil
}

func (m *Memory) SaveSector(_ context.Context, s org.Sector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectors[s.ID] = s
	return nil
}

func (m *Memory) SaveEmployee(_ context.Context, e org.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) DeleteUnit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, id)
	return nil
}

func (m *Memory) DeleteLocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, id)
	return nil
}

func (m *Memory) DeleteSector(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sectors, id)
	return nil
}

func (m *Memory) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.employees, id)
	return nil
}

func (m *Memory) CountLocationsInUnit(_ context.Context, unitID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, l := range m.locations {
		if l.UnitID == unitID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountSectorsInLocation(_ context.Context, locationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sectors {
		if s.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountEmployeesInSector(_ context.Context, sectorID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.employees {
		if e.SectorID == sectorID {
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (m *Memory) SaveEvent(_ context.Context, r events.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[r.ID] = r
	return nil
}

// SaveEvents writes the whole batch under one lock.
func (m *Memory) SaveEvents(_ context.Context, rs []events.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		m.events[r.ID] = r
	}
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*events.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.events[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *Memory) ListEvents(_ context.Context) ([]events.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEvents(func(events.Record) bool { return true }), nil
}

func (m *Memory) ListEventsByEmployee(_ context.Context, employeeID string) ([]events.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEvents(func(r events.Record) bool { return r.EmployeeID == employeeID }), nil
}

func (m *Memory) filterEvents(keep func(events.Record) bool) []events.Record {
	out := make([]events.Record, 0)
	for _, r := range m.events {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := eventSortKey(out[i]), eventSortKey(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func eventSortKey(r events.Record) string {
	if r.StartDate != "" {
		return r.StartDate
	}
	return r.ReferenceMonth
}

// -----------------------------------------------------------------------------
// Calculation records
// -----------------------------------------------------------------------------

func (m *Memory) GetRecord(_ context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRecordLocked(month, employeeID), nil
}

func (m *Memory) PutRecord(_ context.Context, rec benefits.CalculationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putRecordLocked(rec)
	return nil
}

func (m *Memory) ListRecordsByMonth(_ context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterRecordsLocked(func(k recordKey) bool { return k.Month == month }), nil
}

func (m *Memory) ListRecordsByYear(_ context.Context, year int) ([]benefits.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterRecordsLocked(func(k recordKey) bool { return k.Month.InYear(year) }), nil
}

func (m *Memory) ListRecords(_ context.Context) ([]benefits.CalculationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterRecordsLocked(func(recordKey) bool { return true }), nil
}

// ReplaceRecords drops every record and writes recs.
func (m *Memory) ReplaceRecords(_ context.Context, recs []benefits.CalculationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[recordKey]benefits.CalculationRecord, len(recs))
	for _, r := range recs {
		m.putRecordLocked(r)
	}
	return nil
}

func (m *Memory) getRecordLocked(month generic.MonthKey, employeeID string) *benefits.CalculationRecord {
	rec, ok := m.records[recordKey{Month: month, EmployeeID: employeeID}]
	if !ok {
		return nil
	}
	rec = cloneRecord(rec)
	return &rec
}

func (m *Memory) putRecordLocked(rec benefits.CalculationRecord) {
	m.records[recordKey{Month: rec.Month, EmployeeID: rec.EmployeeID}] = cloneRecord(rec)
}

func (m *Memory) filterRecordsLocked(keep func(recordKey) bool) []benefits.CalculationRecord {
	out := make([]benefits.CalculationRecord, 0)
	for k, r := range m.records {
		if keep(k) {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

// cloneRecord copies the phase pointers so callers never share state with
// the store.
func cloneRecord(r benefits.CalculationRecord) benefits.CalculationRecord {
	if r.Advance != nil {
		a := *r.Advance
		r.Advance = &a
	}
	if r.Settlement != nil {
		s := *r.Settlement
		r.Settlement = &s
	}
	return r
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithRecordTx runs fn under the write lock. Record writes made by fn are
// rolled back from a snapshot when fn fails.
func (m *Memory) WithRecordTx(ctx context.Context, fn func(benefits.RecordStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[recordKey]benefits.CalculationRecord, len(m.records))
	for k, v := range m.records {
		saved[k] = v
	}

	if err := fn(&txView{parent: m}); err != nil {
		m.records = saved
		return err
	}
	return nil
}

// txView reads and writes the parent maps without locking; the caller holds
// the lock for the whole transaction.
type txView struct {
	parent *Memory
}

func (tv *txView) GetRecord(_ context.Context, month generic.MonthKey, employeeID string) (*benefits.CalculationRecord, error) {
	return tv.parent.getRecordLocked(month, employeeID), nil
}

func (tv *txView) PutRecord(_ context.Context, rec benefits.CalculationRecord) error {
	tv.parent.putRecordLocked(rec)
	return nil
}

func (tv *txView) ListRecordsByMonth(_ context.Context, month generic.MonthKey) ([]benefits.CalculationRecord, error) {
	return tv.parent.filterRecordsLocked(func(k recordKey) bool { return k.Month == month }), nil
}

func (tv *txView) ListRecordsByYear(_ context.Context, year int) ([]benefits.CalculationRecord, error) {
	return tv.parent.filterRecordsLocked(func(k recordKey) bool { return k.Month.InYear(year) }), nil
}

func (tv *txView) ListRecords(_ context.Context) ([]benefits.CalculationRecord, error) {
	return tv.parent.filterRecordsLocked(func(recordKey) bool { return true }), nil
}

// =============================================================================
// RESTORE & HOLIDAYS
// =============================================================================

// Restore replaces the hierarchy and events. Holidays and records are kept.
func (m *Memory) Restore(_ context.Context, s snapshot.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, holidays := m.records, m.holidays
	m.clear()
	m.records, m.holidays = records, holidays

	for _, u := range s.Units {
		m.units[u.ID] = u
	}
	for _, l := range s.Locations {
		m.locations[l.ID] = l
	}
	for _, sec := range s.Sectors {
		m.sectors[sec.ID] = sec
	}
	for _, e := range s.Employees {
		m.employees[e.ID] = e
	}
	for _, r := range s.Events {
		m.events[r.ID] = r
	}
	return nil
}

// Reset wipes everything, holidays included.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, id)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// HolidaysIn implements generic.HolidayCalendar.
func (m *Memory) HolidaysIn(_ context.Context, year int) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []generic.Holiday{}
	for _, h := range m.holidays {
		if h.Recurring || h.Date.Year() == year {
			out = append(out, h)
		}
	}
	return out, nil
}

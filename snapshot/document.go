/*
Package snapshot converts the whole application state to and from a single
JSON backup document.

PURPOSE:
  Local backup and restore. The document carries the five collections
  (units, locations, sectors, employees, events) and the calculation map
  keyed month → employee → record, the same shape the engine persists.

DOCUMENT SCHEMA:
  {
    "version": 1,
    "exportedAt": "2025-03-01T10:00:00Z",
    "units":     [{"id": "u1", "name": "Matriz", "baseDailyVA": "20"}],
    "locations": [{"id": "l1", "name": "Centro", "unitId": "u1"}],
    "sectors":   [{"id": "s1", "name": "Operação", "locationId": "l1", ...}],
    "employees": [{"id": "e1", "name": "Ana", "sectorId": "s1", ...}],
    "events":    [{"id": "ev1", "employeeId": "e1", "type": "falta", ...}],
    "calculations": {
      "2025-03": {"e1": {"status": "advanced", "advance": {...}}}
    }
  }

VALIDATION:
  Import refuses documents with an unsupported version, an event record
  that cannot form a valid event, or a calculation under a malformed month
  key. Nothing is written when validation fails. Dangling references
  (an employee whose sector is gone) are accepted, the engine tolerates them.

SEE ALSO:
  - store/memory, store/sqlite: Restore and ReplaceRecords implementations
  - api/handlers.go: GET/POST /api/backup
*/
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// CurrentVersion is written on export and required on import.
const CurrentVersion = 1

// =============================================================================
// DOCUMENT
// =============================================================================

type Document struct {
	Version      int                                                        `json:"version"`
	ExportedAt   time.Time                                                  `json:"exportedAt"`
	Units        []org.Unit                                                 `json:"units"`
	Locations    []org.Location                                             `json:"locations"`
	Sectors      []org.Sector                                               `json:"sectors"`
	Employees    []org.Employee                                             `json:"employees"`
	Events       []events.Record                                            `json:"events"`
	Calculations map[generic.MonthKey]map[string]benefits.CalculationRecord `json:"calculations"`
}

// State is the flat form stores restore from.
type State struct {
	Units     []org.Unit
	Locations []org.Location
	Sectors   []org.Sector
	Employees []org.Employee
	Events    []events.Record
}

// =============================================================================
// STORE CONTRACTS
// =============================================================================

// Source is everything Export reads.
type Source interface {
	org.Directory
	ListEvents(ctx context.Context) ([]events.Record, error)
}

// Target replaces the hierarchy and events wholesale.
type Target interface {
	Restore(ctx context.Context, s State) error
}

// RecordTarget replaces every calculation record. ListRecords lets Import
// put the previous ledger back when the state restore fails.
type RecordTarget interface {
	ListRecords(ctx context.Context) ([]benefits.CalculationRecord, error)
	ReplaceRecords(ctx context.Context, recs []benefits.CalculationRecord) error
}

// =============================================================================
// EXPORT
// =============================================================================

// Export reads the full state.
func Export(ctx context.Context, src Source, ledger *benefits.Ledger, now time.Time) (*Document, error) {
	doc := &Document{
		Version:      CurrentVersion,
		ExportedAt:   now.UTC(),
		Calculations: make(map[generic.MonthKey]map[string]benefits.CalculationRecord),
	}

	var err error
	if doc.Units, err = src.ListUnits(ctx); err != nil {
		return nil, fmt.Errorf("export units: %w", err)
	}
	if doc.Locations, err = src.ListLocations(ctx); err != nil {
		return nil, fmt.Errorf("export locations: %w", err)
	}
	if doc.Sectors, err = src.ListSectors(ctx); err != nil {
		return nil, fmt.Errorf("export sectors: %w", err)
	}
	if doc.Employees, err = src.ListEmployees(ctx); err != nil {
		return nil, fmt.Errorf("export employees: %w", err)
	}
	if doc.Events, err = src.ListEvents(ctx); err != nil {
		return nil, fmt.Errorf("export events: %w", err)
	}

	records, err := ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export calculations: %w", err)
	}
	for _, r := range records {
		month := doc.Calculations[r.Month]
		if month == nil {
			month = make(map[string]benefits.CalculationRecord)
			doc.Calculations[r.Month] = month
		}
		month[r.EmployeeID] = r
	}
	return doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// =============================================================================
// IMPORT
// =============================================================================

// Decode parses and validates a document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &generic.ValidationError{Field: "document", Message: err.Error()}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks what Import depends on.
func (d *Document) Validate() error {
	if d.Version != CurrentVersion {
		return &generic.ValidationError{Field: "version", Message: fmt.Sprintf("unsupported version %d", d.Version)}
	}
	for _, e := range d.Events {
		if _, err := e.Event(); err != nil {
			return &generic.ValidationError{Field: "events", Message: err.Error()}
		}
	}
	for month, byEmployee := range d.Calculations {
		if !month.Valid() {
			return &generic.ValidationError{Field: "calculations", Message: "invalid month key " + string(month)}
		}
		for _, rec := range byEmployee {
			if !rec.Status.Valid() {
				return &generic.ValidationError{Field: "calculations", Message: "invalid status " + string(rec.Status)}
			}
		}
	}
	return nil
}

// Records flattens the calculation map, keys taking precedence over the
// month and employee fields inside each record.
func (d *Document) Records() []benefits.CalculationRecord {
	var out []benefits.CalculationRecord
	for month, byEmployee := range d.Calculations {
		for employeeID, rec := range byEmployee {
			rec.Month = month
			rec.EmployeeID = employeeID
			out = append(out, rec)
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

// State returns the collection part of the document.
func (d *Document) State() State {
	return State{
		Units:     d.Units,
		Locations: d.Locations,
		Sectors:   d.Sectors,
		Employees: d.Employees,
		Events:    d.Events,
	}
}

// Import replaces the current state with doc. The ledger and the state may
// live in different databases: the ledger is swapped first, and a failed
// state restore puts the previous records back. Each step is atomic on its
// own, so any single failure leaves the old data in place.
func Import(ctx context.Context, doc *Document, target Target, records RecordTarget) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	previous, err := records.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("read calculations: %w", err)
	}
	if err := records.ReplaceRecords(ctx, doc.Records()); err != nil {
		return fmt.Errorf("restore calculations: %w", err)
	}
	if err := target.Restore(ctx, doc.State()); err != nil {
		err = fmt.Errorf("restore state: %w", err)
		if rbErr := records.ReplaceRecords(ctx, previous); rbErr != nil {
			return errors.Join(err, fmt.Errorf("put back calculations: %w", rbErr))
		}
		return err
	}
	return nil
}

/*
handlers.go - HTTP API handlers for the benefits engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the org, events and benefits
  services.

ENDPOINTS:
  Hierarchy:
    GET/POST          /api/{units,locations,sectors,employees}
    GET/PUT/DELETE    /api/{units,locations,sectors,employees}/{id}
    GET               /api/employees/{id}/rates    Effective rate set
    GET               /api/employees/{id}/events   Event history

  Events:
    GET/POST          /api/events
    PUT/DELETE        /api/events/{id}
    POST              /api/events/mass             One template, many employees
    POST              /api/events/import           CSV adjustments (multipart "file")

  Calculations:
    POST   /api/calculations/{month}/advance    Advance for month+1
    POST   /api/calculations/{month}/finalize   Settle month
    GET    /api/calculations/{month}            Records of the month
    GET    /api/calculations/{month}/summary    Dashboard totals
    GET    /api/calculations/{month}/export/*.csv
    GET    /api/calculations/{month}/{employeeID}/paystub.pdf

  Reports:
    GET    /api/reports/annual/{year}[.csv]     Annual totals by employee or unit
    GET    /api/reports/evolution/{month}       Last N months of VA/VT cost

  Calendar, backup, scenarios: see server.go

SCOPE FILTER:
  Calculation, summary, export and report endpoints take "scope" as
  "all", "unit:<id>", "location:<id>" or "sector:<id>".

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (dependents, overlapping leave, status transition)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/report"
	"github.com/warp/benefits-engine/snapshot"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the primary store: hierarchy, events and holidays.
type Store interface {
	org.Repository
	events.Store
	snapshot.Target
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]generic.Holiday, error)
	generic.HolidayCalendar
	Reset(ctx context.Context) error
}

// LedgerStore holds calculation records. It may be the same value as Store.
type LedgerStore interface {
	benefits.TxRecordStore
	snapshot.RecordTarget
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Records  LedgerStore
	Ledger   *benefits.Ledger
	Org      *org.Service
	Events   *events.Service
	Rates    *org.RateResolver
	Advance  *benefits.AdvanceCalculator
	Finalize *benefits.FinalizationCalculator
	Annual   *benefits.AnnualAggregator
	Logger   *slog.Logger

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services over the given stores.
func NewHandler(store Store, records LedgerStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	ledger := benefits.NewLedger(records)
	rates := org.NewRateResolver(store)
	evts := events.NewService(store, store, logger)

	return &Handler{
		Store:    store,
		Records:  records,
		Ledger:   ledger,
		Org:      org.NewService(store, logger),
		Events:   evts,
		Rates:    rates,
		Advance:  benefits.NewAdvanceCalculator(ledger, rates, logger),
		Finalize: benefits.NewFinalizationCalculator(ledger, rates, evts, logger),
		Annual:   benefits.NewAnnualAggregator(ledger, store, rates),
		Logger:   logger,
		now:      time.Now,
	}
}

// WithClock fixes the time used for calculations and backups.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	h.Advance.WithClock(now)
	h.Finalize.WithClock(now)
	return h
}

// =============================================================================
// HIERARCHY ENDPOINTS
// =============================================================================

// ListUnits returns all units.
// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}
	dtos := make([]UnitDTO, 0, len(units))
	for _, u := range units {
		dtos = append(dtos, toUnitDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnit returns one unit.
// GET /api/units/{id}
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.Store.GetUnit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get unit", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(*u))
}

// SaveUnit creates (POST) or updates (PUT) a unit.
func (h *Handler) SaveUnit(w http.ResponseWriter, r *http.Request) {
	var req UnitDTO
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	u, err := h.Org.SaveUnit(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to save unit", err)
		return
	}
	writeJSON(w, saveStatus(req.ID), toUnitDTO(u))
}

// DeleteUnit refuses while locations reference the unit.
// DELETE /api/units/{id}
func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.Org.DeleteUnit(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete unit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListLocations returns all locations.
// GET /api/locations
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Store.ListLocations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}
	dtos := make([]LocationDTO, 0, len(locations))
	for _, l := range locations {
		dtos = append(dtos, toLocationDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/locations/{id}
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	l, err := h.Store.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get location", err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Location not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTO(*l))
}

func (h *Handler) SaveLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationDTO
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	l, err := h.Org.SaveLocation(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to save location", err)
		return
	}
	writeJSON(w, saveStatus(req.ID), toLocationDTO(l))
}

func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.Org.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete location", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListSectors returns all sectors.
// GET /api/sectors
func (h *Handler) ListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.Store.ListSectors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sectors", err)
		return
	}
	dtos := make([]SectorDTO, 0, len(sectors))
	for _, s := range sectors {
		dtos = append(dtos, toSectorDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/sectors/{id}
func (h *Handler) GetSector(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSector(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sector", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "Sector not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSectorDTO(*s))
}

func (h *Handler) SaveSector(w http.ResponseWriter, r *http.Request) {
	var req SectorDTO
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	s, err := h.Org.SaveSector(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to save sector", err)
		return
	}
	writeJSON(w, saveStatus(req.ID), toSectorDTO(s))
}

func (h *Handler) DeleteSector(w http.ResponseWriter, r *http.Request) {
	if err := h.Org.DeleteSector(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete sector", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListEmployees returns employees, optionally filtered by scope.
// GET /api/employees?scope=
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, ok := h.scopedEmployees(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := org.MustGetEmployee(r.Context(), h.Store, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SaveEmployee creates or updates an employee. Display names are derived
// from the sector.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeDTO
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	e, err := h.Org.SaveEmployee(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, saveStatus(req.ID), toEmployeeDTO(e))
}

// DeleteEmployee always succeeds for an existing employee; events and
// calculations referencing it are kept.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Org.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetEmployeeRates returns the rates the next calculation would apply.
// GET /api/employees/{id}/rates
func (h *Handler) GetEmployeeRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := org.MustGetEmployee(ctx, h.Store, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	rates, err := h.Rates.ResolveEmployee(ctx, *emp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateSetDTO(rates))
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// ListEvents returns all events.
// GET /api/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs(events.Decode(records)))
}

// GET /api/employees/{id}/events
func (h *Handler) ListEmployeeEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := h.Events.ForEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs(evts))
}

// CreateEvent stores one leave or adjustment event.
// POST /api/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventDTO
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = ""
	e, err := req.toDomain()
	if err != nil {
		writeDomainError(w, "Invalid event", err)
		return
	}

	created, err := h.Events.Create(r.Context(), e)
	if err != nil {
		writeDomainError(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(created))
}

// PUT /api/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventDTO
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	req.ID = id
	e, err := req.toDomain()
	if err != nil {
		writeDomainError(w, "Invalid event", err)
		return
	}

	updated, err := h.Events.Update(r.Context(), id, e)
	if err != nil {
		writeDomainError(w, "Failed to update event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(updated))
}

// DELETE /api/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateMassEvents creates the same event for every employee in scope.
// Overlapping leave is skipped per employee.
// POST /api/events/mass
func (h *Handler) CreateMassEvents(w http.ResponseWriter, r *http.Request) {
	var req MassEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scope, err := parseScope(req.Scope)
	if err != nil {
		writeDomainError(w, "Invalid scope", err)
		return
	}

	result, err := h.Events.CreateMass(r.Context(), scope, req.template())
	if err != nil {
		writeDomainError(w, "Failed to create events", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ImportEvents reads a CSV of per-employee amounts into adjustments.
// POST /api/events/import (multipart: file, reference_month, benefit_type)
func (h *Handler) ImportEvents(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	month, err := generic.ParseMonthKey(r.FormValue("reference_month"))
	if err != nil {
		writeDomainError(w, "Invalid reference month", err)
		return
	}

	result, err := h.Events.Import(r.Context(), file, events.ImportOptions{
		ReferenceMonth: month,
		BenefitType:    events.BenefitType(r.FormValue("benefit_type")),
	})
	if err != nil {
		writeDomainError(w, "Failed to import file", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// CALCULATION ENDPOINTS
// =============================================================================

// RunAdvance computes the advance of month+1 for every employee in scope.
// POST /api/calculations/{month}/advance
func (h *Handler) RunAdvance(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	var req RunAdvanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	employees, ok := h.scopedEmployees(w, r, req.Scope)
	if !ok {
		return
	}

	result, err := h.Advance.Run(r.Context(), benefits.AdvanceInput{
		Month:       month,
		PlannedDays: req.PlannedDays,
		Employees:   employees,
	})
	if err != nil {
		writeDomainError(w, "Failed to calculate advance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_month": result.TargetMonth.String(),
		"records":      calculationDTOs(result.Records, employees),
	})
}

// RunFinalize settles the month for every employee in scope.
// POST /api/calculations/{month}/finalize
func (h *Handler) RunFinalize(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	var req RunFinalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	employees, ok := h.scopedEmployees(w, r, req.Scope)
	if !ok {
		return
	}

	result, err := h.Finalize.Run(r.Context(), benefits.FinalizeInput{
		Month:      month,
		ActualDays: req.ActualDays,
		Employees:  employees,
	})
	if err != nil {
		writeDomainError(w, "Failed to finalize month", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":   result.Month.String(),
		"records": calculationDTOs(result.Records, employees),
	})
}

// ListCalculations returns one entry per employee in scope. Employees
// without a record are reported as pending.
// GET /api/calculations/{month}?scope=
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	employees, ok := h.scopedEmployees(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}
	records, err := h.Ledger.Month(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calculations", err)
		return
	}

	byEmployee := make(map[string]benefits.CalculationRecord, len(records))
	for _, rec := range records {
		byEmployee[rec.EmployeeID] = rec
	}
	dtos := make([]CalculationDTO, 0, len(employees))
	for _, emp := range employees {
		rec, ok := byEmployee[emp.ID]
		if !ok {
			rec = benefits.CalculationRecord{Month: month, EmployeeID: emp.ID, Status: benefits.StatusPending}
		}
		dtos = append(dtos, toCalculationDTO(rec, emp.Name))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/calculations/{month}/summary?scope=
func (h *Handler) GetMonthSummary(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	employees, ok := h.scopedEmployees(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}
	records, err := h.Ledger.Month(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calculations", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthSummaryDTO(benefits.SummarizeMonth(month, records, employees)))
}

// GET /api/calculations/{month}/export/vavt.csv?scope=
func (h *Handler) ExportVAVT(w http.ResponseWriter, r *http.Request) {
	h.exportMonth(w, r, "vavt", report.WriteVAVTCSV)
}

// GET /api/calculations/{month}/export/reimbursements.csv?scope=
func (h *Handler) ExportReimbursements(w http.ResponseWriter, r *http.Request) {
	h.exportMonth(w, r, "reembolsos", report.WriteReimbursementCSV)
}

func (h *Handler) exportMonth(w http.ResponseWriter, r *http.Request, name string, write func(io.Writer, []report.Line) error) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	employees, ok := h.scopedEmployees(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}
	records, err := h.Ledger.Month(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calculations", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.csv", name, month))
	if err := write(w, report.FinalizedLines(records, employees)); err != nil {
		h.Logger.Error("csv export failed", "export", name, "month", month.String(), "error", err)
	}
}

// GetPaystub renders the PDF paystub of one employee and month.
// GET /api/calculations/{month}/{employeeID}/paystub.pdf
func (h *Handler) GetPaystub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	emp, err := org.MustGetEmployee(ctx, h.Store, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	rec, err := h.Ledger.Get(ctx, month, emp.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calculation", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No calculation for this month", nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=demonstrativo_%s_%s.pdf", month, emp.RegistrationNumber))
	if err := report.WritePaystub(w, *emp, *rec); err != nil {
		h.Logger.Error("paystub render failed", "employee_id", emp.ID, "month", month.String(), "error", err)
	}
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetAnnualReport returns finalized totals for a year. A ".csv" suffix on
// the year returns the semicolon-separated export instead of JSON.
// GET /api/reports/annual/{year}?group=employee|unit&scope=
func (h *Handler) GetAnnualReport(w http.ResponseWriter, r *http.Request) {
	yearParam := chi.URLParam(r, "year")
	asCSV := strings.HasSuffix(yearParam, ".csv")
	year, err := strconv.Atoi(strings.TrimSuffix(yearParam, ".csv"))
	if err != nil || year < 1 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	group, err := benefits.ParseGroupBy(r.URL.Query().Get("group"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group", err)
		return
	}

	scope, err := parseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeDomainError(w, "Invalid scope", err)
		return
	}
	var employees []org.Employee
	if scope.Kind != org.ScopeAll {
		if employees, err = scope.Employees(r.Context(), h.Store); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
			return
		}
	}

	rows, err := h.Annual.Summarize(r.Context(), year, group, employees)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}

	if asCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=relatorio_anual_%d_por_%s.csv", year, group))
		if err := report.WriteAnnualCSV(w, group, rows); err != nil {
			h.Logger.Error("annual csv failed", "year", year, "error", err)
		}
		return
	}

	dtos := make([]AnnualSummaryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toAnnualSummaryDTO(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "group": group, "rows": dtos})
}

// GetCostEvolution returns finalized VA and VT totals per month.
// GET /api/reports/evolution/{month}?months=6&scope=
func (h *Handler) GetCostEvolution(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	months := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 36 {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 36", err)
			return
		}
		months = n
	}
	employees, ok := h.scopedEmployees(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}

	points, err := benefits.CostEvolution(r.Context(), h.Ledger, month, months, employees)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build cost evolution", err)
		return
	}
	dtos := make([]CostPointDTO, 0, len(points))
	for _, p := range points {
		dtos = append(dtos, CostPointDTO{Month: p.Month.String(), VA: money(p.VA), VT: money(p.VT)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a new holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := generic.Holiday{ID: uuid.NewString(), Date: date, Name: req.Name, Recurring: req.Recurring}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// SuggestWorkingDays counts weekdays minus holidays minus extra days off.
// GET /api/calendar/{month}/working-days?holidays=N
func (h *Handler) SuggestWorkingDays(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	extra := 0
	if raw := r.URL.Query().Get("holidays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "holidays must be a non-negative integer", err)
			return
		}
		extra = n
	}
	holidays, err := h.Store.HolidaysIn(r.Context(), month.Year())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":        month.String(),
		"working_days": generic.SuggestWorkingDays(month, holidays, extra),
	})
}

// =============================================================================
// BACKUP ENDPOINTS
// =============================================================================

// ExportBackup downloads the whole state as one JSON document.
// GET /api/backup
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	doc, err := snapshot.Export(r.Context(), h.Store, h.Ledger, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export backup", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=backup_beneficios_%s.json", now.Format("2006-01-02")))
	if err := snapshot.Encode(w, doc); err != nil {
		h.Logger.Error("backup encode failed", "error", err)
	}
}

// ImportBackup replaces the whole state with the uploaded document.
// POST /api/backup
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	doc, err := snapshot.Decode(r.Body)
	if err != nil {
		writeDomainError(w, "Invalid backup document", err)
		return
	}
	if err := snapshot.Import(r.Context(), doc, h.Store, h.Records); err != nil {
		writeDomainError(w, "Failed to import backup", err)
		return
	}
	h.Logger.Info("backup imported",
		"employees", len(doc.Employees), "events", len(doc.Events), "months", len(doc.Calculations))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "imported",
		"employees":    len(doc.Employees),
		"events":       len(doc.Events),
		"calculations": len(doc.Records()),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) scopedEmployees(w http.ResponseWriter, r *http.Request, raw string) ([]org.Employee, bool) {
	scope, err := parseScope(raw)
	if err != nil {
		writeDomainError(w, "Invalid scope", err)
		return nil, false
	}
	employees, err := scope.Employees(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return nil, false
	}
	return employees, true
}

func parseScope(raw string) (org.Scope, error) {
	scope, err := org.ParseScope(raw)
	if err != nil {
		return org.Scope{}, &generic.ValidationError{Field: "scope", Message: err.Error()}
	}
	return scope, nil
}

func monthParam(w http.ResponseWriter, r *http.Request) (generic.MonthKey, bool) {
	month, err := generic.ParseMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return "", false
	}
	return month, true
}

func calculationDTOs(records []benefits.CalculationRecord, employees []org.Employee) []CalculationDTO {
	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}
	dtos := make([]CalculationDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toCalculationDTO(rec, names[rec.EmployeeID]))
	}
	return dtos
}

// saveStatus is 201 for creates and 200 for updates.
func saveStatus(id string) int {
	if id == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsConflict(err):
		status = http.StatusConflict
	}
	writeError(w, status, message, err)
}

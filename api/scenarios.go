/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a small
	organization so the advance and finalize flows can be tried right away.

AVAILABLE SCENARIOS:

	scenario-a-d:  One unit (VA 20/day), one sector (override 25/day,
	               10% discount, VT 10/day), one employee earning 3000.
	               Matches the worked examples used in the tests.
	multi-unit:    Two units with sectors on every food basket kind,
	               a vacation and a meal reimbursement.

HOW SCENARIOS WORK:
 1. Reset database (clear all data, calculations included)
 2. Save units, locations, sectors and employees with fixed ids
 3. Optionally add events

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "multi-unit"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "scenario-a-d",
		Name:        "Single Sector",
		Description: "One unit, one sector with VA override and discount, one employee",
	},
	{
		ID:          "multi-unit",
		Name:        "Multi-Unit",
		Description: "Two units, food baskets of every kind, leave and reimbursements",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "scenario-a-d":
		load = h.loadSingleSectorScenario
	case "multi-unit":
		load = h.loadMultiUnitScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := h.Records.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seed is a fixed hierarchy. Units, locations and sectors are written
// straight to the store; employees go through org.Service so their display
// names get filled.
type seed struct {
	units     []org.Unit
	locations []org.Location
	sectors   []org.Sector
	employees []org.Employee
	events    []events.Event
}

func (h *Handler) apply(ctx context.Context, s seed) error {
	for _, u := range s.units {
		if err := h.Store.SaveUnit(ctx, u); err != nil {
			return err
		}
	}
	for _, l := range s.locations {
		if err := h.Store.SaveLocation(ctx, l); err != nil {
			return err
		}
	}
	for _, sec := range s.sectors {
		if err := h.Store.SaveSector(ctx, sec); err != nil {
			return err
		}
	}
	for _, e := range s.employees {
		if _, err := h.Org.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("employee %s: %w", e.Name, err)
		}
	}
	for _, e := range s.events {
		if _, err := h.Events.Create(ctx, e); err != nil {
			return fmt.Errorf("event for %s: %w", e.EmployeeRef(), err)
		}
	}
	return nil
}

func (h *Handler) loadSingleSectorScenario(ctx context.Context) error {
	if err := h.Store.SaveEmployee(ctx, org.Employee{ID: "emp-ana", SectorID: "sec-ops"}); err != nil {
		return err
	}
	return h.apply(ctx, seed{
		units: []org.Unit{
			{ID: "unit-hq", Name: "Matriz", BaseDailyVA: generic.MoneyFromInt(20)},
		},
		locations: []org.Location{
			{ID: "loc-center", Name: "Centro", UnitID: "unit-hq"},
		},
		sectors: []org.Sector{{
			ID:                "sec-ops",
			Name:              "Operação",
			LocationID:        "loc-center",
			OverrideDailyVA:   generic.MoneyFromInt(25),
			DailyVT:           generic.MoneyFromInt(10),
			VADiscountPercent: generic.MoneyFromInt(10),
			FoodBasketKind:    org.BasketNone,
		}},
		employees: []org.Employee{
			{ID: "emp-ana", RegistrationNumber: "1001", Name: "Ana Souza", Salary: generic.MoneyFromInt(3000), SectorID: "sec-ops"},
		},
	})
}

func (h *Handler) loadMultiUnitScenario(ctx context.Context) error {
	employees := []org.Employee{
		{ID: "emp-bruno", RegistrationNumber: "2001", Name: "Bruno Lima", Salary: generic.MoneyFromInt(2800), SectorID: "sec-warehouse"},
		{ID: "emp-carla", RegistrationNumber: "2002", Name: "Carla Dias", Salary: generic.MoneyFromInt(4200), SectorID: "sec-admin"},
		{ID: "emp-diego", RegistrationNumber: "3001", Name: "Diego Rocha", Salary: generic.MoneyFromInt(2500), SectorID: "sec-drivers"},
		{ID: "emp-elisa", RegistrationNumber: "3002", Name: "Elisa Prado", Salary: generic.MoneyFromInt(2500), SectorID: "sec-drivers"},
	}
	// Fixed ids are updates to org.Service, so create placeholders first.
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, org.Employee{ID: e.ID, SectorID: e.SectorID}); err != nil {
			return err
		}
	}

	month := generic.CurrentMonth(h.now())
	vacationStart := month.Start().AddDays(9)
	meal := decimal.NewFromInt(180)

	return h.apply(ctx, seed{
		units: []org.Unit{
			{ID: "unit-south", Name: "Filial Sul", BaseDailyVA: generic.MoneyFromInt(22)},
			{ID: "unit-north", Name: "Filial Norte", BaseDailyVA: generic.MoneyFromInt(18)},
		},
		locations: []org.Location{
			{ID: "loc-poa", Name: "Porto Alegre", UnitID: "unit-south"},
			{ID: "loc-bel", Name: "Belém", UnitID: "unit-north"},
		},
		sectors: []org.Sector{
			{
				ID: "sec-warehouse", Name: "Armazém", LocationID: "loc-poa",
				DailyVT: generic.Money(9.5), FoodBasketValue: generic.MoneyFromInt(150), FoodBasketKind: org.BasketPhysical,
			},
			{
				ID: "sec-admin", Name: "Administrativo", LocationID: "loc-poa",
				OverrideDailyVA: generic.MoneyFromInt(30), DailyVT: generic.MoneyFromInt(12),
				VADiscountPercent: generic.MoneyFromInt(20), FoodBasketValue: generic.MoneyFromInt(200), FoodBasketKind: org.BasketPaidAsVA,
			},
			{
				ID: "sec-drivers", Name: "Motoristas", LocationID: "loc-bel",
				DailyVT: generic.MoneyFromInt(8), FoodBasketKind: org.BasketNone,
			},
		},
		employees: employees,
		events: []events.Event{
			events.LeaveEvent{
				EmployeeID: "emp-bruno", Type: events.KindVacation,
				StartDate: vacationStart.String(), EndDate: vacationStart.AddDays(4).String(),
				Notes: "Férias programadas",
			},
			events.AdjustmentEvent{
				EmployeeID: "emp-diego", ReferenceMonth: month,
				BenefitType: events.BenefitDinner, Value: meal, Notes: "Viagens noturnas",
			},
		},
	})
}

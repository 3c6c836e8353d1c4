/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money travels
  as JSON numbers here; the domain keeps decimal.Decimal throughout.

NAMING CONVENTION:
  - *DTO: Response types returned to clients (also accepted as bodies for
    the hierarchy CRUD endpoints)
  - *Request: Request body types from clients

TYPES:
  Hierarchy:     UnitDTO, LocationDTO, SectorDTO, EmployeeDTO, RateSetDTO
  Events:        EventDTO, MassEventRequest
  Calculations:  CalculationDTO, AdvanceDTO, SettlementDTO,
                 RunAdvanceRequest, RunFinalizeRequest
  Reports:       MonthSummaryDTO, AnnualSummaryDTO, CostPointDTO
  Misc:          HolidayDTO, ScenarioDTO, ErrorResponse

VALIDATION:
  Validation is done by the domain services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/events"
	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// HIERARCHY
// =============================================================================

type UnitDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BaseDailyVA float64 `json:"base_daily_va"`
}

type LocationDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UnitID string `json:"unit_id"`
}

type SectorDTO struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	LocationID        string  `json:"location_id"`
	OverrideDailyVA   float64 `json:"override_daily_va"`
	DailyVT           float64 `json:"daily_vt"`
	VADiscountPercent float64 `json:"va_discount_percent"`
	FoodBasketValue   float64 `json:"food_basket_value"`
	FoodBasketKind    string  `json:"food_basket_kind"`
}

type EmployeeDTO struct {
	ID                 string  `json:"id"`
	RegistrationNumber string  `json:"registration_number"`
	Name               string  `json:"name"`
	Salary             float64 `json:"salary"`
	SectorID           string  `json:"sector_id"`
	SectorName         string  `json:"sector_name,omitempty"`
	LocationName       string  `json:"location_name,omitempty"`
	UnitName           string  `json:"unit_name,omitempty"`
}

// RateSetDTO is the effective rate set of one employee.
type RateSetDTO struct {
	BaseDailyVA          float64 `json:"base_daily_va"`
	EffectiveDailyVA     float64 `json:"effective_daily_va"`
	ComplementaryDailyVA float64 `json:"complementary_daily_va"`
	DailyVT              float64 `json:"daily_vt"`
	DiscountPercent      float64 `json:"discount_percent"`
	FoodBasketValue      float64 `json:"food_basket_value"`
	FoodBasketKind       string  `json:"food_basket_kind"`
}

// =============================================================================
// EVENTS
// =============================================================================

// EventDTO carries either variant. Leave events use the dates; adjustments
// use reference month, benefit type and value.
type EventDTO struct {
	ID             string   `json:"id,omitempty"`
	EmployeeID     string   `json:"employee_id"`
	Type           string   `json:"type"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	ReferenceMonth string   `json:"reference_month,omitempty"`
	BenefitType    string   `json:"benefit_type,omitempty"`
	Value          *float64 `json:"value,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// MassEventRequest fans one event template out to every employee in scope.
type MassEventRequest struct {
	Scope          string  `json:"scope"`
	Type           string  `json:"type"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	ReferenceMonth string  `json:"reference_month,omitempty"`
	BenefitType    string  `json:"benefit_type,omitempty"`
	Value          float64 `json:"value,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// =============================================================================
// CALCULATIONS
// =============================================================================

type RunAdvanceRequest struct {
	PlannedDays int    `json:"planned_days"`
	Scope       string `json:"scope"`
}

type RunFinalizeRequest struct {
	ActualDays int    `json:"actual_days"`
	Scope      string `json:"scope"`
}

type CalculationDTO struct {
	Month        string         `json:"month"`
	EmployeeID   string         `json:"employee_id"`
	EmployeeName string         `json:"employee_name,omitempty"`
	Status       string         `json:"status"`
	Advance      *AdvanceDTO    `json:"advance,omitempty"`
	Settlement   *SettlementDTO `json:"settlement,omitempty"`
}

type AdvanceDTO struct {
	DaysPlannedWorked   int       `json:"days_planned_worked"`
	PriorMonthBalanceVA float64   `json:"prior_month_balance_va"`
	PriorMonthBalanceVT float64   `json:"prior_month_balance_vt"`
	AdvancedVABase      float64   `json:"advanced_va_base"`
	AdvancedVAComp      float64   `json:"advanced_va_comp"`
	AdvancedVT          float64   `json:"advanced_vt"`
	VTDiscount          float64   `json:"vt_discount"`
	TotalAdvancedVA     float64   `json:"total_advanced_va"`
	TotalAdvancedVT     float64   `json:"total_advanced_vt"`
	CalculatedAt        time.Time `json:"calculated_at"`
}

type SettlementDTO struct {
	WorkingDays            int        `json:"working_days"`
	DaysAbsent             int        `json:"days_absent"`
	DaysActualWorked       int        `json:"days_actual_worked"`
	AdjustmentVABase       float64    `json:"adjustment_va_base"`
	AdjustmentVAComp       float64    `json:"adjustment_va_comp"`
	AdjustmentVT           float64    `json:"adjustment_vt"`
	DuedVABase             float64    `json:"dued_va_base"`
	DuedVAComp             float64    `json:"dued_va_comp"`
	DuedVT                 float64    `json:"dued_vt"`
	VTDiscount             float64    `json:"vt_discount"`
	BalanceVA              float64    `json:"balance_va"`
	BalanceVT              float64    `json:"balance_vt"`
	MealReimbursement      float64    `json:"meal_reimbursement"`
	BreakfastReimbursement float64    `json:"breakfast_reimbursement"`
	FoodBasketValue        float64    `json:"food_basket_value"`
	FoodBasketKind         string     `json:"food_basket_kind"`
	Total                  float64    `json:"total"`
	Rates                  RateSetDTO `json:"rates"`
	FinalizedAt            time.Time  `json:"finalized_at"`
}

// =============================================================================
// REPORTS
// =============================================================================

type MonthSummaryDTO struct {
	Month           string  `json:"month"`
	Employees       int     `json:"employees"`
	Pending         int     `json:"pending"`
	Advanced        int     `json:"advanced"`
	Finalized       int     `json:"finalized"`
	TotalAdvancedVA float64 `json:"total_advanced_va"`
	TotalAdvancedVT float64 `json:"total_advanced_vt"`
	TotalDuedVA     float64 `json:"total_dued_va"`
	TotalDuedVT     float64 `json:"total_dued_vt"`
	TotalMeal       float64 `json:"total_meal"`
	TotalBreakfast  float64 `json:"total_breakfast"`
	PhysicalBaskets int     `json:"physical_baskets"`
	AbsenceDays     int     `json:"absence_days"`
}

type AnnualSummaryDTO struct {
	Key             string  `json:"key"`
	Name            string  `json:"name"`
	TotalVA         float64 `json:"total_va"`
	TotalVT         float64 `json:"total_vt"`
	TotalMeal       float64 `json:"total_meal"`
	TotalBreakfast  float64 `json:"total_breakfast"`
	PhysicalBaskets int     `json:"physical_baskets"`
	AbsenceDays     int     `json:"absence_days"`
	Months          int     `json:"months"`
}

type CostPointDTO struct {
	Month string  `json:"month"`
	VA    float64 `json:"va"`
	VT    float64 `json:"vt"`
}

// =============================================================================
// MISC
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is returned for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toUnitDTO(u org.Unit) UnitDTO {
	return UnitDTO{ID: u.ID, Name: u.Name, BaseDailyVA: money(u.BaseDailyVA)}
}

func (d UnitDTO) toDomain() org.Unit {
	return org.Unit{ID: d.ID, Name: d.Name, BaseDailyVA: decimal.NewFromFloat(d.BaseDailyVA)}
}

func toLocationDTO(l org.Location) LocationDTO {
	return LocationDTO{ID: l.ID, Name: l.Name, UnitID: l.UnitID}
}

func (d LocationDTO) toDomain() org.Location {
	return org.Location{ID: d.ID, Name: d.Name, UnitID: d.UnitID}
}

func toSectorDTO(s org.Sector) SectorDTO {
	return SectorDTO{
		ID:                s.ID,
		Name:              s.Name,
		LocationID:        s.LocationID,
		OverrideDailyVA:   money(s.OverrideDailyVA),
		DailyVT:           money(s.DailyVT),
		VADiscountPercent: money(s.VADiscountPercent),
		FoodBasketValue:   money(s.FoodBasketValue),
		FoodBasketKind:    string(s.FoodBasketKind),
	}
}

// toDomain leaves the kind unparsed; org.Service validates it.
func (d SectorDTO) toDomain() org.Sector {
	return org.Sector{
		ID:                d.ID,
		Name:              d.Name,
		LocationID:        d.LocationID,
		OverrideDailyVA:   decimal.NewFromFloat(d.OverrideDailyVA),
		DailyVT:           decimal.NewFromFloat(d.DailyVT),
		VADiscountPercent: decimal.NewFromFloat(d.VADiscountPercent),
		FoodBasketValue:   decimal.NewFromFloat(d.FoodBasketValue),
		FoodBasketKind:    org.FoodBasketKind(d.FoodBasketKind),
	}
}

func toEmployeeDTO(e org.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                 e.ID,
		RegistrationNumber: e.RegistrationNumber,
		Name:               e.Name,
		Salary:             money(e.Salary),
		SectorID:           e.SectorID,
		SectorName:         e.SectorName,
		LocationName:       e.LocationName,
		UnitName:           e.UnitName,
	}
}

// toDomain drops the display names; they are recomputed on save.
func (d EmployeeDTO) toDomain() org.Employee {
	return org.Employee{
		ID:                 d.ID,
		RegistrationNumber: d.RegistrationNumber,
		Name:               d.Name,
		Salary:             decimal.NewFromFloat(d.Salary),
		SectorID:           d.SectorID,
	}
}

func toRateSetDTO(r org.RateSet) RateSetDTO {
	kind := r.FoodBasketKind
	if kind == "" {
		kind = org.BasketNone
	}
	return RateSetDTO{
		BaseDailyVA:          money(r.BaseDailyVA),
		EffectiveDailyVA:     money(r.EffectiveDailyVA),
		ComplementaryDailyVA: money(r.ComplementaryDailyVA()),
		DailyVT:              money(r.DailyVT),
		DiscountPercent:      money(r.DiscountPercent),
		FoodBasketValue:      money(r.FoodBasketValue),
		FoodBasketKind:       string(kind),
	}
}

func toEventDTO(e events.Event) EventDTO {
	r := events.ToRecord(e)
	dto := EventDTO{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		Type:           string(r.Type),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		ReferenceMonth: r.ReferenceMonth,
		BenefitType:    string(r.BenefitType),
		Notes:          r.Notes,
	}
	if r.Value != nil {
		v := r.Value.InexactFloat64()
		dto.Value = &v
	}
	return dto
}

func toEventDTOs(evts []events.Event) []EventDTO {
	out := make([]EventDTO, 0, len(evts))
	for _, e := range evts {
		out = append(out, toEventDTO(e))
	}
	return out
}

// toDomain validates field combinations through events.Record.
func (d EventDTO) toDomain() (events.Event, error) {
	r := events.Record{
		ID:             d.ID,
		EmployeeID:     d.EmployeeID,
		Type:           events.Kind(d.Type),
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		ReferenceMonth: d.ReferenceMonth,
		BenefitType:    events.BenefitType(d.BenefitType),
		Notes:          d.Notes,
	}
	if d.Value != nil {
		v := decimal.NewFromFloat(*d.Value)
		r.Value = &v
	}
	return r.Event()
}

func (req MassEventRequest) template() events.MassTemplate {
	return events.MassTemplate{
		Type:           events.Kind(req.Type),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		ReferenceMonth: req.ReferenceMonth,
		BenefitType:    events.BenefitType(req.BenefitType),
		Value:          decimal.NewFromFloat(req.Value),
		Notes:          req.Notes,
	}
}

func toCalculationDTO(rec benefits.CalculationRecord, name string) CalculationDTO {
	dto := CalculationDTO{
		Month:        rec.Month.String(),
		EmployeeID:   rec.EmployeeID,
		EmployeeName: name,
		Status:       string(rec.Status),
	}
	if a := rec.Advance; a != nil {
		dto.Advance = &AdvanceDTO{
			DaysPlannedWorked:   a.DaysPlannedWorked,
			PriorMonthBalanceVA: money(a.PriorMonthBalanceVA),
			PriorMonthBalanceVT: money(a.PriorMonthBalanceVT),
			AdvancedVABase:      money(a.AdvancedVABase),
			AdvancedVAComp:      money(a.AdvancedVAComp),
			AdvancedVT:          money(a.AdvancedVT),
			VTDiscount:          money(a.VTDiscount),
			TotalAdvancedVA:     money(a.TotalAdvancedVA),
			TotalAdvancedVT:     money(a.TotalAdvancedVT),
			CalculatedAt:        a.CalculatedAt,
		}
	}
	if s := rec.Settlement; s != nil {
		dto.Settlement = &SettlementDTO{
			WorkingDays:            s.WorkingDays,
			DaysAbsent:             s.DaysAbsent,
			DaysActualWorked:       s.DaysActualWorked,
			AdjustmentVABase:       money(s.AdjustmentVABase),
			AdjustmentVAComp:       money(s.AdjustmentVAComp),
			AdjustmentVT:           money(s.AdjustmentVT),
			DuedVABase:             money(s.DuedVABase),
			DuedVAComp:             money(s.DuedVAComp),
			DuedVT:                 money(s.DuedVT),
			VTDiscount:             money(s.VTDiscount),
			BalanceVA:              money(s.BalanceVA),
			BalanceVT:              money(s.BalanceVT),
			MealReimbursement:      money(s.MealReimbursement),
			BreakfastReimbursement: money(s.BreakfastReimbursement),
			FoodBasketValue:        money(s.FoodBasketValue),
			FoodBasketKind:         string(s.FoodBasketKind),
			Total:                  money(s.Total),
			Rates:                  toRateSetDTO(s.Rates),
			FinalizedAt:            s.FinalizedAt,
		}
	}
	return dto
}

func toMonthSummaryDTO(s benefits.MonthSummary) MonthSummaryDTO {
	return MonthSummaryDTO{
		Month:           s.Month.String(),
		Employees:       s.Employees,
		Pending:         s.Pending,
		Advanced:        s.Advanced,
		Finalized:       s.Finalized,
		TotalAdvancedVA: money(s.TotalAdvancedVA),
		TotalAdvancedVT: money(s.TotalAdvancedVT),
		TotalDuedVA:     money(s.TotalDuedVA),
		TotalDuedVT:     money(s.TotalDuedVT),
		TotalMeal:       money(s.TotalMeal),
		TotalBreakfast:  money(s.TotalBreakfast),
		PhysicalBaskets: s.PhysicalBaskets,
		AbsenceDays:     s.AbsenceDays,
	}
}

func toAnnualSummaryDTO(s benefits.AnnualSummary) AnnualSummaryDTO {
	return AnnualSummaryDTO{
		Key:             s.Key,
		Name:            s.Name,
		TotalVA:         money(s.TotalVA),
		TotalVT:         money(s.TotalVT),
		TotalMeal:       money(s.TotalMeal),
		TotalBreakfast:  money(s.TotalBreakfast),
		PhysicalBaskets: s.PhysicalBaskets,
		AbsenceDays:     s.AbsenceDays,
		Months:          s.Months,
	}
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring}
}

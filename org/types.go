/*
Package org models the organizational hierarchy that benefit policy hangs off.

PURPOSE:
  Unit → Location → Sector → Employee. Units carry the base daily VA rate;
  sectors carry everything else (VA override, VT, discount, food basket).
  Employees point at a sector and inherit its policy.

KEY CONCEPTS:
  - Directory:    read access to the hierarchy
  - Repository:   Directory plus writes and dependent counts
  - RateResolver: live Sector → Location → Unit rate resolution
  - Scope:        "all", "unit:<id>", "location:<id>", "sector:<id>"
  - Service:      CRUD with deletion guards and employee denormalization

REFERENTIAL GAPS:
  A missing sector, location or unit is not an error for calculations. The
  resolver degrades to zero-valued rates so a batch never fails because of
  one stale reference.

SEE ALSO:
  - rates.go: RateResolver
  - service.go: CRUD rules
  - store/memory, store/sqlite: Repository implementations
*/
package org

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HIERARCHY RECORDS
// =============================================================================

type Unit struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	BaseDailyVA decimal.Decimal `json:"baseDailyVA"`
}

type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UnitID string `json:"unitId"`
}

type Sector struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	LocationID        string          `json:"locationId"`
	OverrideDailyVA   decimal.Decimal `json:"overrideDailyVA"`
	DailyVT           decimal.Decimal `json:"dailyVT"`
	VADiscountPercent decimal.Decimal `json:"vaDiscountPercent"`
	FoodBasketValue   decimal.Decimal `json:"foodBasketValue"`
	FoodBasketKind    FoodBasketKind  `json:"foodBasketKind"`
}

// Employee keeps denormalized hierarchy names for display. Calculations never
// read them; they always resolve through SectorID.
type Employee struct {
	ID                 string          `json:"id"`
	RegistrationNumber string          `json:"registrationNumber"`
	Name               string          `json:"name"`
	Salary             decimal.Decimal `json:"salary"`
	SectorID           string          `json:"sectorId"`
	SectorName         string          `json:"sectorName"`
	LocationName       string          `json:"locationName"`
	UnitName           string          `json:"unitName"`
}

// =============================================================================
// FOOD BASKET KIND
// =============================================================================

type FoodBasketKind string

const (
	BasketNone     FoodBasketKind = "none"
	BasketPaidAsVA FoodBasketKind = "paid_as_va"
	BasketPhysical FoodBasketKind = "physical"
)

// ParseFoodBasketKind accepts the canonical values plus the legacy
// "nenhum", "va" and "fisica" spellings. Empty means none.
func ParseFoodBasketKind(s string) (FoodBasketKind, error) {
	switch s {
	case "", "none", "nenhum":
		return BasketNone, nil
	case "paid_as_va", "va":
		return BasketPaidAsVA, nil
	case "physical", "fisica":
		return BasketPhysical, nil
	}
	return "", fmt.Errorf("unknown food basket kind %q", s)
}

func (k FoodBasketKind) Label() string {
	switch k {
	case BasketPaidAsVA:
		return "Paga no VA"
	case BasketPhysical:
		return "Física"
	default:
		return "Nenhuma"
	}
}

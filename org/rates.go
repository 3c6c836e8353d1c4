package org

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE SET
// =============================================================================

// RateSet is the benefit policy in force for one employee.
type RateSet struct {
	BaseDailyVA      decimal.Decimal `json:"baseDailyVA"`
	EffectiveDailyVA decimal.Decimal `json:"effectiveDailyVA"`
	DailyVT          decimal.Decimal `json:"dailyVT"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	FoodBasketValue  decimal.Decimal `json:"foodBasketValue"`
	FoodBasketKind   FoodBasketKind  `json:"foodBasketKind"`
}

// ComplementaryDailyVA is the part of the effective rate above the unit base,
// never negative.
func (r RateSet) ComplementaryDailyVA() decimal.Decimal {
	comp := r.EffectiveDailyVA.Sub(r.BaseDailyVA)
	if comp.IsNegative() {
		return decimal.Zero
	}
	return comp
}

// ZeroRates is what an employee with no resolvable sector gets.
func ZeroRates() RateSet {
	return RateSet{FoodBasketKind: BasketNone}
}

// =============================================================================
// RATE RESOLVER - Sector → Location → Unit
// =============================================================================

// RateResolver resolves rates live from the current hierarchy. Editing a
// sector therefore changes any month that is recomputed afterwards.
type RateResolver struct {
	dir Directory
}

func NewRateResolver(dir Directory) *RateResolver {
	return &RateResolver{dir: dir}
}

// Resolve looks the employee up by id. An unknown employee gets ZeroRates.
func (r *RateResolver) Resolve(ctx context.Context, employeeID string) (RateSet, error) {
	emp, err := r.dir.GetEmployee(ctx, employeeID)
	if err != nil {
		return RateSet{}, fmt.Errorf("resolve rates: %w", err)
	}
	if emp == nil {
		return ZeroRates(), nil
	}
	return r.ResolveEmployee(ctx, *emp)
}

// ResolveEmployee follows emp.SectorID. The denormalized names on emp are
// ignored.
func (r *RateResolver) ResolveEmployee(ctx context.Context, emp Employee) (RateSet, error) {
	rates := ZeroRates()

	sector, err := r.dir.GetSector(ctx, emp.SectorID)
	if err != nil {
		return RateSet{}, fmt.Errorf("resolve rates: %w", err)
	}
	if sector == nil {
		return rates, nil
	}

	rates.DailyVT = sector.DailyVT
	rates.DiscountPercent = sector.VADiscountPercent
	rates.FoodBasketValue = sector.FoodBasketValue
	rates.FoodBasketKind = sector.FoodBasketKind
	if rates.FoodBasketKind == "" {
		rates.FoodBasketKind = BasketNone
	}

	unit, err := r.unitForSector(ctx, sector)
	if err != nil {
		return RateSet{}, err
	}
	if unit != nil {
		rates.BaseDailyVA = unit.BaseDailyVA
	}

	rates.EffectiveDailyVA = rates.BaseDailyVA
	if !sector.OverrideDailyVA.IsZero() {
		rates.EffectiveDailyVA = sector.OverrideDailyVA
	}
	return rates, nil
}

// UnitOf returns the unit the employee currently belongs to.
func (r *RateResolver) UnitOf(ctx context.Context, emp Employee) (*Unit, error) {
	sector, err := r.dir.GetSector(ctx, emp.SectorID)
	if err != nil || sector == nil {
		return nil, err
	}
	return r.unitForSector(ctx, sector)
}

func (r *RateResolver) unitForSector(ctx context.Context, sector *Sector) (*Unit, error) {
	loc, err := r.dir.GetLocation(ctx, sector.LocationID)
	if err != nil {
		return nil, fmt.Errorf("resolve location: %w", err)
	}
	if loc == nil {
		return nil, nil
	}
	unit, err := r.dir.GetUnit(ctx, loc.UnitID)
	if err != nil {
		return nil, fmt.Errorf("resolve unit: %w", err)
	}
	return unit, nil
}

package org

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
)

// =============================================================================
// SERVICE - Validated CRUD over the hierarchy
// =============================================================================

// Service owns every hierarchy write. It assigns ids, validates references,
// denormalizes employee display names and refuses deletes that would orphan
// children.
type Service struct {
	repo   Repository
	logger *slog.Logger
	mu     sync.Mutex
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Repository() Repository { return s.repo }

// -----------------------------------------------------------------------------
// Units
// -----------------------------------------------------------------------------

func (s *Service) SaveUnit(ctx context.Context, u Unit) (Unit, error) {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return Unit{}, &generic.ValidationError{Field: "name", Message: "required"}
	}
	if u.BaseDailyVA.IsNegative() {
		return Unit{}, &generic.ValidationError{Field: "baseDailyVA", Message: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireExisting(ctx, "unit", u.ID, func() (bool, error) {
		got, err := s.repo.GetUnit(ctx, u.ID)
		return got != nil, err
	}); err != nil {
		return Unit{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := s.repo.SaveUnit(ctx, u); err != nil {
		return Unit{}, fmt.Errorf("save unit: %w", err)
	}
	return u, nil
}

func (s *Service) DeleteUnit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mustExist(ctx, "unit", id, func() (bool, error) {
		got, err := s.repo.GetUnit(ctx, id)
		return got != nil, err
	}); err != nil {
		return err
	}
	n, err := s.repo.CountLocationsInUnit(ctx, id)
	if err != nil {
		return fmt.Errorf("count locations: %w", err)
	}
	if n > 0 {
		return &generic.DependentsError{Kind: "unit", ID: id, DependentKind: "locations", DependentCount: n}
	}
	return s.repo.DeleteUnit(ctx, id)
}

// -----------------------------------------------------------------------------
// Locations
// -----------------------------------------------------------------------------

func (s *Service) SaveLocation(ctx context.Context, l Location) (Location, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return Location{}, &generic.ValidationError{Field: "name", Message: "required"}
	}
	if l.UnitID == "" {
		return Location{}, &generic.ValidationError{Field: "unitId", Message: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unit, err := s.repo.GetUnit(ctx, l.UnitID)
	if err != nil {
		return Location{}, fmt.Errorf("load unit: %w", err)
	}
	if unit == nil {
		return Location{}, &generic.ValidationError{Field: "unitId", Message: "unknown unit " + l.UnitID}
	}
	if err := s.requireExisting(ctx, "location", l.ID, func() (bool, error) {
		got, err := s.repo.GetLocation(ctx, l.ID)
		return got != nil, err
	}); err != nil {
		return Location{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if err := s.repo.SaveLocation(ctx, l); err != nil {
		return Location{}, fmt.Errorf("save location: %w", err)
	}
	return l, nil
}

func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mustExist(ctx, "location", id, func() (bool, error) {
		got, err := s.repo.GetLocation(ctx, id)
		return got != nil, err
	}); err != nil {
		return err
	}
	n, err := s.repo.CountSectorsInLocation(ctx, id)
	if err != nil {
		return fmt.Errorf("count sectors: %w", err)
	}
	if n > 0 {
		return &generic.DependentsError{Kind: "location", ID: id, DependentKind: "sectors", DependentCount: n}
	}
	return s.repo.DeleteLocation(ctx, id)
}

// -----------------------------------------------------------------------------
// Sectors
// -----------------------------------------------------------------------------

func (s *Service) SaveSector(ctx context.Context, sec Sector) (Sector, error) {
	if err := validateSector(&sec); err != nil {
		return Sector{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, err := s.repo.GetLocation(ctx, sec.LocationID)
	if err != nil {
		return Sector{}, fmt.Errorf("load location: %w", err)
	}
	if loc == nil {
		return Sector{}, &generic.ValidationError{Field: "locationId", Message: "unknown location " + sec.LocationID}
	}
	if err := s.requireExisting(ctx, "sector", sec.ID, func() (bool, error) {
		got, err := s.repo.GetSector(ctx, sec.ID)
		return got != nil, err
	}); err != nil {
		return Sector{}, err
	}
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	if err := s.repo.SaveSector(ctx, sec); err != nil {
		return Sector{}, fmt.Errorf("save sector: %w", err)
	}
	return sec, nil
}

var hundred = decimal.NewFromInt(100)

func validateSector(sec *Sector) error {
	sec.Name = strings.TrimSpace(sec.Name)
	switch {
	case sec.Name == "":
		return &generic.ValidationError{Field: "name", Message: "required"}
	case sec.LocationID == "":
		return &generic.ValidationError{Field: "locationId", Message: "required"}
	case sec.OverrideDailyVA.IsNegative():
		return &generic.ValidationError{Field: "overrideDailyVA", Message: "must not be negative"}
	case sec.DailyVT.IsNegative():
		return &generic.ValidationError{Field: "dailyVT", Message: "must not be negative"}
	case sec.VADiscountPercent.IsNegative() || sec.VADiscountPercent.GreaterThan(hundred):
		return &generic.ValidationError{Field: "vaDiscountPercent", Message: "must be between 0 and 100"}
	case sec.FoodBasketValue.IsNegative():
		return &generic.ValidationError{Field: "foodBasketValue", Message: "must not be negative"}
	}
	kind, err := ParseFoodBasketKind(string(sec.FoodBasketKind))
	if err != nil {
		return &generic.ValidationError{Field: "foodBasketKind", Message: err.Error()}
	}
	sec.FoodBasketKind = kind
	return nil
}

func (s *Service) DeleteSector(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mustExist(ctx, "sector", id, func() (bool, error) {
		got, err := s.repo.GetSector(ctx, id)
		return got != nil, err
	}); err != nil {
		return err
	}
	n, err := s.repo.CountEmployeesInSector(ctx, id)
	if err != nil {
		return fmt.Errorf("count employees: %w", err)
	}
	if n > 0 {
		return &generic.DependentsError{Kind: "sector", ID: id, DependentKind: "employees", DependentCount: n}
	}
	return s.repo.DeleteSector(ctx, id)
}

// -----------------------------------------------------------------------------
// Employees
// -----------------------------------------------------------------------------

// SaveEmployee validates the sector reference and snapshots the sector,
// location and unit names onto the employee.
func (s *Service) SaveEmployee(ctx context.Context, e Employee) (Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.RegistrationNumber = strings.TrimSpace(e.RegistrationNumber)
	switch {
	case e.Name == "":
		return Employee{}, &generic.ValidationError{Field: "name", Message: "required"}
	case e.SectorID == "":
		return Employee{}, &generic.ValidationError{Field: "sectorId", Message: "required"}
	case e.Salary.IsNegative():
		return Employee{}, &generic.ValidationError{Field: "salary", Message: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sector, err := s.repo.GetSector(ctx, e.SectorID)
	if err != nil {
		return Employee{}, fmt.Errorf("load sector: %w", err)
	}
	if sector == nil {
		return Employee{}, &generic.ValidationError{Field: "sectorId", Message: "unknown sector " + e.SectorID}
	}
	if err := s.requireExisting(ctx, "employee", e.ID, func() (bool, error) {
		got, err := s.repo.GetEmployee(ctx, e.ID)
		return got != nil, err
	}); err != nil {
		return Employee{}, err
	}

	if err := s.denormalize(ctx, &e, sector); err != nil {
		return Employee{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.repo.SaveEmployee(ctx, e); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	return e, nil
}

func (s *Service) denormalize(ctx context.Context, e *Employee, sector *Sector) error {
	e.SectorName = sector.Name
	e.LocationName = ""
	e.UnitName = ""

	loc, err := s.repo.GetLocation(ctx, sector.LocationID)
	if err != nil {
		return fmt.Errorf("load location: %w", err)
	}
	if loc == nil {
		return nil
	}
	e.LocationName = loc.Name

	unit, err := s.repo.GetUnit(ctx, loc.UnitID)
	if err != nil {
		return fmt.Errorf("load unit: %w", err)
	}
	if unit != nil {
		e.UnitName = unit.Name
	}
	return nil
}

// DeleteEmployee removes the employee only. Events and calculation records
// that reference it are left in place.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mustExist(ctx, "employee", id, func() (bool, error) {
		got, err := s.repo.GetEmployee(ctx, id)
		return got != nil, err
	}); err != nil {
		return err
	}
	s.logger.Info("employee deleted", "employee_id", id)
	return s.repo.DeleteEmployee(ctx, id)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// requireExisting fails when an explicit id is given for an update but no
// record carries it. An empty id means create.
func (s *Service) requireExisting(ctx context.Context, kind, id string, exists func() (bool, error)) error {
	if id == "" {
		return nil
	}
	return s.mustExist(ctx, kind, id, exists)
}

func (s *Service) mustExist(_ context.Context, kind, id string, exists func() (bool, error)) error {
	ok, err := exists()
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	if !ok {
		return notFound(kind, id)
	}
	return nil
}

package org

import (
	"context"
	"fmt"

	"github.com/warp/benefits-engine/generic"
)

// Directory is read access to the hierarchy. Get methods return (nil, nil)
// when the record does not exist.
type Directory interface {
	GetUnit(ctx context.Context, id string) (*Unit, error)
	GetLocation(ctx context.Context, id string) (*Location, error)
	GetSector(ctx context.Context, id string) (*Sector, error)
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	ListUnits(ctx context.Context) ([]Unit, error)
	ListLocations(ctx context.Context) ([]Location, error)
	ListSectors(ctx context.Context) ([]Sector, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// Repository adds writes. Saves are upserts keyed by ID.
type Repository interface {
	Directory

	SaveUnit(ctx context.Context, u Unit) error
	SaveLocation(ctx context.Context, l Location) error
	SaveSector(ctx context.Context, s Sector) error
	SaveEmployee(ctx context.Context, e Employee) error

	DeleteUnit(ctx context.Context, id string) error
	DeleteLocation(ctx context.Context, id string) error
	DeleteSector(ctx context.Context, id string) error
	DeleteEmployee(ctx context.Context, id string) error

	CountLocationsInUnit(ctx context.Context, unitID string) (int, error)
	CountSectorsInLocation(ctx context.Context, locationID string) (int, error)
	CountEmployeesInSector(ctx context.Context, sectorID string) (int, error)
}

func notFound(kind, id string) error {
	return &generic.NotFoundError{Kind: kind, ID: id}
}

// MustGetEmployee is GetEmployee with a not-found error instead of nil.
func MustGetEmployee(ctx context.Context, dir Directory, id string) (*Employee, error) {
	emp, err := dir.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return nil, notFound("employee", id)
	}
	return emp, nil
}

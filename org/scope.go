package org

import (
	"context"
	"fmt"
	"strings"
)

// ScopeKind selects which part of the hierarchy a batch targets.
type ScopeKind string

const (
	ScopeAll      ScopeKind = "all"
	ScopeUnit     ScopeKind = "unit"
	ScopeLocation ScopeKind = "location"
	ScopeSector   ScopeKind = "sector"
)

// Scope is a subtree of the hierarchy. The zero value targets everyone.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// ParseScope reads "all", "" or "<kind>:<id>". The legacy prefix
// "localidade:" is accepted for location, "setor:" for sector.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(ScopeAll) {
		return Scope{Kind: ScopeAll}, nil
	}

	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Scope{}, fmt.Errorf("invalid scope %q", s)
	}
	switch kind {
	case "unit":
		return Scope{Kind: ScopeUnit, ID: id}, nil
	case "location", "localidade":
		return Scope{Kind: ScopeLocation, ID: id}, nil
	case "sector", "setor":
		return Scope{Kind: ScopeSector, ID: id}, nil
	}
	return Scope{}, fmt.Errorf("invalid scope kind %q", kind)
}

func (s Scope) String() string {
	if s.Kind == "" || s.Kind == ScopeAll {
		return string(ScopeAll)
	}
	return string(s.Kind) + ":" + s.ID
}

// Employees returns every employee inside the scope, in directory order.
// Employees whose sector chain is broken only match ScopeAll.
func (s Scope) Employees(ctx context.Context, dir Directory) ([]Employee, error) {
	all, err := dir.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	if s.Kind == "" || s.Kind == ScopeAll {
		return all, nil
	}

	sectors, err := s.sectorSet(ctx, dir)
	if err != nil {
		return nil, err
	}

	matched := make([]Employee, 0, len(all))
	for _, e := range all {
		if sectors[e.SectorID] {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (s Scope) sectorSet(ctx context.Context, dir Directory) (map[string]bool, error) {
	set := make(map[string]bool)
	if s.Kind == ScopeSector {
		set[s.ID] = true
		return set, nil
	}

	locations := make(map[string]bool)
	if s.Kind == ScopeLocation {
		locations[s.ID] = true
	} else {
		locs, err := dir.ListLocations(ctx)
		if err != nil {
			return nil, fmt.Errorf("list locations: %w", err)
		}
		for _, l := range locs {
			if l.UnitID == s.ID {
				locations[l.ID] = true
			}
		}
	}

	sectors, err := dir.ListSectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	for _, sec := range sectors {
		if locations[sec.LocationID] {
			set[sec.ID] = true
		}
	}
	return set, nil
}

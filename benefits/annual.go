package benefits

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// ANNUAL AGGREGATOR
// =============================================================================

type GroupBy string

const (
	GroupByEmployee GroupBy = "employee"
	GroupByUnit     GroupBy = "unit"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch s {
	case "", string(GroupByEmployee):
		return GroupByEmployee, nil
	case string(GroupByUnit):
		return GroupByUnit, nil
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// AnnualSummary totals one group's finalized months.
type AnnualSummary struct {
	Key             string          `json:"key"`
	Name            string          `json:"name"`
	TotalVA         decimal.Decimal `json:"totalVA"`
	TotalVT         decimal.Decimal `json:"totalVT"`
	TotalMeal       decimal.Decimal `json:"totalMeal"`
	TotalBreakfast  decimal.Decimal `json:"totalBreakfast"`
	PhysicalBaskets int             `json:"physicalBaskets"`
	AbsenceDays     int             `json:"absenceDays"`
	Months          int             `json:"months"`
}

type AnnualAggregator struct {
	ledger *Ledger
	dir    org.Directory
	rates  *org.RateResolver
}

func NewAnnualAggregator(ledger *Ledger, dir org.Directory, rates *org.RateResolver) *AnnualAggregator {
	return &AnnualAggregator{ledger: ledger, dir: dir, rates: rates}
}

// Summarize rolls up the finalized records of year. Records whose employee
// or unit no longer resolves are skipped. When employees is non-nil only
// those employees count. Output is sorted by name.
func (a *AnnualAggregator) Summarize(ctx context.Context, year int, group GroupBy, employees []org.Employee) ([]AnnualSummary, error) {
	records, err := a.ledger.Year(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load year: %w", err)
	}

	var allowed map[string]bool
	if employees != nil {
		allowed = make(map[string]bool, len(employees))
		for _, e := range employees {
			allowed[e.ID] = true
		}
	}

	groups := make(map[string]*AnnualSummary)
	for _, rec := range records {
		if !rec.IsFinalized() || rec.Settlement == nil {
			continue
		}
		if allowed != nil && !allowed[rec.EmployeeID] {
			continue
		}

		key, name, ok, err := a.groupKey(ctx, rec.EmployeeID, group)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		g, exists := groups[key]
		if !exists {
			g = &AnnualSummary{Key: key, Name: name}
			groups[key] = g
		}
		s := rec.Settlement
		g.TotalVA = g.TotalVA.Add(s.DuedVA())
		g.TotalVT = g.TotalVT.Add(s.DuedVT)
		g.TotalMeal = g.TotalMeal.Add(s.MealReimbursement)
		g.TotalBreakfast = g.TotalBreakfast.Add(s.BreakfastReimbursement)
		g.AbsenceDays += s.DaysAbsent
		g.Months++
		if s.PhysicalBasketGranted() {
			g.PhysicalBaskets++
		}
	}

	out := make([]AnnualSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (a *AnnualAggregator) groupKey(ctx context.Context, employeeID string, group GroupBy) (string, string, bool, error) {
	emp, err := a.dir.GetEmployee(ctx, employeeID)
	if err != nil {
		return "", "", false, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return "", "", false, nil
	}
	if group != GroupByUnit {
		return emp.ID, emp.Name, true, nil
	}

	unit, err := a.rates.UnitOf(ctx, *emp)
	if err != nil {
		return "", "", false, err
	}
	if unit == nil {
		return "", "", false, nil
	}
	return unit.ID, unit.Name, true, nil
}

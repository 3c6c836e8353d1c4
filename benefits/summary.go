package benefits

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// MonthSummary is the dashboard view of one month.
type MonthSummary struct {
	Month           generic.MonthKey `json:"month"`
	Employees       int              `json:"employees"`
	Pending         int              `json:"pending"`
	Advanced        int              `json:"advanced"`
	Finalized       int              `json:"finalized"`
	TotalAdvancedVA decimal.Decimal  `json:"totalAdvancedVA"`
	TotalAdvancedVT decimal.Decimal  `json:"totalAdvancedVT"`
	TotalDuedVA     decimal.Decimal  `json:"totalDuedVA"`
	TotalDuedVT     decimal.Decimal  `json:"totalDuedVT"`
	TotalMeal       decimal.Decimal  `json:"totalMeal"`
	TotalBreakfast  decimal.Decimal  `json:"totalBreakfast"`
	PhysicalBaskets int              `json:"physicalBaskets"`
	AbsenceDays     int              `json:"absenceDays"`
}

// SummarizeMonth totals records of month for the given employees. Employees
// without a record count as pending.
func SummarizeMonth(month generic.MonthKey, records []CalculationRecord, employees []org.Employee) MonthSummary {
	byEmployee := make(map[string]CalculationRecord, len(records))
	for _, r := range records {
		if r.Month == month {
			byEmployee[r.EmployeeID] = r
		}
	}

	sum := MonthSummary{Month: month, Employees: len(employees)}
	for _, emp := range employees {
		rec, ok := byEmployee[emp.ID]
		if !ok {
			sum.Pending++
			continue
		}
		switch rec.Status {
		case StatusAdvanced:
			sum.Advanced++
		case StatusFinalized:
			sum.Finalized++
		default:
			sum.Pending++
		}
		if rec.Advance != nil {
			sum.TotalAdvancedVA = sum.TotalAdvancedVA.Add(rec.Advance.TotalAdvancedVA)
			sum.TotalAdvancedVT = sum.TotalAdvancedVT.Add(rec.Advance.TotalAdvancedVT)
		}
		if rec.IsFinalized() && rec.Settlement != nil {
			s := rec.Settlement
			sum.TotalDuedVA = sum.TotalDuedVA.Add(s.DuedVA())
			sum.TotalDuedVT = sum.TotalDuedVT.Add(s.DuedVT)
			sum.TotalMeal = sum.TotalMeal.Add(s.MealReimbursement)
			sum.TotalBreakfast = sum.TotalBreakfast.Add(s.BreakfastReimbursement)
			sum.AbsenceDays += s.DaysAbsent
			if s.PhysicalBasketGranted() {
				sum.PhysicalBaskets++
			}
		}
	}
	return sum
}

// CostPoint is one month of finalized spend.
type CostPoint struct {
	Month generic.MonthKey `json:"month"`
	VA    decimal.Decimal  `json:"va"`
	VT    decimal.Decimal  `json:"vt"`
}

// CostEvolution returns finalized VA and VT totals for the months ending
// at end, oldest first.
func CostEvolution(ctx context.Context, ledger *Ledger, end generic.MonthKey, months int, employees []org.Employee) ([]CostPoint, error) {
	if months <= 0 {
		months = 6
	}
	allowed := make(map[string]bool, len(employees))
	for _, e := range employees {
		allowed[e.ID] = true
	}

	points := make([]CostPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		m := end.AddMonths(-i)
		records, err := ledger.Month(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("load month %s: %w", m, err)
		}
		p := CostPoint{Month: m}
		for _, r := range records {
			if !allowed[r.EmployeeID] || !r.IsFinalized() || r.Settlement == nil {
				continue
			}
			p.VA = p.VA.Add(r.Settlement.DuedVA())
			p.VT = p.VT.Add(r.Settlement.DuedVT)
		}
		points = append(points, p)
	}
	return points, nil
}

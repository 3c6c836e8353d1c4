package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/org"
)

// Line pairs a finalized record with its employee.
type Line struct {
	Employee org.Employee
	Record   benefits.CalculationRecord
}

// FinalizedLines joins records to employees, keeping only finalized records
// of employees in the list. Output is sorted by employee name.
func FinalizedLines(records []benefits.CalculationRecord, employees []org.Employee) []Line {
	byID := make(map[string]org.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	var lines []Line
	for _, r := range records {
		emp, ok := byID[r.EmployeeID]
		if !ok || !r.IsFinalized() || r.Settlement == nil {
			continue
		}
		lines = append(lines, Line{Employee: emp, Record: r})
	}
	sort.Slice(lines, func(i, j int) bool {
		return strings.ToLower(lines[i].Employee.Name) < strings.ToLower(lines[j].Employee.Name)
	})
	return lines
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = true
	return cw
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// =============================================================================
// ANNUAL REPORT
// =============================================================================

// WriteAnnualCSV writes one line per group with two-decimal totals.
func WriteAnnualCSV(w io.Writer, group benefits.GroupBy, rows []benefits.AnnualSummary) error {
	first := "Colaborador"
	if group == benefits.GroupByUnit {
		first = "Unidade"
	}

	cw := newWriter(w)
	if err := cw.Write([]string{first, "Total VA", "Total VT", "Total Janta", "Total Café", "Cestas Físicas", "Ausências (Dias)"}); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			r.Name,
			r.TotalVA.StringFixed(2),
			r.TotalVT.StringFixed(2),
			r.TotalMeal.StringFixed(2),
			r.TotalBreakfast.StringFixed(2),
			strconv.Itoa(r.PhysicalBaskets),
			strconv.Itoa(r.AbsenceDays),
		})
		if err != nil {
			return err
		}
	}
	return flush(cw)
}

// =============================================================================
// MONTHLY EXPORTS
// =============================================================================

// WriteVAVTCSV writes the amounts due for the month, one line per employee.
func WriteVAVTCSV(w io.Writer, lines []Line) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"Matrícula", "Colaborador", "Setor", "Dias Trabalhados", "VA Base", "VA Complementar", "Total VA", "VT", "Desconto VT"}); err != nil {
		return err
	}
	for _, l := range lines {
		s := l.Record.Settlement
		err := cw.Write([]string{
			l.Employee.RegistrationNumber,
			l.Employee.Name,
			l.Employee.SectorName,
			strconv.Itoa(s.DaysActualWorked),
			decimalComma(s.DuedVABase),
			decimalComma(s.DuedVAComp),
			decimalComma(s.DuedVA()),
			decimalComma(s.DuedVT),
			decimalComma(s.VTDiscount),
		})
		if err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteReimbursementCSV writes meal and breakfast reimbursements. Employees
// with neither are left out.
func WriteReimbursementCSV(w io.Writer, lines []Line) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"Matrícula", "Colaborador", "Janta", "Café", "Total"}); err != nil {
		return err
	}
	for _, l := range lines {
		s := l.Record.Settlement
		if s.MealReimbursement.IsZero() && s.BreakfastReimbursement.IsZero() {
			continue
		}
		err := cw.Write([]string{
			l.Employee.RegistrationNumber,
			l.Employee.Name,
			decimalComma(s.MealReimbursement),
			decimalComma(s.BreakfastReimbursement),
			decimalComma(s.MealReimbursement.Add(s.BreakfastReimbursement)),
		})
		if err != nil {
			return err
		}
	}
	return flush(cw)
}

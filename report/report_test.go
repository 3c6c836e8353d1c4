package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/org"
	"github.com/warp/benefits-engine/report"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	ana   = org.Employee{ID: "e1", Name: "ana Souza", RegistrationNumber: "1001", SectorName: "Operação", UnitName: "Matriz", LocationName: "Centro"}
	bruno = org.Employee{ID: "e2", Name: "Bruno Lima", RegistrationNumber: "1002", SectorName: "Depósito"}
)

func finalized(employeeID string, s benefits.Settlement) benefits.CalculationRecord {
	return benefits.CalculationRecord{Month: "2025-04", EmployeeID: employeeID, Status: benefits.StatusFinalized, Settlement: &s}
}

// =============================================================================
// LINES
// =============================================================================

func TestFinalizedLines_FiltersAndSorts(t *testing.T) {
	records := []benefits.CalculationRecord{
		finalized("e2", benefits.Settlement{}),
		{Month: "2025-04", EmployeeID: "e1", Status: benefits.StatusAdvanced},
		finalized("e1", benefits.Settlement{}),
		finalized("ghost", benefits.Settlement{}),
	}

	lines := report.FinalizedLines(records, []org.Employee{bruno, ana})

	require.Len(t, lines, 2)
	assert.Equal(t, "e1", lines[0].Employee.ID, "sorted case-insensitively")
	assert.Equal(t, "e2", lines[1].Employee.ID)
}

// =============================================================================
// CSV
// =============================================================================

func csvLines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\r\n"))
	return strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
}

func TestWriteAnnualCSV(t *testing.T) {
	rows := []benefits.AnnualSummary{
		{Name: "Ana Souza", TotalVA: d("900"), TotalVT: d("40.5"), TotalMeal: d("80"), TotalBreakfast: decimal.Zero, PhysicalBaskets: 1, AbsenceDays: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteAnnualCSV(&buf, benefits.GroupByEmployee, rows))

	lines := csvLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Colaborador;Total VA;Total VT;Total Janta;Total Café;Cestas Físicas;Ausências (Dias)", lines[0])
	assert.Equal(t, "Ana Souza;900.00;40.50;80.00;0.00;1;2", lines[1])
}

func TestWriteAnnualCSV_ByUnitHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteAnnualCSV(&buf, benefits.GroupByUnit, nil))

	assert.True(t, strings.HasPrefix(buf.String(), "Unidade;"))
}

func TestWriteVAVTCSV(t *testing.T) {
	lines := []report.Line{{Employee: ana, Record: finalized("e1", benefits.Settlement{
		DaysActualWorked: 20, DuedVABase: d("360"), DuedVAComp: d("90"), DuedVT: d("20"), VTDiscount: d("180"),
	})}}

	var buf bytes.Buffer
	require.NoError(t, report.WriteVAVTCSV(&buf, lines))

	out := csvLines(t, &buf)
	require.Len(t, out, 2)
	assert.Equal(t, "1001;ana Souza;Operação;20;360,00;90,00;450,00;20,00;180,00", out[1])
}

func TestWriteReimbursementCSV_SkipsEmpty(t *testing.T) {
	lines := []report.Line{
		{Employee: ana, Record: finalized("e1", benefits.Settlement{MealReimbursement: d("150.5"), BreakfastReimbursement: d("45")})},
		{Employee: bruno, Record: finalized("e2", benefits.Settlement{})},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteReimbursementCSV(&buf, lines))

	out := csvLines(t, &buf)
	require.Len(t, out, 2)
	assert.Equal(t, "Matrícula;Colaborador;Janta;Café;Total", out[0])
	assert.Equal(t, "1001;ana Souza;150,50;45,00;195,50", out[1])
}

// =============================================================================
// PAYSTUB
// =============================================================================

func TestWritePaystub_ProducesPDF(t *testing.T) {
	tests := []struct {
		name string
		rec  benefits.CalculationRecord
	}{
		{"advanced only", benefits.CalculationRecord{
			Month: "2025-05", EmployeeID: "e1", Status: benefits.StatusAdvanced,
			Advance: &benefits.AdvancePhase{DaysPlannedWorked: 21, TotalAdvancedVA: d("495")},
		}},
		{"finalized with basket voided", benefits.CalculationRecord{
			Month: "2025-04", EmployeeID: "e1", Status: benefits.StatusFinalized,
			Advance: &benefits.AdvancePhase{DaysPlannedWorked: 22},
			Settlement: &benefits.Settlement{
				WorkingDays: 22, DaysAbsent: 1, DaysActualWorked: 21,
				MealReimbursement: d("30"), FoodBasketKind: org.BasketPhysical,
				AdjustmentVT: d("-5"), Total: d("470"),
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			require.NoError(t, report.WritePaystub(&buf, ana, tt.rec))

			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
		})
	}
}

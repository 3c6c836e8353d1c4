// Package report renders calculation records as paystub PDFs and CSV
// exports.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/benefits"
	"github.com/warp/benefits-engine/org"
)

// WritePaystub renders one employee's month as a single-page A4 PDF.
func WritePaystub(w io.Writer, emp org.Employee, rec benefits.CalculationRecord) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr("Demonstrativo de Benefícios"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Colaborador: %s (%s)", emp.Name, emp.RegistrationNumber)))
	pdf.Ln(6)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Lotação: %s / %s / %s", emp.UnitName, emp.LocationName, emp.SectorName)))
	pdf.Ln(6)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Competência: %s    Status: %s", rec.Month, statusLabel(rec.Status))))
	pdf.Ln(10)

	table := paystubTable{pdf: pdf, tr: tr}

	if s := rec.Settlement; s != nil {
		table.section("Parâmetros")
		table.row("VA diário base", brl(s.Rates.BaseDailyVA))
		table.row("VA diário efetivo", brl(s.Rates.EffectiveDailyVA))
		table.row("VT diário", brl(s.Rates.DailyVT))
		table.row("Desconto VA", s.Rates.DiscountPercent.StringFixed(2)+"%")
		pdf.Ln(4)
	}

	if a := rec.Advance; a != nil {
		table.section("Adiantamento")
		table.row("Dias previstos", fmt.Sprint(a.DaysPlannedWorked))
		table.row("Saldo anterior VA", brl(a.PriorMonthBalanceVA))
		table.row("Saldo anterior VT", brl(a.PriorMonthBalanceVT))
		table.row("VA base", brl(a.AdvancedVABase))
		table.row("VA complementar", brl(a.AdvancedVAComp))
		table.row("VT líquido", brl(a.AdvancedVT))
		table.row("Desconto VT", brl(a.VTDiscount))
		table.total("Total VA adiantado", brl(a.TotalAdvancedVA))
		table.total("Total VT adiantado", brl(a.TotalAdvancedVT))
		pdf.Ln(4)
	}

	if s := rec.Settlement; s != nil {
		table.section("Apuração")
		table.row("Dias úteis", fmt.Sprint(s.WorkingDays))
		table.row("Ausências", fmt.Sprint(s.DaysAbsent))
		table.row("Dias trabalhados", fmt.Sprint(s.DaysActualWorked))
		table.row("VA base devido", brl(s.DuedVABase))
		table.row("VA complementar devido", brl(s.DuedVAComp))
		table.row("VT devido", brl(s.DuedVT))
		table.row("Desconto VT", brl(s.VTDiscount))
		if !s.AdjustmentVABase.IsZero() || !s.AdjustmentVAComp.IsZero() || !s.AdjustmentVT.IsZero() {
			table.row("Ajuste VA base", brl(s.AdjustmentVABase))
			table.row("Ajuste VA complementar", brl(s.AdjustmentVAComp))
			table.row("Ajuste VT", brl(s.AdjustmentVT))
		}
		if s.MealReimbursement.IsPositive() {
			table.row("Reembolso Janta", brl(s.MealReimbursement))
		}
		if s.BreakfastReimbursement.IsPositive() {
			table.row("Reembolso Café", brl(s.BreakfastReimbursement))
		}
		if s.FoodBasketKind != org.BasketNone && s.FoodBasketKind != "" {
			basket := s.FoodBasketKind.Label()
			if s.DaysAbsent > 0 {
				basket += " (não concedida)"
			}
			table.row("Cesta básica", basket+" "+brl(s.FoodBasketValue))
		}
		table.total("Saldo VA", brl(s.BalanceVA))
		table.total("Saldo VT", brl(s.BalanceVT))
		table.total("Total", brl(s.Total))
	}

	return pdf.Output(w)
}

type paystubTable struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (t paystubTable) section(title string) {
	t.pdf.SetFont("Helvetica", "B", 12)
	t.pdf.SetFillColor(230, 230, 230)
	t.pdf.CellFormat(0, 8, t.tr(title), "", 1, "L", true, 0, "")
	t.pdf.SetFont("Helvetica", "", 11)
}

func (t paystubTable) row(label, value string) {
	t.pdf.CellFormat(120, 6, t.tr(label), "", 0, "L", false, 0, "")
	t.pdf.CellFormat(60, 6, t.tr(value), "", 1, "R", false, 0, "")
}

func (t paystubTable) total(label, value string) {
	t.pdf.SetFont("Helvetica", "B", 11)
	t.row(label, value)
	t.pdf.SetFont("Helvetica", "", 11)
}

func statusLabel(s benefits.Status) string {
	switch s {
	case benefits.StatusAdvanced:
		return "Adiantado"
	case benefits.StatusFinalized:
		return "Finalizado"
	default:
		return "Pendente"
	}
}

// brl formats d as Brazilian currency with a decimal comma.
func brl(d decimal.Decimal) string {
	return "R$ " + decimalComma(d)
}

func decimalComma(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

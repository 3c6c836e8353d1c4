package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// CSV ADJUSTMENT IMPORT
// =============================================================================

// ImportOptions apply to every row of one file.
type ImportOptions struct {
	ReferenceMonth generic.MonthKey
	BenefitType    BenefitType
}

// ImportResult counts rows. Skipped rows had no matching employee; ignored
// rows matched but carried no positive amount.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Ignored  int `json:"ignored"`
}

var headerFolding = strings.NewReplacer("á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e", "í", "i", "ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c", "\"", "")

// Import reads a delimited file of per-employee amounts and creates one
// adjustment per matched row. The header must have an identity column
// (motorista, matricula or cpf) and a value column (valor); a quantity
// column (dias or qtd) multiplies the value when present.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error) {
	if !opts.ReferenceMonth.Valid() {
		return ImportResult{}, &generic.ValidationError{Field: "referenceMonth", Message: "expected YYYY-MM"}
	}
	if !opts.BenefitType.Valid() {
		return ImportResult{}, &generic.ValidationError{Field: "benefitType", Message: "unknown benefit type " + string(opts.BenefitType)}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return ImportResult{}, ErrMissingColumns
	}

	idCol, valCol, qtyCol := -1, -1, -1
	for i, h := range rows[0] {
		h = headerFolding.Replace(strings.ToLower(strings.TrimSpace(h)))
		switch {
		case idCol == -1 && (strings.Contains(h, "motorista") || strings.Contains(h, "matricula") || strings.Contains(h, "cpf")):
			idCol = i
		case valCol == -1 && strings.Contains(h, "valor"):
			valCol = i
		case qtyCol == -1 && (strings.Contains(h, "dias") || strings.Contains(h, "qtd")):
			qtyCol = i
		}
	}
	if idCol == -1 || valCol == -1 {
		return ImportResult{}, ErrMissingColumns
	}

	employees, err := s.dir.ListEmployees(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("list employees: %w", err)
	}

	var result ImportResult
	var batch []Record
	note := fmt.Sprintf("Importado via CSV (%s)", opts.BenefitType)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		emp := matchEmployee(employees, cell(row, idCol))
		if emp == nil {
			result.Skipped++
			continue
		}

		total := lenientAmount(cell(row, valCol), decimal.Zero)
		if qtyCol != -1 {
			total = total.Mul(lenientAmount(cell(row, qtyCol), decimal.NewFromInt(1)))
		}
		if !total.IsPositive() {
			result.Ignored++
			continue
		}

		batch = append(batch, ToRecord(AdjustmentEvent{
			ID:             uuid.NewString(),
			EmployeeID:     emp.ID,
			ReferenceMonth: opts.ReferenceMonth,
			BenefitType:    opts.BenefitType,
			Value:          total,
			Notes:          note,
		}))
		result.Imported++
	}

	if len(batch) > 0 {
		s.mu.Lock()
		err := s.store.SaveEvents(ctx, batch)
		s.mu.Unlock()
		if err != nil {
			return ImportResult{}, fmt.Errorf("save events: %w", err)
		}
	}
	s.logger.Info("csv adjustment import",
		"month", opts.ReferenceMonth.String(), "benefit_type", string(opts.BenefitType),
		"imported", result.Imported, "skipped", result.Skipped, "ignored", result.Ignored)
	return result, nil
}

// detectDelimiter looks at the header line only.
func detectDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Contains(line, ";") {
		return ';'
	}
	return ','
}

// matchEmployee tries the registration number first, then the name without
// regard to case.
func matchEmployee(employees []org.Employee, key string) *org.Employee {
	if key == "" {
		return nil
	}
	for i := range employees {
		if employees[i].RegistrationNumber != "" && employees[i].RegistrationNumber == key {
			return &employees[i]
		}
	}
	for i := range employees {
		if strings.EqualFold(employees[i].Name, key) {
			return &employees[i]
		}
	}
	return nil
}

// lenientAmount parses s, falling back when it is empty, malformed or zero.
func lenientAmount(s string, fallback decimal.Decimal) decimal.Decimal {
	d, err := generic.ParseMoney(s)
	if err != nil || d.IsZero() {
		return fallback
	}
	return d
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(row[i], "\"", ""))
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

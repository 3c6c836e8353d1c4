/*
Package generic provides the domain-agnostic primitives of the benefits engine.

PURPOSE:
  Money arithmetic, calendar dates, month keys, periods and the error
  taxonomy shared by every domain package. Nothing in here knows about
  units, sectors, employees or benefits.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: currency values are always decimal.Decimal, never float64
  - DiscountFactor: percentage discount expressed as a multiplier
  - ParseMoney: lenient parsing of user input ("12,50", " 7.5 ")

DESIGN PRINCIPLES:
  1. Precision: every currency amount is a decimal.Decimal
  2. Zero is a valid value: missing configuration resolves to decimal.Zero
  3. Floats only at the edges (JSON DTOs, reports)

USAGE:
  daily := generic.Money(20)
  gross := daily.Mul(decimal.NewFromInt(22))
  net := gross.Mul(generic.DiscountFactor(generic.Money(10))) // 396

SEE ALSO:
  - time.go: Date
  - period.go: Period and MonthKey
  - errors.go: Error taxonomy
*/
package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Money converts a float literal into a decimal currency value.
func Money(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// MoneyFromInt converts an integer into a decimal currency value.
func MoneyFromInt(value int) decimal.Decimal {
	return decimal.NewFromInt(int64(value))
}

// ParseMoney parses user supplied currency text. Both "12.50" and the
// decimal-comma form "12,50" are accepted; surrounding spaces are ignored.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// DiscountFactor returns (1 - percent/100).
func DiscountFactor(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(percent.Div(hundred))
}

// Percent returns value × percent/100.
func Percent(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(hundred)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

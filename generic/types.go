/*
Package generic provides the domain-agnostic primitives of the attendance engine.

PURPOSE:
  Calendar days, clock times, months and periods, money rounding and the
  error taxonomy shared by every other package. Nothing in here knows about
  employees, punches or the ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal values rounded to 2 places at every boundary
  - Day counts: salary-day-count credits (0, fractional, 1)
  - Fixed-point conversion for stores that persist integer cents

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in pay
  2. Totality: Arithmetic helpers never fail; bad divisors yield zero
  3. Rounding: Half away from zero, 2 places, applied where values are produced

SEE ALSO:
  - time.go: Dates, clock times and minute arithmetic
  - period.go: Months and periods
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places kept for salary figures.
const MoneyPlaces = 2

// RoundMoney rounds to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Ratio returns num/den rounded to MoneyPlaces, or zero when den <= 0.
func Ratio(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return RoundMoney(decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den))))
}

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// FIXED POINT - integer hundredths for SQL SUM()
// =============================================================================

// ToHundredths converts a 2-place value to an integer count of hundredths.
func ToHundredths(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(MoneyPlaces).IntPart()
}

// FromHundredths is the inverse of ToHundredths.
func FromHundredths(v int64) decimal.Decimal {
	return decimal.New(v, -MoneyPlaces)
}

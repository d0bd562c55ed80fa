// Package money implements integer minor-unit monetary arithmetic.
//
// All pricing in the checkout operates on int64 amounts in the currency's
// minor unit (centavos). Floating point never enters the calculation;
// shopspring/decimal is used only at the edges, for NUMERIC catalog columns
// and for rendering.
package money

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary quantity in minor units.
type Amount int64

// PercentOf returns floor(value * percentPoints / 100).
// Truncation matches the discount policy: partial cents are never granted.
func PercentOf(value Amount, percentPoints int64) Amount {
	if value <= 0 || percentPoints <= 0 {
		return 0
	}
	return Amount(int64(value) * percentPoints / 100)
}

// ClampNonNegative floors negative amounts at zero.
func ClampNonNegative(value Amount) Amount {
	if value < 0 {
		return 0
	}
	return value
}

// FromDecimal converts a major-unit decimal (e.g. a NUMERIC(12,2) catalog
// price) to minor units, truncating anything beyond two fractional digits.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Shift(2).Truncate(0).IntPart())
}

// Decimal returns the amount as a major-unit decimal with two fractional digits.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// Display formats the amount as Brazilian currency, e.g. "R$ 1.234,56".
func (a Amount) Display() string {
	neg := a < 0
	d := a.Decimal().Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(d, ".")

	var b strings.Builder
	b.WriteString("R$ ")
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// String implements fmt.Stringer using plain minor units.
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

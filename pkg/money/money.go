// Package money holds the fixed-point helpers used for every ledger amount.
// Amounts are shopspring decimals kept at the currency's minor unit (2 places).
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of decimal places of the ledger currency.
const MinorUnits int32 = 2

var ErrInvalid = errors.New("money: invalid amount")

var Zero = decimal.Zero

// New returns a whole-unit amount.
func New(units int64) decimal.Decimal { return decimal.NewFromInt(units) }

// Parse reads a decimal string and rejects values finer than the minor unit.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalid
	}
	if !d.Equal(d.Round(MinorUnits)) {
		return decimal.Zero, ErrInvalid
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds half away from zero to the minor unit.
func Round(d decimal.Decimal) decimal.Decimal { return d.Round(MinorUnits) }

// HasMinorPrecision reports whether d needs no rounding.
func HasMinorPrecision(d decimal.Decimal) bool { return d.Equal(Round(d)) }

func Positive(d decimal.Decimal) bool { return d.GreaterThan(decimal.Zero) }

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Split divides a non-negative total into n parts floored to the minor unit;
// the last part carries the residual, so it is never below the others and
// the parts sum to total.
func Split(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	part := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(MinorUnits)
	out := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		out[i] = part
		allocated = allocated.Add(part)
	}
	out[n-1] = total.Sub(allocated)
	return out
}

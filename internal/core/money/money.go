// Package money holds the decimal-exact price and probability types shared
// by every component downstream of the exchange and sports feeds. Nothing
// in this module or its callers represents a price or probability as a
// binary float — shopspring/decimal backs every quantity here.
package money

import (
	"github.com/shopspring/decimal"
)

// Cents is a contract price or P&L quantity, always an integer number of
// cents. Kalshi contracts settle on [0, 100] but P&L and exposure sums can
// go negative or exceed 100, so this is a signed decimal rather than a
// clamped int.
type Cents = decimal.Decimal

// Prob is a probability on [0, 1] carried to at least 6 fractional digits.
type Prob = decimal.Decimal

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// NewCents builds a Cents value from an integer number of cents.
func NewCents(c int64) Cents { return decimal.NewFromInt(c) }

// CentsFromFloat converts a float64 price (as seen on the wire) to an
// integer number of cents, rounding half to even.
func CentsFromFloat(f float64) Cents {
	return decimal.NewFromFloat(f).RoundBank(0)
}

// ToProb converts a cents price to an implied probability (price / 100).
func ToProb(c Cents) Prob {
	return c.Div(hundred)
}

// FromProb converts a probability back to a cents price, rounded to the
// nearest integer cent (round-half-to-even, per spec.md §9).
func FromProb(p Prob) Cents {
	return p.Mul(hundred).RoundBank(0)
}

// Mid returns the midpoint of two cents prices, rounded to the nearest cent
// (half to even).
func Mid(a, b Cents) Cents {
	return a.Add(b).Div(decimal.NewFromInt(2)).RoundBank(0)
}

// Clamp bounds a cents price to [min, max].
func Clamp(c, min, max Cents) Cents {
	if c.LessThan(min) {
		return min
	}
	if c.GreaterThan(max) {
		return max
	}
	return c
}

// MinPriceGuard is the minimum cents price used as an EV-formula
// denominator floor (spec.md §8: "guard with a minimum price of 1¢").
var MinPriceGuard = decimal.NewFromInt(1)

// EVPercent computes ((truth - cost) / cost) * 100 with cost floored at
// MinPriceGuard cents to avoid division by zero at a 0¢ quote.
func EVPercent(truthProb Prob, costCents Cents) decimal.Decimal {
	cost := costCents
	if cost.LessThan(MinPriceGuard) {
		cost = MinPriceGuard
	}
	costProb := ToProb(cost)
	return truthProb.Sub(costProb).Div(costProb).Mul(hundred)
}

// Median returns the median of a non-empty slice of decimals. The input is
// copied and sorted; the caller's slice is left untouched.
func Median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].GreaterThan(sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// One is the decimal constant 1, exported for callers composing formulas
// (e.g. 1 - p) without importing shopspring/decimal directly.
func One() decimal.Decimal { return one }

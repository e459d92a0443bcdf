// Package oddsmath is the shared pure decimal library (component C8):
// American-odds <-> probability conversion, expected value, consensus
// aggregation, and Kelly sizing. Every strategy in internal/core/strategy
// builds its signals on top of these functions rather than rolling its
// own float arithmetic.
package oddsmath

import (
	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/money"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Canonicalize maps the degenerate +100 American price onto its -100
// twin. Both represent exactly 50% implied probability; picking one
// representative is what makes the American<->probability conversion a
// true round-trip identity (spec.md §8).
func Canonicalize(odds int) int {
	if odds == 100 {
		return -100
	}
	return odds
}

// AmericanToProb converts American odds to an implied probability.
// odds == 0 is not a valid American price.
func AmericanToProb(odds int) (money.Prob, error) {
	if odds == 0 {
		return decimal.Zero, errs.New(errs.InvariantViolation, "american odds cannot be zero")
	}
	if odds < 0 {
		neg := decimal.NewFromInt(int64(-odds))
		return neg.Div(neg.Add(hundred)), nil
	}
	pos := decimal.NewFromInt(int64(odds))
	return hundred.Div(pos.Add(hundred)), nil
}

// ProbToAmerican converts a probability back to a canonical American price:
// favorites (p >= 0.5) are represented as negative odds, underdogs
// (p < 0.5) as positive odds. The boundary p == 0.5 canonicalizes to -100.
func ProbToAmerican(p money.Prob) int {
	if p.LessThanOrEqual(decimal.Zero) {
		return 10000
	}
	if p.GreaterThanOrEqual(one) {
		return -10000
	}
	if p.GreaterThanOrEqual(decimal.NewFromFloat(0.5)) {
		odds := p.Neg().Mul(hundred).Div(one.Sub(p))
		return int(odds.Round(0).IntPart())
	}
	odds := one.Sub(p).Mul(hundred).Div(p)
	return int(odds.Round(0).IntPart())
}

// EVPercent is the expected-value percentage of buying at costCents when
// the true probability is truthProb: ((truth - cost) / cost) * 100. Cost
// is floored at money.MinPriceGuard so a 0¢ quote never divides by zero.
func EVPercent(truthProb money.Prob, costCents money.Cents) decimal.Decimal {
	return money.EVPercent(truthProb, costCents)
}

// Consensus returns the median of a set of per-vendor probabilities for
// the same side of the same market (spec.md §4.5.1 step 2).
func Consensus(probs []money.Prob) money.Prob {
	return money.Median(probs)
}

// KellyFraction computes the Kelly criterion stake fraction for a binary
// contract bought at costCents with true win probability p:
//
//	b = (100 / cost) - 1   (net decimal odds per contract)
//	f* = (p*b - (1-p)) / b
//
// Negative results clamp to zero — Kelly never recommends shorting the
// side you were asked to size for.
func KellyFraction(p money.Prob, costCents money.Cents) decimal.Decimal {
	cost := costCents
	if cost.LessThan(money.MinPriceGuard) {
		cost = money.MinPriceGuard
	}
	b := hundred.Div(cost).Sub(one)
	if b.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	q := one.Sub(p)
	f := p.Mul(b).Sub(q).Div(b)
	if f.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return f
}

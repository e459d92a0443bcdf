package oddsmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
)

func TestAmericanToProbKnownValues(t *testing.T) {
	cases := []struct {
		odds int
		want float64
	}{
		{-150, 0.60},
		{-140, 0.5833},
		{-160, 0.6154},
		{100, 0.50},
		{-100, 0.50},
	}
	for _, c := range cases {
		p, err := AmericanToProb(c.odds)
		require.NoError(t, err)
		got, _ := p.Round(4).Float64()
		assert.InDelta(t, c.want, got, 0.001, "odds=%d", c.odds)
	}
}

func TestAmericanToProbZeroIsInvariantViolation(t *testing.T) {
	_, err := AmericanToProb(0)
	assert.Error(t, err)
}

func TestRoundTripCanonical(t *testing.T) {
	for _, odds := range []int{-10000, -500, -150, -101, -100, 101, 150, 500, 10000} {
		canon := Canonicalize(odds)
		p, err := AmericanToProb(canon)
		require.NoError(t, err)
		back := ProbToAmerican(p)
		assert.Equal(t, canon, back, "odds=%d canon=%d", odds, canon)
	}
}

func TestRoundTripCollapsesDegenerateBoundary(t *testing.T) {
	// +100 and -100 both imply 50% and canonicalize to the same value.
	assert.Equal(t, Canonicalize(100), Canonicalize(-100))
}

func TestConsensusMedianScenarioS1(t *testing.T) {
	probs := []money.Prob{
		decimal.NewFromFloat(0.60),
		decimal.NewFromFloat(0.5833),
		decimal.NewFromFloat(0.6154),
	}
	got := Consensus(probs)
	gotF, _ := got.Round(2).Float64()
	assert.InDelta(t, 0.60, gotF, 0.001)
}

func TestEVPercentScenarioS1(t *testing.T) {
	truth := decimal.NewFromFloat(0.60)
	entry := money.NewCents(44)
	ev := EVPercent(truth, entry)
	evF, _ := ev.Round(1).Float64()
	assert.InDelta(t, 36.4, evF, 0.5)
}

func TestKellyFractionNeverNegative(t *testing.T) {
	p := decimal.NewFromFloat(0.1)
	cost := money.NewCents(90) // bad bet: cost way above true probability
	f := KellyFraction(p, cost)
	assert.True(t, f.GreaterThanOrEqual(decimal.Zero))
}

func TestKellyFractionPositiveEdge(t *testing.T) {
	p := decimal.NewFromFloat(0.60)
	cost := money.NewCents(44)
	f := KellyFraction(p, cost)
	assert.True(t, f.GreaterThan(decimal.Zero))
	assert.True(t, f.LessThanOrEqual(decimal.NewFromInt(1)))
}

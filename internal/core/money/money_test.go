package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMid(t *testing.T) {
	got := Mid(NewCents(42), NewCents(44))
	assert.True(t, got.Equal(NewCents(43)), "got %s", got)
}

func TestMidOddRoundsHalfToEven(t *testing.T) {
	// (41+44)/2 = 42.5 -> rounds to 42 (nearest even)
	got := Mid(NewCents(41), NewCents(44))
	assert.True(t, got.Equal(NewCents(42)), "got %s", got)
}

func TestToFromProbRoundTrip(t *testing.T) {
	c := NewCents(44)
	p := ToProb(c)
	assert.True(t, p.Equal(decimal.NewFromFloat(0.44)))
	back := FromProb(p)
	assert.True(t, back.Equal(c))
}

func TestEVPercentGuardsZeroCost(t *testing.T) {
	truth := decimal.NewFromFloat(0.5)
	ev := EVPercent(truth, NewCents(0))
	// cost floored to 1 cent -> (0.5 - 0.01)/0.01 * 100 = 4900
	assert.True(t, ev.Equal(decimal.NewFromInt(4900)), "got %s", ev)
}

func TestMedianOddEven(t *testing.T) {
	vals := []decimal.Decimal{
		decimal.NewFromFloat(0.60),
		decimal.NewFromFloat(0.5833),
		decimal.NewFromFloat(0.6154),
	}
	got := Median(vals)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.60)), "got %s", got)

	evenVals := append(vals, decimal.NewFromFloat(0.70))
	gotEven := Median(evenVals)
	assert.False(t, gotEven.IsZero())
}

func TestClamp(t *testing.T) {
	assert.True(t, Clamp(NewCents(-5), NewCents(0), NewCents(100)).Equal(NewCents(0)))
	assert.True(t, Clamp(NewCents(150), NewCents(0), NewCents(100)).Equal(NewCents(100)))
	assert.True(t, Clamp(NewCents(50), NewCents(0), NewCents(100)).Equal(NewCents(50)))
}

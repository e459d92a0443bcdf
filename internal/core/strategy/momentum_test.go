package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
)

const momentumTicker = "KXNBAGAME-24DEC25BOSMIA-Y"

// S2: lookback=120s, min_change=5c. History holds (t-118s, 40c); current
// mid=46c, spread=2 (<=3). Delta=+6 >= 5 -> Yes 10 M.
func TestMomentumEmitsOnPriceMove(t *testing.T) {
	s := NewMomentum("m1", DefaultMomentumConfig())
	now := time.Now()
	s.appendHistory(momentumTicker, now.Add(-118*time.Second), money.NewCents(40))

	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			momentumTicker: {
				Ticker: momentumTicker,
				YesBid: money.NewCents(45), YesBidSet: true,
				YesAsk: money.NewCents(47), YesAskSet: true,
			},
		},
	}

	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, SideYes, signals[0].Side)
	assert.Equal(t, 10, signals[0].Quantity)
}

func TestMomentumSkipsWideSpread(t *testing.T) {
	s := NewMomentum("m1", DefaultMomentumConfig())
	now := time.Now()
	s.appendHistory(momentumTicker, now.Add(-118*time.Second), money.NewCents(40))

	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			momentumTicker: {
				Ticker: momentumTicker,
				YesBid: money.NewCents(40), YesBidSet: true,
				YesAsk: money.NewCents(48), YesAskSet: true, // spread 8 > max 3
			},
		},
	}

	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMomentumSkipsStaleHistory(t *testing.T) {
	s := NewMomentum("m1", DefaultMomentumConfig())
	now := time.Now()
	// Only observation is far outside the 120s +/- 60s tolerance window.
	s.appendHistory(momentumTicker, now.Add(-400*time.Second), money.NewCents(40))

	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			momentumTicker: {
				Ticker: momentumTicker,
				YesBid: money.NewCents(45), YesBidSet: true,
				YesAsk: money.NewCents(47), YesAskSet: true,
			},
		},
	}

	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

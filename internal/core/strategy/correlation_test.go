package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
)

// S6: home Yes=55, away Yes=52, sum=107 > complementary_max_sum=105;
// prefer_no_on_overvalued=true -> No on home (the higher Yes price), qty 10.
func TestCorrelationEmitsOnComplementaryOvervalue(t *testing.T) {
	gs := gamestate.GameState{
		GameID:   "g1",
		HomeAbbr: "BOS",
		AwayAbbr: "MIA",
		Markets: map[string]*gamestate.MarketView{
			"KXNBAGAME-24DEC25BOSMIA-Y": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-Y",
				YesAsk: money.NewCents(55), YesAskSet: true,
			},
			"KXNBAGAME-24DEC25BOSMIA-N": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-N",
				YesAsk: money.NewCents(52), YesAskSet: true,
			},
		},
	}

	cfg := DefaultCorrelationConfig()
	cfg.CheckMoneylineSpread = false
	s := NewCorrelation("c1", cfg)

	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, SideNo, signals[0].Side)
	assert.Equal(t, "KXNBAGAME-24DEC25BOSMIA-Y", signals[0].MarketTicker)
	assert.Equal(t, 10, signals[0].Quantity)
}

func TestCorrelationSkipsUnderComplementarySum(t *testing.T) {
	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			"KXNBAGAME-24DEC25BOSMIA-Y": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-Y",
				YesAsk: money.NewCents(50), YesAskSet: true,
			},
			"KXNBAGAME-24DEC25BOSMIA-N": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-N",
				YesAsk: money.NewCents(48), YesAskSet: true,
			},
		},
	}
	cfg := DefaultCorrelationConfig()
	cfg.CheckMoneylineSpread = false
	s := NewCorrelation("c1", cfg)

	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

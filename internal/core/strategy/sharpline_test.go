package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
)

// S1: yes_bid=42, yes_ask=44 (mid=43, p_exch=0.43); vendor odds
// {-150,-140,-160} -> probs {0.6,0.5833,0.6154}, consensus (median) 0.6;
// divergence 17% >= 5% threshold -> Yes at entry=44, ev~36.4% >= 2%,
// qty 10.
func TestSharpLineEmitsOnDivergence(t *testing.T) {
	gs := gamestate.GameState{
		GameID:   "g1",
		HomeAbbr: "BOS",
		AwayAbbr: "MIA",
		Markets: map[string]*gamestate.MarketView{
			"KXNBAGAME-24DEC25BOSMIA-Y": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-Y",
				YesBid: money.NewCents(42), YesBidSet: true,
				YesAsk: money.NewCents(44), YesAskSet: true,
			},
		},
		Books: map[string]gamestate.BookQuote{
			"a": {Book: "a", MoneylineHomeOdds: -150},
			"b": {Book: "b", MoneylineHomeOdds: -140},
			"c": {Book: "c", MoneylineHomeOdds: -160},
		},
	}

	s := NewSharpLine("s1", DefaultSharpLineConfig())
	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, SideYes, sig.Side)
	assert.Equal(t, 10, sig.Quantity)
	assert.Equal(t, KindSharpLine, sig.StrategyKind)
}

func TestSharpLineSkipsBelowSampleThreshold(t *testing.T) {
	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			"KXNBAGAME-24DEC25BOSMIA-Y": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-Y",
				YesBid: money.NewCents(42), YesBidSet: true,
				YesAsk: money.NewCents(44), YesAskSet: true,
			},
		},
		Books: map[string]gamestate.BookQuote{
			"a": {Book: "a", MoneylineHomeOdds: -150},
		},
	}
	s := NewSharpLine("s1", DefaultSharpLineConfig())
	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSharpLineRespectsCooldown(t *testing.T) {
	gs := gamestate.GameState{
		GameID: "g1",
		Markets: map[string]*gamestate.MarketView{
			"KXNBAGAME-24DEC25BOSMIA-Y": {
				Ticker: "KXNBAGAME-24DEC25BOSMIA-Y",
				YesBid: money.NewCents(42), YesBidSet: true,
				YesAsk: money.NewCents(44), YesAskSet: true,
			},
		},
		Books: map[string]gamestate.BookQuote{
			"a": {Book: "a", MoneylineHomeOdds: -150},
			"b": {Book: "b", MoneylineHomeOdds: -140},
			"c": {Book: "c", MoneylineHomeOdds: -160},
		},
	}
	s := NewSharpLine("s1", DefaultSharpLineConfig())

	first, err := s.Evaluate(gs)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, second)
}

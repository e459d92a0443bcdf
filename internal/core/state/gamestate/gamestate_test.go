package gamestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/events"
)

func TestApplyOrderbookCreatesMarketView(t *testing.T) {
	g := New("g1", "BOS", "LAL")
	affected := g.ApplyOrderbook(events.OrderbookUpdateEvent{
		Ticker: "KXNBAGAME-25NOV04LALBOS-Y",
		YesBid: money.NewCents(44),
		YesAsk: money.NewCents(46),
	})
	assert.Equal(t, []string{"KXNBAGAME-25NOV04LALBOS-Y"}, affected)

	mv := g.Markets["KXNBAGAME-25NOV04LALBOS-Y"]
	require.NotNil(t, mv)
	assert.True(t, mv.ImpliedProb().Equal(money.ToProb(money.NewCents(45))))
}

func TestApplyNbaUpdatesScoreAndReturnsAllTickers(t *testing.T) {
	g := New("g1", "BOS", "LAL")
	g.Markets["t1"] = &MarketView{Ticker: "t1"}
	affected := g.ApplyNba(events.NbaUpdateEvent{HomeScore: 10, AwayScore: 8, Period: 1, Clock: "7:42"})
	assert.Equal(t, 10, g.HomeScore)
	assert.Equal(t, 8, g.AwayScore)
	assert.Contains(t, affected, "t1")
}

func TestSetPhaseReportsChange(t *testing.T) {
	g := New("g1", "BOS", "LAL")
	old, changed := g.SetPhase(PhaseInProgress)
	assert.Equal(t, PhasePregame, old)
	assert.True(t, changed)

	_, changedAgain := g.SetPhase(PhaseInProgress)
	assert.False(t, changedAgain)
}

func TestConsensusHomeProbMedianOfBooks(t *testing.T) {
	g := New("g1", "BOS", "LAL")
	g.ApplyOdds(events.OddsUpdateEvent{Book: "draftkings", MoneylineHomeOdd: -150})
	g.ApplyOdds(events.OddsUpdateEvent{Book: "fanduel", MoneylineHomeOdd: -140})
	g.ApplyOdds(events.OddsUpdateEvent{Book: "betmgm", MoneylineHomeOdd: -160})

	p, err := g.ConsensusHomeProb()
	require.NoError(t, err)
	f, _ := p.Round(2).Float64()
	assert.InDelta(t, 0.60, f, 0.01)
}

func TestConsensusHomeProbErrorsWithNoBooks(t *testing.T) {
	g := New("g1", "BOS", "LAL")
	_, err := g.ConsensusHomeProb()
	assert.Error(t, err)
}

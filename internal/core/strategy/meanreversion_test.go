package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
)

const meanReversionTicker = "KXNBAGAME-24DEC25BOSMIA-Y"

func pregameGame(phase string) gamestate.GameState {
	return gamestate.GameState{
		GameID:   "g1",
		HomeAbbr: "BOS",
		AwayAbbr: "MIA",
		Phase:    phase,
		Markets: map[string]*gamestate.MarketView{
			meanReversionTicker: {
				Ticker: meanReversionTicker,
				YesBid: money.NewCents(60), YesBidSet: true,
				YesAsk: money.NewCents(60), YesAskSet: true,
			},
		},
	}
}

// S5: pregame anchor captured at 60c on the Live transition; current
// mid 43c -> swing -17c, within [15,40]; period 2 (first half), score
// deficit 8 (<=20) -> Yes 10 M.
func TestMeanReversionEmitsOnSwing(t *testing.T) {
	s := NewMeanReversion("mr1", DefaultMeanReversionConfig())

	pregame := pregameGame(gamestate.PhaseInProgress)
	_, err := s.Evaluate(pregame)
	require.NoError(t, err)

	live := pregameGame(gamestate.PhaseInProgress)
	live.Period = 2
	live.Clock = "6:00"
	live.HomeScore = 50
	live.AwayScore = 42
	live.Markets[meanReversionTicker].YesBid = money.NewCents(43)
	live.Markets[meanReversionTicker].YesAsk = money.NewCents(43)

	signals, err := s.Evaluate(live)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, SideYes, signals[0].Side)
	assert.Equal(t, 10, signals[0].Quantity)
}

func TestMeanReversionSkipsOutsideLivePhase(t *testing.T) {
	s := NewMeanReversion("mr1", DefaultMeanReversionConfig())
	gs := pregameGame(gamestate.PhasePregame)
	signals, err := s.Evaluate(gs)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMeanReversionSkipsSecondHalfWhenOnlyFirstHalf(t *testing.T) {
	s := NewMeanReversion("mr1", DefaultMeanReversionConfig())

	pregame := pregameGame(gamestate.PhaseInProgress)
	_, err := s.Evaluate(pregame)
	require.NoError(t, err)

	live := pregameGame(gamestate.PhaseInProgress)
	live.Period = 3
	live.Clock = "6:00"
	live.Markets[meanReversionTicker].YesBid = money.NewCents(43)
	live.Markets[meanReversionTicker].YesAsk = money.NewCents(43)

	signals, err := s.Evaluate(live)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMeanReversionSkipsExcessiveScoreDeficit(t *testing.T) {
	s := NewMeanReversion("mr1", DefaultMeanReversionConfig())

	pregame := pregameGame(gamestate.PhaseInProgress)
	_, err := s.Evaluate(pregame)
	require.NoError(t, err)

	live := pregameGame(gamestate.PhaseInProgress)
	live.Period = 2
	live.Clock = "6:00"
	live.HomeScore = 80
	live.AwayScore = 50 // deficit 30 > max 20
	live.Markets[meanReversionTicker].YesBid = money.NewCents(43)
	live.Markets[meanReversionTicker].YesAsk = money.NewCents(43)

	signals, err := s.Evaluate(live)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

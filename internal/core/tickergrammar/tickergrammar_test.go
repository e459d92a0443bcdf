package tickergrammar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/core/errs"
)

func TestParseEventTicker(t *testing.T) {
	et, err := ParseEventTicker("KXNBAGAME-25NOV04LALBOS")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.November, 4, 0, 0, 0, 0, time.UTC), et.Date)
	assert.Equal(t, "LAL", et.AwayAbbr)
	assert.Equal(t, "BOS", et.HomeAbbr)
}

func TestParseEventTickerCaseInsensitive(t *testing.T) {
	et, err := ParseEventTicker("kxnbagame-25nov04lalbos")
	require.NoError(t, err)
	assert.Equal(t, "BOS", et.HomeAbbr)
}

func TestParseEventTickerMissingPrefix(t *testing.T) {
	_, err := ParseEventTicker("NOTAGAME-25NOV04LALBOS")
	assert.Error(t, err)
}

func TestParseEventTickerBadMonth(t *testing.T) {
	_, err := ParseEventTicker("KXNBAGAME-25XXX04LALBOS")
	assert.Error(t, err)
}

func TestParseMarketTickerMoneylineHome(t *testing.T) {
	mt, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-Y")
	require.NoError(t, err)
	assert.Equal(t, MoneylineHome, mt.Kind)
	assert.Equal(t, "yes", mt.Side)
	assert.True(t, mt.HasSide)
	assert.Equal(t, "BOS", mt.Event.HomeAbbr)
}

func TestParseMarketTickerMoneylineAway(t *testing.T) {
	mt, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-N")
	require.NoError(t, err)
	assert.Equal(t, MoneylineAway, mt.Kind)
}

func TestParseMarketTickerSpread(t *testing.T) {
	mt, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-SPREAD-LAL-5.5")
	require.NoError(t, err)
	assert.Equal(t, Spread, mt.Kind)
	assert.Equal(t, "LAL", mt.Favored)
	assert.InDelta(t, -5.5, mt.Strike, 0.001)
}

func TestParseMarketTickerTotalOver(t *testing.T) {
	mt, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-TOTAL-O224.5")
	require.NoError(t, err)
	assert.Equal(t, Total, mt.Kind)
	assert.Equal(t, "O", mt.OverUnder)
	assert.InDelta(t, 224.5, mt.Strike, 0.001)
}

func TestParseMarketTickerTotalUnder(t *testing.T) {
	mt, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-TOTAL-U210")
	require.NoError(t, err)
	assert.Equal(t, "U", mt.OverUnder)
	assert.InDelta(t, 210, mt.Strike, 0.001)
}

func TestParseMarketTickerUnrecognizedSuffix(t *testing.T) {
	_, err := ParseMarketTicker("KXNBAGAME-25NOV04LALBOS-BOGUS")
	assert.Error(t, err)
}

func TestExtractMatchKey(t *testing.T) {
	key, err := ExtractMatchKey("KXNBAGAME-25NOV04LALBOS")
	require.NoError(t, err)
	assert.Equal(t, "LAL", key.AwayAbbr)
	assert.Equal(t, "BOS", key.HomeAbbr)
}

func TestMatchUniqueCandidate(t *testing.T) {
	key, err := ExtractMatchKey("KXNBAGAME-25NOV04LALBOS")
	require.NoError(t, err)
	candidates := []MatchCandidate{
		{NBAGameID: "g1", HomeAbbr: "bos", AwayAbbr: "lal"},
		{NBAGameID: "g2", HomeAbbr: "NYK", AwayAbbr: "MIA"},
	}
	got, err := Match(key, candidates)
	require.NoError(t, err)
	assert.Equal(t, "g1", got.NBAGameID)
}

func TestMatchNoCandidatesFailsClosed(t *testing.T) {
	key, err := ExtractMatchKey("KXNBAGAME-25NOV04LALBOS")
	require.NoError(t, err)
	_, err = Match(key, []MatchCandidate{{NBAGameID: "g2", HomeAbbr: "NYK", AwayAbbr: "MIA"}})
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestMatchAmbiguousCandidatesFailsClosed(t *testing.T) {
	key, err := ExtractMatchKey("KXNBAGAME-25NOV04LALBOS")
	require.NoError(t, err)
	dupes := []MatchCandidate{
		{NBAGameID: "g1", HomeAbbr: "BOS", AwayAbbr: "LAL"},
		{NBAGameID: "g2", HomeAbbr: "BOS", AwayAbbr: "LAL"},
	}
	_, err = Match(key, dupes)
	assert.ErrorIs(t, err, errs.NotFound)
}

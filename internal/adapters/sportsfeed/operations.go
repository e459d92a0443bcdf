package sportsfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GameSummary is one scheduled NBA game, used to resolve a Kalshi event
// ticker (via tickergrammar.ExtractMatchKey) to an NBA game id.
type GameSummary struct {
	NBAGameID      string    `json:"nba_game_id"`
	HomeAbbr       string    `json:"home_abbr"`
	AwayAbbr       string    `json:"away_abbr"`
	ScheduledStart time.Time `json:"scheduled_start"`
}

// GamesForDate lists every scheduled NBA game on the given date (UTC).
func (c *Client) GamesForDate(ctx context.Context, date time.Time) ([]GameSummary, error) {
	path := fmt.Sprintf("/v1/games?date=%s", date.Format("2006-01-02"))
	var out struct {
		Games []GameSummary `json:"games"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// BoxScore is one live-scoreboard poll result for a single game.
type BoxScore struct {
	NBAGameID string `json:"nba_game_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Period    int    `json:"period"`
	Clock     string `json:"clock"`
	Phase     string `json:"phase"` // "pregame", "in_progress", "final"
}

// LiveBoxScore fetches the current scoreboard state for one game.
func (c *Client) LiveBoxScore(ctx context.Context, nbaGameID string) (BoxScore, error) {
	path := fmt.Sprintf("/v1/games/%s/boxscore", nbaGameID)
	var bs BoxScore
	if err := c.getJSON(ctx, path, &bs); err != nil {
		return BoxScore{}, err
	}
	return bs, nil
}

// OddsQuote is one sportsbook's current line for a game. SpreadValue/
// TotalValue are decimal, not the wire's float64 — Odds converts them
// immediately on decode, the one documented float64->decimal boundary
// for this feed (spec.md §4.3: nothing past the adapter touches float64
// for a price or line value again).
type OddsQuote struct {
	NBAGameID         string
	Book              string
	MoneylineHomeOdds int
	MoneylineAwayOdds int
	SpreadFavored     string
	SpreadValue       decimal.Decimal
	TotalValue        decimal.Decimal
}

// oddsQuoteWire is the raw JSON shape the sports feed actually sends.
type oddsQuoteWire struct {
	NBAGameID         string  `json:"nba_game_id"`
	Book              string  `json:"book"`
	MoneylineHomeOdds int     `json:"moneyline_home_odds"`
	MoneylineAwayOdds int     `json:"moneyline_away_odds"`
	SpreadFavored     string  `json:"spread_favored"`
	SpreadValue       float64 `json:"spread_value"`
	TotalValue        float64 `json:"total_value"`
}

// Odds fetches every tracked sportsbook's current line for one game.
func (c *Client) Odds(ctx context.Context, nbaGameID string) ([]OddsQuote, error) {
	path := fmt.Sprintf("/v1/games/%s/odds", nbaGameID)
	var out struct {
		Quotes []oddsQuoteWire `json:"quotes"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	quotes := make([]OddsQuote, len(out.Quotes))
	for i, q := range out.Quotes {
		quotes[i] = OddsQuote{
			NBAGameID:         q.NBAGameID,
			Book:              q.Book,
			MoneylineHomeOdds: q.MoneylineHomeOdds,
			MoneylineAwayOdds: q.MoneylineAwayOdds,
			SpreadFavored:     q.SpreadFavored,
			SpreadValue:       decimal.NewFromFloat(q.SpreadValue),
			TotalValue:        decimal.NewFromFloat(q.TotalValue),
		}
	}
	return quotes, nil
}

package events

import (
	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/money"
)

// OrderbookUpdateEvent is published by the exchange adapter (C1) on every
// reconciled snapshot or sequenced delta for a market.
type OrderbookUpdateEvent struct {
	Ticker   string      `json:"ticker"`
	Sequence int64       `json:"sequence"`
	YesBid   money.Cents `json:"yes_bid"`
	YesAsk   money.Cents `json:"yes_ask"`
	NoBid    money.Cents `json:"no_bid"`
	NoAsk    money.Cents `json:"no_ask"`
	// *Set flags distinguish a genuinely absent level from a level resting
	// at 0¢ (spec.md §8: "orderbook with only one side defined" is a
	// boundary case, not an error).
	YesBidSet bool `json:"yes_bid_set"`
	YesAskSet bool `json:"yes_ask_set"`
	NoBidSet  bool `json:"no_bid_set"`
	NoAskSet  bool `json:"no_ask_set"`
	Snapshot  bool `json:"snapshot"` // true for a full snapshot, false for a delta
	Stale     bool `json:"stale"`    // true while the adapter is disconnected/resyncing
}

// NbaUpdateEvent is published by the aggregator (C4) whenever a live
// scoreboard poll changes a game's score/period/clock.
type NbaUpdateEvent struct {
	NBAGameID string `json:"nba_game_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Period    int    `json:"period"`
	Clock     string `json:"clock"` // e.g. "7:42"
	Phase     string `json:"phase"` // "pregame", "in_progress", "final"
}

// OddsUpdateEvent is published by the aggregator (C4) whenever a
// sportsbook-odds poll changes the consensus view for a game.
type OddsUpdateEvent struct {
	NBAGameID        string          `json:"nba_game_id"`
	Book             string          `json:"book"`
	MoneylineHomeOdd int             `json:"moneyline_home_odds"`
	MoneylineAwayOdd int             `json:"moneyline_away_odds"`
	SpreadFavored    string          `json:"spread_favored"`
	SpreadValue      decimal.Decimal `json:"spread_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
}

// StateChangeEvent is published by the aggregator (C4) when a game crosses
// a phase boundary (pregame -> in_progress -> final).
type StateChangeEvent struct {
	NBAGameID string `json:"nba_game_id"`
	OldPhase  string `json:"old_phase"`
	NewPhase  string `json:"new_phase"`
}

// TransportStatusEvent accompanies EventDisconnect/EventReconnect and
// names the adapter and, for reconnects, the attempt count that finally
// succeeded.
type TransportStatusEvent struct {
	Adapter string `json:"adapter"` // "exchange_stream", "sportsfeed"
	Attempt int    `json:"attempt,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

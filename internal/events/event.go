package events

import "time"

// Event is the envelope that flows through the event bus. Every domain
// event (orderbook tick, scoreboard update, odds refresh, lifecycle
// transition, transport status) is wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	GameID    string // internal aggregator game id, empty for transport-wide events
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// EventOrderbookUpdate is published on every reconciled Kalshi orderbook
	// snapshot or delta (component C1).
	EventOrderbookUpdate EventType = "orderbook_update"
	// EventNbaUpdate is published on every live-scoreboard poll that changes
	// game state (component C2/C3).
	EventNbaUpdate EventType = "nba_update"
	// EventOddsUpdate is published on every sportsbook-odds poll that
	// changes the consensus view (component C2/C3).
	EventOddsUpdate EventType = "odds_update"
	// EventStateChange is published by the aggregator (C4) when a game
	// crosses a phase boundary (pregame -> in_progress -> final).
	EventStateChange EventType = "state_change"
	// EventDisconnect marks an adapter losing its upstream connection.
	EventDisconnect EventType = "disconnect"
	// EventReconnect marks an adapter regaining its upstream connection
	// after a backoff retry.
	EventReconnect EventType = "reconnect"
)

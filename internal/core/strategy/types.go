// Package strategy is component C5: a registry of strategy kinds, each
// holding live per-market cooldown/history state, evaluated at a fixed
// cadence over every loaded game's fused GameState (component C3) to
// emit TradeSignals for the risk gate (C6) and execution engine (C7).
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/state/gamestate"
)

// Side mirrors the two tradable sides of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// TradeSignal is the emitted value every strategy produces (spec.md §3).
type TradeSignal struct {
	StrategyID   string
	StrategyKind string
	GameID       string
	MarketTicker string
	Side         Side
	Quantity     int
	Confidence   decimal.Decimal // [0, 1]
	Reason       string
	Metadata     map[string]any
	EmittedAt    time.Time
}

// Strategy is the capability interface every kind implements (spec.md
// §9: "tagged variant over a fixed set of kinds plus a capability
// interface" replaces the source's dynamic class-based registry).
type Strategy interface {
	ID() string
	Kind() string
	Enabled() bool
	SetEnabled(bool)
	Evaluate(gs gamestate.GameState) ([]TradeSignal, error)
	RecentSignals() []TradeSignal
}

// DefaultConfigFor returns the documented zero-config defaults for a
// strategy kind (spec.md §4.5, "a pure get_default_config hook" every
// strategy shares).
func DefaultConfigFor(kind string) any {
	switch kind {
	case KindSharpLine:
		return DefaultSharpLineConfig()
	case KindMomentum:
		return DefaultMomentumConfig()
	case KindEvMultiBook:
		return DefaultEvMultiBookConfig()
	case KindMeanReversion:
		return DefaultMeanReversionConfig()
	case KindCorrelation:
		return DefaultCorrelationConfig()
	default:
		return nil
	}
}

const (
	KindSharpLine     = "sharpline"
	KindMomentum      = "momentum"
	KindEvMultiBook   = "evmultibook"
	KindMeanReversion = "meanreversion"
	KindCorrelation   = "correlation"
)

package strategy

import (
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/core/tickergrammar"
)

const recentSignalCap = 100

// base is the shared helper every strategy kind embeds: identity,
// enabled flag, per-market cooldown, and a bounded recent-signal ring
// (spec.md §4.5's "all strategies share" clause). Cooldowns are enforced
// here rather than by the engine so each strategy stays deterministic
// relative to its own emission history (spec.md §4.5).
type base struct {
	id   string
	kind string

	mu        sync.Mutex
	enabled   bool
	cooldowns map[string]time.Time // market ticker -> earliest next allowed signal time
	recent    []TradeSignal
}

func newBase(id, kind string) *base {
	return &base{
		id:        id,
		kind:      kind,
		enabled:   true,
		cooldowns: make(map[string]time.Time),
	}
}

func (b *base) ID() string   { return b.id }
func (b *base) Kind() string { return b.kind }

func (b *base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

func (b *base) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// onCooldown reports whether ticker is still suppressed as of now.
func (b *base) onCooldown(ticker string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.cooldowns[ticker]
	return ok && now.Before(until)
}

// emit records that a signal for ticker was just emitted at now, setting
// its cooldown to now + cooldown, and appends the signal to the bounded
// recent-signal ring.
func (b *base) emit(sig TradeSignal, ticker string, cooldown time.Duration, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldowns[ticker] = now.Add(cooldown)
	b.recent = append(b.recent, sig)
	if len(b.recent) > recentSignalCap {
		b.recent = b.recent[len(b.recent)-recentSignalCap:]
	}
}

func (b *base) RecentSignals() []TradeSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TradeSignal, len(b.recent))
	copy(out, b.recent)
	return out
}

// matchesMarketType reports whether a parsed market kind is named by one
// of the strategy's configured market_types strings ("moneyline",
// "spread", "total").
func matchesMarketType(kind tickergrammar.MarketKind, types []string) bool {
	for _, t := range types {
		switch t {
		case "moneyline":
			if kind == tickergrammar.MoneylineHome || kind == tickergrammar.MoneylineAway {
				return true
			}
		case "spread":
			if kind == tickergrammar.Spread {
				return true
			}
		case "total":
			if kind == tickergrammar.Total {
				return true
			}
		}
	}
	return false
}

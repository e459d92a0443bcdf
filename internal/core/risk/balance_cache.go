package risk

import (
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/core/money"
)

// BalanceCache wraps a Gate's cumulative realized P&L with a TTL-based
// cache, adapted from the teacher's kalshi_http.BalanceCache (which
// polled a live broker balance endpoint). Execution here is entirely
// simulated, so there is no external balance to poll: the "refresh"
// instead recomputes startingBankroll + Gate.RealizedPnL() from the
// in-process ledger. The TTL still matters because SharpLine's Kelly
// sizing (spec.md §4.5.1) calls Get on every evaluation tick and
// shouldn't re-lock the account on each one.
type BalanceCache struct {
	gate             *Gate
	startingBankroll money.Cents
	ttl              time.Duration

	mu        sync.RWMutex
	cached    money.Cents
	fetchedAt time.Time
}

// NewBalanceCache returns a cache seeded with startingBankroll, good for ttl.
func NewBalanceCache(gate *Gate, startingBankroll money.Cents, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		gate:             gate,
		startingBankroll: startingBankroll,
		ttl:              ttl,
		cached:           startingBankroll,
	}
}

// Get returns the cached bankroll snapshot, refreshing if stale.
func (bc *BalanceCache) Get() money.Cents {
	bc.mu.RLock()
	if time.Since(bc.fetchedAt) < bc.ttl && !bc.fetchedAt.IsZero() {
		val := bc.cached
		bc.mu.RUnlock()
		return val
	}
	bc.mu.RUnlock()
	return bc.refresh()
}

// Invalidate forces the next Get to recompute.
func (bc *BalanceCache) Invalidate() {
	bc.mu.Lock()
	bc.fetchedAt = time.Time{}
	bc.mu.Unlock()
}

func (bc *BalanceCache) refresh() money.Cents {
	bal := bc.startingBankroll.Add(bc.gate.RealizedPnL())
	bc.mu.Lock()
	bc.cached = bal
	bc.fetchedAt = time.Now()
	bc.mu.Unlock()
	return bal
}

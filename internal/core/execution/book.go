package execution

import (
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/core/money"
)

// Book is the position book (spec.md §3/§5): keyed by (strategy_id,
// market_ticker, side), exclusively owned and single-writer, same
// discipline the aggregator applies to GameState.
type Book struct {
	mu        sync.RWMutex
	positions map[key]*Position
}

func NewBook() *Book {
	return &Book{positions: make(map[key]*Position)}
}

func keyFor(strategyID, marketTicker string, side Side) key {
	return key{StrategyID: strategyID, MarketTicker: marketTicker, Side: side}
}

// OpenOrAdd applies a fill to the position book: a fresh key opens a new
// position at fillPrice; an existing open key blends in the new
// contracts at a quantity-weighted average price (spec.md §4.7):
//
//	new_qty = old_qty + qty
//	new_avg = (old_qty*old_avg + qty*fill) / new_qty
func (b *Book) OpenOrAdd(strategyID, marketTicker string, side Side, gameID string, qty int, fillPrice money.Cents, now time.Time) Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := keyFor(strategyID, marketTicker, side)
	pos, ok := b.positions[k]
	if !ok || !pos.IsOpen {
		pos = &Position{
			StrategyID:   strategyID,
			MarketTicker: marketTicker,
			Side:         side,
			GameID:       gameID,
			Quantity:     qty,
			AvgPrice:     fillPrice,
			CurrentPrice: fillPrice,
			RealizedPnL:  money.NewCents(0),
			IsOpen:       true,
			OpenedAt:     now,
		}
		if existing, had := b.positions[k]; had {
			pos.RealizedPnL = existing.RealizedPnL // realized P&L survives a reopen
		}
		b.positions[k] = pos
		return *pos
	}

	oldQty := money.NewCents(int64(pos.Quantity))
	addQty := money.NewCents(int64(qty))
	newQty := pos.Quantity + qty
	newAvg := oldQty.Mul(pos.AvgPrice).Add(addQty.Mul(fillPrice)).DivRound(money.NewCents(int64(newQty)), 6)

	pos.Quantity = newQty
	pos.AvgPrice = newAvg
	return *pos
}

// Restore undoes an OpenOrAdd: if existed is false the key is deleted
// entirely, otherwise the key is set back to prev. Used by the
// execution engine to roll back an in-memory fill when persisting it
// fails (spec.md §7: "the in-memory position is not updated unless
// persistence succeeds").
func (b *Book) Restore(strategyID, marketTicker string, side Side, prev Position, existed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyFor(strategyID, marketTicker, side)
	if !existed {
		delete(b.positions, k)
		return
	}
	p := prev
	b.positions[k] = &p
}

// ClosePosition exits the open position at (strategyID, marketTicker,
// side) at exitPrice: its quantity goes to zero and realized P&L accrues
// (exitPrice - avg) * quantity (spec.md §4.7). exitPrice is required; no
// current-mark fallback is applied, and the position on the other side
// of the same market is left open. Returns the closed position, or false
// when that key has no open position.
func (b *Book) ClosePosition(strategyID, marketTicker string, side Side, exitPrice money.Cents, now time.Time) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := keyFor(strategyID, marketTicker, side)
	pos, ok := b.positions[k]
	if !ok || !pos.IsOpen {
		return Position{}, false
	}

	delta := exitPrice.Sub(pos.AvgPrice).Mul(money.NewCents(int64(pos.Quantity)))
	pos.RealizedPnL = pos.RealizedPnL.Add(delta)
	pos.Quantity = 0
	pos.IsOpen = false
	pos.ClosedAt = now
	return *pos, true
}

// SettlePosition assigns the fixed payout once the market's outcome is
// known: 100c per contract if the position's side matches the outcome,
// 0 otherwise (spec.md §4.7, S4).
func (b *Book) SettlePosition(strategyID, marketTicker string, side Side, outcome Side, now time.Time) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := keyFor(strategyID, marketTicker, side)
	pos, ok := b.positions[k]
	if !ok || !pos.IsOpen {
		return Position{}, false
	}

	payout := money.NewCents(0)
	if side == outcome {
		payout = money.NewCents(100)
	}
	delta := payout.Sub(pos.AvgPrice).Mul(money.NewCents(int64(pos.Quantity)))
	pos.RealizedPnL = pos.RealizedPnL.Add(delta)
	pos.Quantity = 0
	pos.IsOpen = false
	pos.ClosedAt = now
	return *pos, true
}

// MarkToMarket revalues every open position at (strategyID,
// marketTicker, side) against the given best-exit price (spec.md §4.7).
func (b *Book) MarkToMarket(strategyID, marketTicker string, side Side, mark money.Cents) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := keyFor(strategyID, marketTicker, side)
	pos, ok := b.positions[k]
	if !ok || !pos.IsOpen {
		return Position{}, false
	}
	pos.CurrentPrice = mark
	pos.UnrealizedPnL = mark.Sub(pos.AvgPrice).Mul(money.NewCents(int64(pos.Quantity)))
	return *pos, true
}

// Get returns a copy of the position at the given key, if any.
func (b *Book) Get(strategyID, marketTicker string, side Side) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[keyFor(strategyID, marketTicker, side)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// All returns a snapshot copy of every position in the book.
func (b *Book) All() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// --- risk.Positions interface (read-only views for the risk gate) ---

func (b *Book) ContractsInMarket(marketTicker string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, p := range b.positions {
		if p.IsOpen && p.MarketTicker == marketTicker {
			total += p.Quantity
		}
	}
	return total
}

func (b *Book) ContractsInGame(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, p := range b.positions {
		if p.IsOpen && p.GameID == gameID {
			total += p.Quantity
		}
	}
	return total
}

func (b *Book) TotalContracts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, p := range b.positions {
		if p.IsOpen {
			total += p.Quantity
		}
	}
	return total
}

// exposure treats each open contract's worst case as its entry price
// (the most it can lose is what was already paid for it): qty * avg_price.
func exposureOf(p *Position) money.Cents {
	return p.AvgPrice.Mul(money.NewCents(int64(p.Quantity)))
}

func (b *Book) ExposureInGame(gameID string) money.Cents {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := money.NewCents(0)
	for _, p := range b.positions {
		if p.IsOpen && p.GameID == gameID {
			total = total.Add(exposureOf(p))
		}
	}
	return total
}

func (b *Book) ExposureInStrategy(strategyID string) money.Cents {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := money.NewCents(0)
	for _, p := range b.positions {
		if p.IsOpen && p.StrategyID == strategyID {
			total = total.Add(exposureOf(p))
		}
	}
	return total
}

func (b *Book) TotalExposure() money.Cents {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := money.NewCents(0)
	for _, p := range b.positions {
		if p.IsOpen {
			total = total.Add(exposureOf(p))
		}
	}
	return total
}

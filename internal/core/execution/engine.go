package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/risk"
	"github.com/nbapaper/engine/internal/core/strategy"
	"github.com/nbapaper/engine/internal/telemetry"
)

// MarketQuote is the minimal orderbook view PlaceSignal needs to
// determine a fill price (spec.md §4.7 step 2/3).
type MarketQuote struct {
	YesBid, YesAsk, NoBid, NoAsk                   money.Cents
	YesBidSet, YesAskSet, NoBidSet, NoAskSet       bool
}

// MarketSource fetches the current orderbook view for a market. The
// Aggregator's GameState cache (C3/C4) satisfies this.
type MarketSource interface {
	Quote(gameID, marketTicker string) (MarketQuote, bool)
}

// Persister durably records orders and positions (spec.md §4.7 step 7:
// "write order then upsert position... recoverable by replay"). The
// storage package satisfies this.
type Persister interface {
	SaveOrder(ctx context.Context, o SimulatedOrder) error
	UpsertPosition(ctx context.Context, p Position) error
}

// FillCallback and PositionCallback are the per-fill / per-position-
// update hooks of spec.md §4.7 ("callback failures are logged, never
// rolled back").
type FillCallback func(SimulatedOrder)
type PositionCallback func(Position)

// HaltCallback fires once when the engine halts after a post-fill
// persistence failure (spec.md §7).
type HaltCallback func(orderID, reason string)

// Engine is component C7: it converts approved TradeSignals into
// simulated fills and exposes the explicit close/settle/mark-to-market
// operations of spec.md §4.7 over its own Book.
type Engine struct {
	book    *Book
	gate    *risk.Gate
	market  MarketSource
	persist Persister

	cbMu        sync.RWMutex
	fillCbs     []FillCallback
	positionCbs []PositionCallback
	haltCbs     []HaltCallback

	haltMu     sync.RWMutex
	halted     bool
	haltReason string
}

func NewEngine(book *Book, gate *risk.Gate, market MarketSource, persist Persister) *Engine {
	return &Engine{book: book, gate: gate, market: market, persist: persist}
}

func (e *Engine) OnFill(cb FillCallback) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.fillCbs = append(e.fillCbs, cb)
}

func (e *Engine) OnPositionUpdate(cb PositionCallback) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.positionCbs = append(e.positionCbs, cb)
}

// OnHalt registers a callback fired once when the engine halts (spec.md
// §7). The ExecutionHaltAlert discord notification is wired through this.
func (e *Engine) OnHalt(cb HaltCallback) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.haltCbs = append(e.haltCbs, cb)
}

// Halted reports whether a post-fill persistence failure has halted
// further executions (spec.md §7: "halts further executions until
// operator intervention").
func (e *Engine) Halted() (bool, string) {
	e.haltMu.RLock()
	defer e.haltMu.RUnlock()
	return e.halted, e.haltReason
}

// Resume clears a halt, the operator-intervention step spec.md §7 names.
func (e *Engine) Resume() {
	e.haltMu.Lock()
	defer e.haltMu.Unlock()
	e.halted = false
	e.haltReason = ""
}

func (e *Engine) halt(orderID, reason string) {
	e.haltMu.Lock()
	alreadyHalted := e.halted
	e.halted = true
	e.haltReason = reason
	e.haltMu.Unlock()
	if alreadyHalted {
		return
	}
	telemetry.Errorf("execution: halted after order %s: %s", orderID, reason)
	e.cbMu.RLock()
	cbs := make([]HaltCallback, len(e.haltCbs))
	copy(cbs, e.haltCbs)
	e.cbMu.RUnlock()
	for _, cb := range cbs {
		runCallback(func() { cb(orderID, reason) })
	}
}

// Book exposes the position book for read-only external use (e.g. a
// storage-recovery pass or a status endpoint).
func (e *Engine) Book() *Book { return e.book }

// PlaceSignal implements the §4.7 execution protocol: build a Pending
// order, fetch the market, determine the fill price, run the risk
// check, fill, apply to the book, record on the risk account, and
// persist. Signals are always market orders buying the signaled side at
// the current ask (spec.md §4.7, "signal->order mapping rule").
func (e *Engine) PlaceSignal(ctx context.Context, sig strategy.TradeSignal) (*SimulatedOrder, error) {
	return e.place(ctx, sig, OrderMarket, nil)
}

// PlaceLimitSignal is the limit-order counterpart: it is accepted by
// the data model (spec.md §3) but the engine never rests or retries it
// (spec.md §9 open question, frozen per SPEC_FULL decision #2) — a fill
// happens only if the relevant ask already satisfies limitPrice at
// placement time, otherwise the order stays Pending forever and that
// freeze is logged rather than silent.
func (e *Engine) PlaceLimitSignal(ctx context.Context, sig strategy.TradeSignal, limitPrice money.Cents) (*SimulatedOrder, error) {
	return e.place(ctx, sig, OrderLimit, &limitPrice)
}

func (e *Engine) place(ctx context.Context, sig strategy.TradeSignal, kind OrderKind, limitPrice *money.Cents) (*SimulatedOrder, error) {
	if halted, reason := e.Halted(); halted {
		order := SimulatedOrder{
			OrderID:      uuid.NewString(),
			StrategyID:   sig.StrategyID,
			StrategyKind: sig.StrategyKind,
			GameID:       sig.GameID,
			MarketTicker: sig.MarketTicker,
			Side:         Side(sig.Side),
			Quantity:     sig.Quantity,
			Kind:         kind,
			LimitPrice:   limitPrice,
			Status:       StatusRejected,
			RejectReason: "execution halted: " + reason,
			PlacedAt:     time.Now(),
			SignalReason: sig.Reason,
			SignalMeta:   sig.Metadata,
		}
		return &order, errs.New(errs.InvariantViolation, "execution halted: "+reason)
	}

	now := time.Now()
	side := Side(sig.Side)

	order := SimulatedOrder{
		OrderID:      uuid.NewString(),
		StrategyID:   sig.StrategyID,
		StrategyKind: sig.StrategyKind,
		GameID:       sig.GameID,
		MarketTicker: sig.MarketTicker,
		Side:         side,
		Quantity:     sig.Quantity,
		Kind:         kind,
		LimitPrice:   limitPrice,
		Status:       StatusPending,
		PlacedAt:     now,
		SignalReason: sig.Reason,
		SignalMeta:   sig.Metadata,
	}

	quote, ok := e.market.Quote(sig.GameID, sig.MarketTicker)
	if !ok {
		order.Status = StatusRejected
		order.RejectReason = "no market data"
		e.persistOrder(ctx, order)
		return &order, errs.Wrap(errs.DataUnavailable, "no orderbook for market", errs.NoMarketData)
	}

	askPrice, ok := marketFillPrice(quote, side)
	if !ok {
		order.Status = StatusRejected
		order.RejectReason = "ask price unavailable for requested side"
		e.persistOrder(ctx, order)
		return &order, errs.Wrap(errs.DataUnavailable, "no ask price for side", errs.NoMarketData)
	}

	fillPrice := askPrice
	if kind == OrderLimit {
		if askPrice.GreaterThan(*limitPrice) {
			e.persistOrder(ctx, order)
			telemetry.Infof("execution: limit order %s frozen Pending (ask %s > limit %s), no resting fill", order.OrderID, askPrice.String(), limitPrice.String())
			return &order, nil
		}
	}

	riskOrder := risk.Order{
		StrategyID:   sig.StrategyID,
		GameID:       sig.GameID,
		MarketTicker: sig.MarketTicker,
		Quantity:     sig.Quantity,
	}
	decision := e.gate.Check(riskOrder, e.book)
	if !decision.Approved {
		order.Status = StatusRejected
		order.RejectReason = string(decision.LimitType) + ": " + decision.Reason
		e.persistOrder(ctx, order)
		return &order, nil
	}

	order.FillPrice = &fillPrice
	order.FilledAt = now
	order.Status = StatusFilled

	before, existed := e.book.Get(sig.StrategyID, sig.MarketTicker, side)
	pos := e.book.OpenOrAdd(sig.StrategyID, sig.MarketTicker, side, sig.GameID, sig.Quantity, fillPrice, now)

	if err := e.persistOrderErr(ctx, order); err != nil || e.persistPositionErr(ctx, pos) != nil {
		// Persistence failed after the fill: roll back the in-memory
		// position (spec.md §7) and halt further executions rather than
		// risk a fill the store never durably recorded.
		e.book.Restore(sig.StrategyID, sig.MarketTicker, side, before, existed)
		order.Status = StatusRejected
		order.RejectReason = "post-fill persistence failure"
		e.halt(order.OrderID, "post-fill persistence failure")
		return &order, errs.New(errs.InvariantViolation, "post-fill persistence failure")
	}

	e.gate.Record(money.NewCents(0))
	e.runFillCallbacks(order)
	e.runPositionCallbacks(pos)

	return &order, nil
}

// ClosePosition exits an open position at exitPrice and records the
// realized delta with the risk gate (spec.md §4.7).
func (e *Engine) ClosePosition(ctx context.Context, strategyID, marketTicker string, side Side, exitPrice money.Cents) (Position, bool) {
	before, existed := e.book.Get(strategyID, marketTicker, side)
	pos, ok := e.book.ClosePosition(strategyID, marketTicker, side, exitPrice, time.Now())
	if !ok {
		return Position{}, false
	}
	delta := pos.RealizedPnL
	if existed {
		delta = pos.RealizedPnL.Sub(before.RealizedPnL)
	}
	e.gate.Record(delta)
	e.persistPosition(ctx, pos)
	e.runPositionCallbacks(pos)
	return pos, true
}

// SettlePosition assigns the fixed binary payout once a market's
// outcome is known (spec.md §4.7, S4).
func (e *Engine) SettlePosition(ctx context.Context, strategyID, marketTicker string, side Side, outcome Side) (Position, bool) {
	before, existed := e.book.Get(strategyID, marketTicker, side)
	pos, ok := e.book.SettlePosition(strategyID, marketTicker, side, outcome, time.Now())
	if !ok {
		return Position{}, false
	}
	delta := pos.RealizedPnL
	if existed {
		delta = pos.RealizedPnL.Sub(before.RealizedPnL)
	}
	e.gate.Record(delta)
	e.persistPosition(ctx, pos)
	e.runPositionCallbacks(pos)
	return pos, true
}

// UpdateUnrealized marks an open position to the current best-exit
// price (spec.md §4.7 mark-to-market).
func (e *Engine) UpdateUnrealized(ctx context.Context, strategyID, marketTicker string, side Side, mark money.Cents) (Position, bool) {
	pos, ok := e.book.MarkToMarket(strategyID, marketTicker, side, mark)
	if !ok {
		return Position{}, false
	}
	e.persistPosition(ctx, pos)
	e.runPositionCallbacks(pos)
	return pos, true
}

func (e *Engine) persistOrder(ctx context.Context, o SimulatedOrder) {
	_ = e.persistOrderErr(ctx, o)
}

func (e *Engine) persistOrderErr(ctx context.Context, o SimulatedOrder) error {
	if e.persist == nil {
		return nil
	}
	if err := e.persist.SaveOrder(ctx, o); err != nil {
		telemetry.Errorf("execution: failed to persist order %s: %v", o.OrderID, err)
		return err
	}
	return nil
}

func (e *Engine) persistPosition(ctx context.Context, p Position) {
	_ = e.persistPositionErr(ctx, p)
}

func (e *Engine) persistPositionErr(ctx context.Context, p Position) error {
	if e.persist == nil {
		return nil
	}
	if err := e.persist.UpsertPosition(ctx, p); err != nil {
		telemetry.Errorf("execution: failed to persist position %s/%s/%s: %v", p.StrategyID, p.MarketTicker, p.Side, err)
		return err
	}
	return nil
}

func (e *Engine) runFillCallbacks(o SimulatedOrder) {
	e.cbMu.RLock()
	cbs := make([]FillCallback, len(e.fillCbs))
	copy(cbs, e.fillCbs)
	e.cbMu.RUnlock()
	for _, cb := range cbs {
		runCallback(func() { cb(o) })
	}
}

func (e *Engine) runPositionCallbacks(p Position) {
	e.cbMu.RLock()
	cbs := make([]PositionCallback, len(e.positionCbs))
	copy(cbs, e.positionCbs)
	e.cbMu.RUnlock()
	for _, cb := range cbs {
		runCallback(func() { cb(p) })
	}
}

// runCallback isolates a single callback's panic (spec.md §4.7:
// "callback failures are logged, never rolled back").
func runCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Errorf("execution: callback panicked: %v", r)
		}
	}()
	fn()
}

// marketFillPrice determines the taker fill price for a market order
// (spec.md §4.7 step 3): buying Yes fills at yes_ask, buying No fills
// at no_ask.
func marketFillPrice(q MarketQuote, side Side) (money.Cents, bool) {
	if side == SideYes {
		if q.YesAskSet {
			return q.YesAsk, true
		}
		return money.Cents{}, false
	}
	if q.NoAskSet {
		return q.NoAsk, true
	}
	return money.Cents{}, false
}

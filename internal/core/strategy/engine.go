package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/telemetry"
)

// evalSoftBudget is the per-evaluate() soft time budget (spec.md §5):
// exceeding it is logged but the call is never aborted.
const evalSoftBudget = 500 * time.Millisecond

// DefaultEvaluationInterval is the StrategyEngine's default cadence
// (spec.md §4.5).
const DefaultEvaluationInterval = 2 * time.Second

// GameSource supplies the loaded games the engine evaluates each tick;
// the engine itself skips games in the final phase. The Aggregator (C4)
// satisfies this.
type GameSource interface {
	ListStates() []gamestate.GameState
}

// SignalHandler receives every emitted TradeSignal (the ExecutionEngine
// is the principal subscriber, per spec.md §4.5).
type SignalHandler func(TradeSignal)

// Engine is component C5: a fixed-cadence evaluation loop over a
// registry of live strategy instances (spec.md §4.5).
type Engine struct {
	interval time.Duration
	source   GameSource

	mu         sync.RWMutex
	strategies map[string]Strategy

	handlersMu sync.RWMutex
	handlers   []SignalHandler

	inflight sync.Map // (strategyID, gameID) -> struct{} while an Evaluate call is running
}

func NewEngine(source GameSource, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultEvaluationInterval
	}
	return &Engine{
		interval:   interval,
		source:     source,
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy instance to the engine's registry, keyed by
// its own ID (spec.md §4.5: "holder of live strategy instances keyed by
// StrategyId").
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.ID()] = s
}

func (e *Engine) Unregister(strategyID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.strategies, strategyID)
}

func (e *Engine) Get(strategyID string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[strategyID]
	return s, ok
}

func (e *Engine) Subscribe(h SignalHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Run blocks, ticking at the configured interval until ctx is
// cancelled. Each tick evaluates every enabled strategy against every
// loaded, non-Finished game, skipping any (strategy, game) pair whose
// prior evaluation is still in flight (spec.md §5: "cadence is a rate
// ceiling, not a guarantee").
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	e.mu.RLock()
	strategies := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		strategies = append(strategies, s)
	}
	e.mu.RUnlock()

	games := e.source.ListStates()
	for _, gs := range games {
		if gs.Phase == gamestate.PhaseFinal {
			continue
		}
		for _, s := range strategies {
			if !s.Enabled() {
				continue
			}
			e.evaluateOne(ctx, s, gs)
		}
	}
}

func (e *Engine) evaluateOne(ctx context.Context, s Strategy, gs gamestate.GameState) {
	key := s.ID() + "|" + gs.GameID
	if _, loaded := e.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	defer e.inflight.Delete(key)

	start := time.Now()
	signals, err := s.Evaluate(gs)
	elapsed := time.Since(start)
	telemetry.Metrics.StrategyEvalLatency.Record(elapsed)
	if elapsed > evalSoftBudget {
		telemetry.Metrics.StrategyEvalOverruns.Inc()
		telemetry.Warnf("strategy %s evaluate(%s) exceeded soft budget: %s", s.ID(), gs.GameID, elapsed)
	}
	if err != nil {
		if !errs.Is(err, errs.DataUnavailable) {
			telemetry.Errorf("strategy %s evaluate(%s) failed: %v", s.ID(), gs.GameID, err)
		}
		return
	}

	for _, sig := range signals {
		e.dispatch(sig)
	}
	_ = ctx
}

// dispatch fans a signal out to every subscribed handler, recovering
// from a handler panic so one bad subscriber can't take down the
// evaluation loop (mirrors the events.Bus per-handler recovery
// discipline this codebase already uses elsewhere).
func (e *Engine) dispatch(sig TradeSignal) {
	e.handlersMu.RLock()
	handlers := make([]SignalHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.handlersMu.RUnlock()

	for _, h := range handlers {
		func(h SignalHandler) {
			defer func() {
				if r := recover(); r != nil {
					telemetry.Errorf("strategy signal handler panicked: %v", r)
				}
			}()
			h(sig)
		}(h)
	}
}

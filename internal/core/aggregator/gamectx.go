// Package aggregator is component C4: it owns the set of actively
// tracked games, the GameState mutations that flow into them, and the
// two scheduled pollers (NBA scoreboard, sportsbook odds) that keep
// each game fresh.
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/telemetry"
)

// gameInboxCap bounds a game's pending-mutation queue (spec.md §5: "an
// unbuffered or small-bounded channel (depth <= 32)" routing orderbook
// events to a game worker).
const gameInboxCap = 32

// inboxEntry is one queued mutation. delta marks a non-snapshot
// orderbook update; only delta entries are eligible to be dropped on
// overflow, and ticker names which market to resync if this entry is
// the one dropped.
type inboxEntry struct {
	fn     func()
	delta  bool
	ticker string
}

// gameCtx is the single logical owner of one GameState (spec.md §4.4
// concurrency model: "all mutations ... serialized through a single
// logical owner"). Every mutation is a closure queued and run on this
// goroutine, in the same shape as the teacher's GameContext.Send — but
// backed by a mutex-guarded deque rather than a bare channel, since
// spec.md §5 requires evicting a specific queued entry (the oldest
// delta) on overflow, something a channel's FIFO can't do mid-queue.
//
// Concurrent readers never touch state directly — they load snap, a
// copy-on-write pointer the owning goroutine republishes after every
// mutation, per spec.md §4.4's "readers use a copy-on-write snapshot".
type gameCtx struct {
	state *gamestate.GameState
	snap  atomic.Pointer[gamestate.GameState]

	eventTicker string
	nbaGameID   string

	cancelPollers context.CancelFunc

	// resync requests a fresh snapshot for a ticker whose queued delta
	// was dropped for backpressure (spec.md §5); bound to the exchange
	// stream's ResyncTicker.
	resync func(ticker string)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []inboxEntry
	closed bool
	done   chan struct{}
}

func newGameCtx(state *gamestate.GameState, resync func(ticker string)) *gameCtx {
	gc := &gameCtx{
		state:  state,
		resync: resync,
		done:   make(chan struct{}),
	}
	gc.cond = sync.NewCond(&gc.mu)
	gc.republish()
	go gc.run()
	return gc
}

func (gc *gameCtx) run() {
	defer close(gc.done)
	for {
		gc.mu.Lock()
		for len(gc.queue) == 0 && !gc.closed {
			gc.cond.Wait()
		}
		if len(gc.queue) == 0 && gc.closed {
			gc.mu.Unlock()
			return
		}
		entry := gc.queue[0]
		gc.queue = gc.queue[1:]
		gc.mu.Unlock()

		entry.fn()
		gc.republish()
	}
}

// send enqueues a closure to run on the game's own goroutine, then
// republishes the read snapshot. Non-deltas (NBA/odds polls, snapshot
// applications) aren't eligible for the drop-oldest-delta eviction,
// since there is usually only one of each in flight.
func (gc *gameCtx) send(fn func()) {
	gc.enqueue(inboxEntry{fn: fn})
}

// sendDelta enqueues a non-snapshot orderbook delta for ticker. On
// overflow, this entry may itself survive while an older queued delta
// is evicted (spec.md §5: "drop the oldest non-snapshot delta and
// request a resync rather than block the reader").
func (gc *gameCtx) sendDelta(ticker string, fn func()) {
	gc.enqueue(inboxEntry{fn: fn, delta: true, ticker: ticker})
}

func (gc *gameCtx) enqueue(e inboxEntry) {
	gc.mu.Lock()
	if len(gc.queue) >= gameInboxCap {
		if idx := oldestDeltaIndex(gc.queue); idx >= 0 {
			dropped := gc.queue[idx]
			gc.queue = append(gc.queue[:idx], gc.queue[idx+1:]...)
			gc.queue = append(gc.queue, e)
			gc.mu.Unlock()

			telemetry.Metrics.InboxOverflows.Inc()
			telemetry.Warnf("aggregator: game %s inbox full (cap=%d), dropped oldest delta for %s, resyncing",
				gc.state.GameID, gameInboxCap, dropped.ticker)
			if gc.resync != nil && dropped.ticker != "" {
				gc.resync(dropped.ticker)
			}
			gc.cond.Signal()
			return
		}
		// Nothing evictable (queue is all snapshot/poll work) — fall
		// back to dropping the new arrival rather than blocking the
		// reader.
		gc.mu.Unlock()
		telemetry.Metrics.InboxOverflows.Inc()
		telemetry.Warnf("aggregator: game %s inbox full (cap=%d) with no droppable delta, dropping new event",
			gc.state.GameID, gameInboxCap)
		return
	}
	gc.queue = append(gc.queue, e)
	gc.mu.Unlock()
	gc.cond.Signal()
}

// oldestDeltaIndex returns the index of the first (oldest) delta entry
// in queue, or -1 if none is droppable.
func oldestDeltaIndex(queue []inboxEntry) int {
	for i, e := range queue {
		if e.delta {
			return i
		}
	}
	return -1
}

// republish deep-copies state into a fresh snapshot. Must be called only
// from the owning goroutine (inside a send closure or at construction).
func (gc *gameCtx) republish() {
	cp := *gc.state
	cp.Markets = make(map[string]*gamestate.MarketView, len(gc.state.Markets))
	for k, v := range gc.state.Markets {
		mv := *v
		cp.Markets[k] = &mv
	}
	cp.Books = make(map[string]gamestate.BookQuote, len(gc.state.Books))
	for k, v := range gc.state.Books {
		cp.Books[k] = v
	}
	gc.snap.Store(&cp)
}

// snapshot returns the latest published read-only copy. Safe to call
// from any goroutine.
func (gc *gameCtx) snapshot() gamestate.GameState {
	return *gc.snap.Load()
}

// close shuts down the game's goroutine and any pollers still attached
// to it, and waits for the goroutine to drain.
func (gc *gameCtx) close() {
	if gc.cancelPollers != nil {
		gc.cancelPollers()
	}
	gc.mu.Lock()
	gc.closed = true
	gc.mu.Unlock()
	gc.cond.Broadcast()
	<-gc.done
}

// pollLoop drift-compensates: next tick = last_start + period, skipping
// ahead to now if a run overran. A single poll's error is caught and
// logged, never kills the loop (spec.md §4.4). poll returns done=true
// once the game has reached its final phase, so pollLoop can self-exit
// after that last refresh without logging a spurious error.
func pollLoop(ctx context.Context, period time.Duration, poll func(ctx context.Context) (done bool, err error)) {
	next := time.Now().Add(period)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		done, err := poll(ctx)
		if err != nil {
			telemetry.Warnf("aggregator: poll failed: %v", err)
		}
		if done {
			return
		}

		next = next.Add(period)
		if wait := time.Until(next); wait > 0 {
			timer.Reset(wait)
		} else {
			next = time.Now().Add(period)
			timer.Reset(period)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

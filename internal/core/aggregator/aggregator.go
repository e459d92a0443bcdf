package aggregator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nbapaper/engine/internal/adapters/exchange"
	"github.com/nbapaper/engine/internal/adapters/sportsfeed"
	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/execution"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/core/strategy"
	"github.com/nbapaper/engine/internal/core/tickergrammar"
	"github.com/nbapaper/engine/internal/events"
	"github.com/nbapaper/engine/internal/telemetry"
)

// MarketDiscovery is the subset of the exchange's REST surface the
// aggregator needs to discover and subscribe to a game's markets.
// *exchange.RESTClient satisfies this.
type MarketDiscovery interface {
	ListEventMarkets(ctx context.Context, eventTicker string) (exchange.EventSummary, error)
}

// TickerSubscriber registers tickers for streaming orderbook updates and
// forces a resync for one after a dropped delta. *exchange.Stream
// satisfies this.
type TickerSubscriber interface {
	SubscribeTickers(tickers []string) error
	ResyncTicker(ticker string)
}

// SportsSource is the subset of the sports-feed adapter the aggregator
// polls. *sportsfeed.Client satisfies this.
type SportsSource interface {
	GamesForDate(ctx context.Context, date time.Time) ([]sportsfeed.GameSummary, error)
	LiveBoxScore(ctx context.Context, nbaGameID string) (sportsfeed.BoxScore, error)
	Odds(ctx context.Context, nbaGameID string) ([]sportsfeed.OddsQuote, error)
}

// Aggregator is component C4. It owns the set of active games: it
// discovers markets for an event ticker, matches the event to an NBA
// game (spec.md §4.2), starts the two per-game pollers, and routes
// exchange events to the owning gameCtx.
type Aggregator struct {
	exchangeREST MarketDiscovery
	stream       TickerSubscriber
	sportsFeed   SportsSource
	bus          *events.Bus

	nbaPollInterval  time.Duration
	oddsPollInterval time.Duration

	mu          sync.RWMutex
	games       map[string]*gameCtx // keyed by internal game id
	tickerIndex map[string]string   // market ticker -> game id

	// loadGroup collapses concurrent Load calls for the same event
	// ticker (the periodic discovery loop and a manual trigger can race)
	// into a single in-flight market-discovery + pollers setup.
	loadGroup singleflight.Group
}

func New(exchangeREST MarketDiscovery, stream TickerSubscriber, sportsFeed SportsSource, bus *events.Bus, nbaPollInterval, oddsPollInterval time.Duration) *Aggregator {
	a := &Aggregator{
		exchangeREST:     exchangeREST,
		stream:           stream,
		sportsFeed:       sportsFeed,
		bus:              bus,
		nbaPollInterval:  nbaPollInterval,
		oddsPollInterval: oddsPollInterval,
		games:            make(map[string]*gameCtx),
		tickerIndex:      make(map[string]string),
	}
	bus.Subscribe(events.EventOrderbookUpdate, a.onOrderbookUpdate)
	return a
}

// Load hydrates a game from an exchange event ticker: it matches the
// event to one NBA game (fail-closed on ambiguity, spec.md §4.2),
// discovers the event's market tickers, subscribes to them on the
// exchange stream, registers the game, and starts its pollers.
//
// Concurrent Load calls for the same event ticker collapse into one
// discovery pass; every caller gets the same game id.
func (a *Aggregator) Load(ctx context.Context, eventTicker string) (string, error) {
	v, err, _ := a.loadGroup.Do(eventTicker, func() (any, error) {
		return a.load(ctx, eventTicker)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Aggregator) load(ctx context.Context, eventTicker string) (string, error) {
	key, err := tickergrammar.ExtractMatchKey(eventTicker)
	if err != nil {
		return "", errs.Wrap(errs.DataUnavailable, "aggregator: cannot extract match key", err)
	}

	candidates, err := a.sportsFeed.GamesForDate(ctx, key.Date)
	if err != nil {
		return "", errs.Wrap(errs.TransportFailure, "aggregator: sportsfeed game lookup failed", err)
	}
	matchCandidates := make([]tickergrammar.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		matchCandidates = append(matchCandidates, tickergrammar.MatchCandidate{
			NBAGameID: c.NBAGameID,
			HomeAbbr:  c.HomeAbbr,
			AwayAbbr:  c.AwayAbbr,
		})
	}
	matched, err := tickergrammar.Match(key, matchCandidates)
	if err != nil {
		return "", errs.Wrap(errs.DataUnavailable, "aggregator: no unambiguous NBA game match for "+eventTicker, err)
	}

	summary, err := a.exchangeREST.ListEventMarkets(ctx, eventTicker)
	if err != nil {
		return "", errs.Wrap(errs.TransportFailure, "aggregator: market discovery failed", err)
	}

	gameID := uuid.NewString()
	state := gamestate.New(matched.NBAGameID, matched.HomeAbbr, matched.AwayAbbr)
	state.GameID = gameID
	state.EventTicker = eventTicker
	for _, t := range summary.MarketTicks {
		state.Markets[t] = &gamestate.MarketView{Ticker: t}
	}

	gc := newGameCtx(state, a.stream.ResyncTicker)
	gc.eventTicker = eventTicker
	gc.nbaGameID = matched.NBAGameID

	a.mu.Lock()
	a.games[gameID] = gc
	for _, t := range summary.MarketTicks {
		a.tickerIndex[t] = gameID
	}
	a.mu.Unlock()

	if err := a.stream.SubscribeTickers(summary.MarketTicks); err != nil {
		telemetry.Warnf("aggregator: subscribe failed for %s: %v", eventTicker, err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	gc.cancelPollers = cancel
	go a.runNbaPoller(pollCtx, gc)
	go a.runOddsPoller(pollCtx, gc)

	telemetry.Infof("aggregator: loaded game %s (%s @ %s), %d market(s)", gameID, matched.AwayAbbr, matched.HomeAbbr, len(summary.MarketTicks))
	return gameID, nil
}

// Unload cancels a game's pollers and removes it from tracking. Markets
// exclusively owned by this game are not explicitly unsubscribed from
// the exchange stream — the stream only ever grows its subscription set
// for the life of the process, mirroring the teacher's own
// never-unsubscribe simplification for a paper-trading engine.
func (a *Aggregator) Unload(gameID string) {
	a.mu.Lock()
	gc, ok := a.games[gameID]
	if ok {
		delete(a.games, gameID)
		for ticker, gid := range a.tickerIndex {
			if gid == gameID {
				delete(a.tickerIndex, ticker)
			}
		}
	}
	a.mu.Unlock()

	if ok {
		gc.close()
		telemetry.Infof("aggregator: unloaded game %s", gameID)
	}
}

// GetState returns the latest fused snapshot for a loaded game.
func (a *Aggregator) GetState(gameID string) (gamestate.GameState, bool) {
	a.mu.RLock()
	gc, ok := a.games[gameID]
	a.mu.RUnlock()
	if !ok {
		return gamestate.GameState{}, false
	}
	return gc.snapshot(), true
}

// ListStates implements strategy.GameSource: a snapshot of every loaded
// game's current fused state.
func (a *Aggregator) ListStates() []gamestate.GameState {
	a.mu.RLock()
	gcs := make([]*gameCtx, 0, len(a.games))
	for _, gc := range a.games {
		gcs = append(gcs, gc)
	}
	a.mu.RUnlock()

	out := make([]gamestate.GameState, 0, len(gcs))
	for _, gc := range gcs {
		out = append(out, gc.snapshot())
	}
	return out
}

// Quote implements execution.MarketSource over the same snapshots.
func (a *Aggregator) Quote(gameID, marketTicker string) (execution.MarketQuote, bool) {
	a.mu.RLock()
	gc, ok := a.games[gameID]
	a.mu.RUnlock()
	if !ok {
		return execution.MarketQuote{}, false
	}
	gs := gc.snapshot()
	mv, ok := gs.Markets[marketTicker]
	if !ok {
		return execution.MarketQuote{}, false
	}
	return execution.MarketQuote{
		YesBid: mv.YesBid, YesAsk: mv.YesAsk, NoBid: mv.NoBid, NoAsk: mv.NoAsk,
		YesBidSet: mv.YesBidSet, YesAskSet: mv.YesAskSet, NoBidSet: mv.NoBidSet, NoAskSet: mv.NoAskSet,
	}, true
}

var _ strategy.GameSource = (*Aggregator)(nil)

// onOrderbookUpdate routes an exchange delta to the owning game by
// ticker index, applies it, and publishes the affected-ticker event.
func (a *Aggregator) onOrderbookUpdate(e events.Event) error {
	ev, ok := e.Payload.(events.OrderbookUpdateEvent)
	if !ok {
		return nil
	}

	a.mu.RLock()
	gameID, ok := a.tickerIndex[ev.Ticker]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	a.mu.RLock()
	gc, ok := a.games[gameID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	apply := func() {
		gc.state.ApplyOrderbook(ev)
	}
	if ev.Snapshot {
		gc.send(apply)
	} else {
		gc.sendDelta(ev.Ticker, apply)
	}
	return nil
}

// runNbaPoller runs the NBA scoreboard poller for one game while its
// phase is pregame or in_progress, per spec.md §4.4.
func (a *Aggregator) runNbaPoller(ctx context.Context, gc *gameCtx) {
	pollLoop(ctx, a.nbaPollInterval, func(ctx context.Context) (bool, error) {
		if gc.snapshot().Phase == gamestate.PhaseFinal {
			return true, nil
		}
		box, err := a.sportsFeed.LiveBoxScore(ctx, gc.nbaGameID)
		if err != nil {
			return false, err
		}
		gc.send(func() {
			nbaEvent := events.NbaUpdateEvent{
				NBAGameID: box.NBAGameID,
				HomeScore: box.HomeScore,
				AwayScore: box.AwayScore,
				Period:    box.Period,
				Clock:     box.Clock,
				Phase:     box.Phase,
			}
			gc.state.ApplyNba(nbaEvent)
			old, changed := gc.state.SetPhase(normalizePhase(box.Phase))
			if changed {
				a.bus.Publish(events.Event{
					ID: uuid.NewString(), Type: events.EventStateChange, GameID: gc.state.GameID, Timestamp: time.Now(),
					Payload: events.StateChangeEvent{NBAGameID: gc.nbaGameID, OldPhase: old, NewPhase: gc.state.Phase},
				})
			}
			a.bus.Publish(events.Event{
				ID: uuid.NewString(), Type: events.EventNbaUpdate, GameID: gc.state.GameID, Timestamp: time.Now(),
				Payload: nbaEvent,
			})
		})
		return normalizePhase(box.Phase) == gamestate.PhaseFinal, nil
	})
}

// runOddsPoller runs the sportsbook-odds poller for one game while its
// phase is pregame or in_progress, per spec.md §4.4.
func (a *Aggregator) runOddsPoller(ctx context.Context, gc *gameCtx) {
	pollLoop(ctx, a.oddsPollInterval, func(ctx context.Context) (bool, error) {
		if gc.snapshot().Phase == gamestate.PhaseFinal {
			return true, nil
		}
		quotes, err := a.sportsFeed.Odds(ctx, gc.nbaGameID)
		if err != nil {
			return false, err
		}
		gc.send(func() {
			for _, q := range quotes {
				oddsEvent := events.OddsUpdateEvent{
					NBAGameID:        q.NBAGameID,
					Book:             q.Book,
					MoneylineHomeOdd: q.MoneylineHomeOdds,
					MoneylineAwayOdd: q.MoneylineAwayOdds,
					SpreadFavored:    q.SpreadFavored,
					SpreadValue:      q.SpreadValue,
					TotalValue:       q.TotalValue,
				}
				gc.state.ApplyOdds(oddsEvent)
				a.bus.Publish(events.Event{
					ID: uuid.NewString(), Type: events.EventOddsUpdate, GameID: gc.state.GameID, Timestamp: time.Now(),
					Payload: oddsEvent,
				})
			}
		})
		return gc.snapshot().Phase == gamestate.PhaseFinal, nil
	})
}

func normalizePhase(raw string) string {
	switch strings.ToLower(raw) {
	case "pregame", "scheduled":
		return gamestate.PhasePregame
	case "final", "finished":
		return gamestate.PhaseFinal
	default:
		return gamestate.PhaseInProgress
	}
}

package exchange

import (
	"context"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/events"
	"github.com/nbapaper/engine/internal/telemetry"
)

const (
	reconnectBase   = 1 * time.Second
	reconnectFactor = 2.0
	reconnectCap    = 30 * time.Second
	reconnectJitter = 0.20 // +/- 20%
)

// book is the reconciled local view of one market's resting yes/no bid
// levels, kept current via an initial snapshot plus sequenced deltas.
// Kalshi's binary contracts only publish bid levels per side — the
// opposing ask is always 100 minus the other side's best bid, since a
// YES and a NO contract on the same market always sum to $1.
type book struct {
	seq       int64
	yesLevels map[int64]int64
	noLevels  map[int64]int64
	stale     bool
}

func newBook() *book {
	return &book{yesLevels: map[int64]int64{}, noLevels: map[int64]int64{}}
}

func (b *book) applySnapshot(s snapshotMsg) {
	b.yesLevels = map[int64]int64{}
	b.noLevels = map[int64]int64{}
	for _, l := range s.Yes {
		b.yesLevels[l.Price] = l.Qty
	}
	for _, l := range s.No {
		b.noLevels[l.Price] = l.Qty
	}
	b.seq = s.Seq
	b.stale = false
}

// applyDelta returns false when d is not the immediate successor to the
// book's current sequence number — a gap that requires resync.
func (b *book) applyDelta(d deltaMsg) bool {
	if d.Seq != b.seq+1 {
		return false
	}
	levels := b.yesLevels
	if d.Side == "no" {
		levels = b.noLevels
	}
	levels[d.Price] += d.Delta
	if levels[d.Price] <= 0 {
		delete(levels, d.Price)
	}
	b.seq = d.Seq
	return true
}

func bestPrice(levels map[int64]int64) int64 {
	var best int64
	for price, qty := range levels {
		if qty > 0 && price > best {
			best = price
		}
	}
	return best
}

func (b *book) topOfBook() (yesBid, yesAsk, noBid, noAsk money.Cents) {
	yb := bestPrice(b.yesLevels)
	nb := bestPrice(b.noLevels)
	yesBid = money.NewCents(yb)
	noBid = money.NewCents(nb)
	if nb > 0 {
		yesAsk = money.NewCents(100 - nb)
	} else {
		yesAsk = money.NewCents(100)
	}
	if yb > 0 {
		noAsk = money.NewCents(100 - yb)
	} else {
		noAsk = money.NewCents(100)
	}
	return
}

// Stream connects to the exchange's streaming orderbook feed and
// publishes OrderbookUpdateEvent onto the bus, reconnecting with
// exponential backoff and resyncing any market whose delta sequence
// gapped.
//
// Like the teacher's kalshi_ws client, gorilla/websocket allows one
// concurrent reader and one concurrent writer, so all writes are
// serialized through mu.
type Stream struct {
	url    string
	signer *Signer
	bus    *events.Bus

	mu      sync.Mutex
	conn    *websocket.Conn
	tickers map[string]bool
	books   map[string]*book
	subID   int
	done    chan struct{}
}

func NewStream(wsURL string, signer *Signer, bus *events.Bus) *Stream {
	return &Stream{
		url:     wsURL,
		signer:  signer,
		bus:     bus,
		tickers: make(map[string]bool),
		books:   make(map[string]*book),
		done:    make(chan struct{}),
	}
}

func (s *Stream) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.runLoop(ctx)
	return nil
}

func (s *Stream) dial(ctx context.Context) error {
	parsed, _ := url.Parse(s.url)
	wsPath := parsed.Path
	if wsPath == "" {
		wsPath = "/trade-api/ws/v2"
	}
	header := s.signer.Headers("GET", wsPath)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// SubscribeTickers registers market tickers for streaming. Safe to call
// before or after Connect.
func (s *Stream) SubscribeTickers(tickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []string
	for _, t := range tickers {
		if !s.tickers[t] {
			s.tickers[t] = true
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 || s.conn == nil {
		return nil
	}
	return s.sendSubscribe(fresh)
}

func (s *Stream) runLoop(ctx context.Context) {
	defer close(s.done)

	first := true
	attempt := 0
	for {
		if first {
			telemetry.Infof("exchange_ws: connected to %s", s.url)
			first = false
		} else {
			telemetry.Infof("exchange_ws: reconnected after %d attempt(s)", attempt)
			telemetry.Metrics.ExchangeReconnects.Inc()
			s.bus.Publish(events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventReconnect,
				Timestamp: time.Now(),
				Payload:   events.TransportStatusEvent{Adapter: "exchange_stream", Attempt: attempt},
			})
		}
		attempt = 0

		s.resubscribeAll()
		s.readLoop(ctx)
		s.markAllStale()
		s.bus.Publish(events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventDisconnect,
			Timestamp: time.Now(),
			Payload:   events.TransportStatusEvent{Adapter: "exchange_stream"},
		})

		select {
		case <-ctx.Done():
			return
		default:
		}

		backoff := reconnectBase
		for {
			attempt++
			telemetry.Warnf("exchange_ws: reconnecting (attempt %d) in %s", attempt, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := s.dial(ctx); err != nil {
				telemetry.Warnf("exchange_ws: dial failed: %v", err)
				backoff = nextBackoff(backoff)
				continue
			}
			break
		}
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * reconnectFactor)
	if next > reconnectCap {
		next = reconnectCap
	}
	jitter := 1 + (rand.Float64()*2-1)*reconnectJitter
	return time.Duration(float64(next) * jitter)
}

func (s *Stream) resubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tickers) == 0 {
		return
	}
	all := make([]string, 0, len(s.tickers))
	for t := range s.tickers {
		all = append(all, t)
	}
	if err := s.sendSubscribe(all); err != nil {
		telemetry.Warnf("exchange_ws: resubscribe failed: %v", err)
	}
}

// resyncTicker forces a fresh snapshot for one market after a sequence
// gap, by dropping its local book and resubscribing — the exchange
// always sends a full snapshot on (re)subscribe.
func (s *Stream) resyncTicker(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, ticker)
	if s.conn == nil {
		return
	}
	if err := s.sendSubscribe([]string{ticker}); err != nil {
		telemetry.Warnf("exchange_ws: resync subscribe for %s failed: %v", ticker, err)
	}
}

// ResyncTicker is resyncTicker's exported counterpart, called by the
// aggregator when its own inbox backpressure (spec.md §5) drops a
// queued delta for this ticker and needs a fresh snapshot to recover.
func (s *Stream) ResyncTicker(ticker string) {
	s.resyncTicker(ticker)
}

// sendSubscribe writes a subscribe command. Caller must hold mu.
func (s *Stream) sendSubscribe(tickers []string) error {
	s.subID++
	id := s.subID
	conn := s.conn

	cmd := subscribeCmd{
		ID:  id,
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels:            []string{"orderbook_delta"},
			MarketTickers:       tickers,
			SendInitialSnapshot: true,
		},
	}
	telemetry.Debugf("exchange_ws: subscribing to %d ticker(s) (sid=%d)", len(tickers), id)
	if conn == nil {
		return nil
	}
	return conn.WriteJSON(cmd)
}

type subscribeCmd struct {
	ID     int             `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels            []string `json:"channels"`
	MarketTickers       []string `json:"market_tickers,omitempty"`
	SendInitialSnapshot bool     `json:"send_initial_snapshot,omitempty"`
}

func (s *Stream) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	defer conn.Close()

	const pingWait = 30 * time.Second
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			telemetry.Warnf("exchange_ws: read error: %v", err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pingWait))

		payload, kind, err := parseFrame(msg)
		if err != nil {
			telemetry.Warnf("exchange_ws: parse error: %v", err)
			continue
		}
		s.handleFrame(kind, payload)
	}
}

func (s *Stream) handleFrame(kind string, payload any) {
	switch kind {
	case "snapshot":
		snap := payload.(snapshotMsg)
		s.mu.Lock()
		b, ok := s.books[snap.MarketTicker]
		if !ok {
			b = newBook()
			s.books[snap.MarketTicker] = b
		}
		b.applySnapshot(snap)
		s.mu.Unlock()
		s.publishTopOfBook(snap.MarketTicker, true)
	case "delta":
		d := payload.(deltaMsg)
		s.mu.Lock()
		b, ok := s.books[d.MarketTicker]
		if !ok {
			s.mu.Unlock()
			telemetry.Warnf("exchange_ws: delta for %s before snapshot, ignoring", d.MarketTicker)
			return
		}
		applied := b.applyDelta(d)
		s.mu.Unlock()
		if !applied {
			telemetry.Warnf("exchange_ws: sequence gap on %s, resyncing", d.MarketTicker)
			telemetry.Metrics.SequenceGaps.Inc()
			s.resyncTicker(d.MarketTicker)
			return
		}
		s.publishTopOfBook(d.MarketTicker, false)
	}
}

func (s *Stream) publishTopOfBook(ticker string, snapshot bool) {
	s.mu.Lock()
	b, ok := s.books[ticker]
	if !ok {
		s.mu.Unlock()
		return
	}
	yesBid, yesAsk, noBid, noAsk := b.topOfBook()
	yesBidSet := bestPrice(b.yesLevels) > 0
	noBidSet := bestPrice(b.noLevels) > 0
	seq := b.seq
	stale := b.stale
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOrderbookUpdate,
		Timestamp: time.Now(),
		Payload: events.OrderbookUpdateEvent{
			Ticker:   ticker,
			Sequence: seq,
			YesBid:   yesBid,
			YesAsk:   yesAsk,
			NoBid:    noBid,
			NoAsk:    noAsk,
			// The yes ask is derived from the resting no bid (and vice
			// versa) since a yes and no contract always sum to $1 — so
			// the ask side is "present" exactly when the opposite bid is.
			YesBidSet: yesBidSet,
			YesAskSet: noBidSet,
			NoBidSet:  noBidSet,
			NoAskSet:  yesBidSet,
			Snapshot:  snapshot,
			Stale:     stale,
		},
	})
}

func (s *Stream) markAllStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		b.stale = true
	}
}

func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Stream) Done() <-chan struct{} {
	return s.done
}

package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/adapters/exchange"
	"github.com/nbapaper/engine/internal/adapters/sportsfeed"
	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/events"
)

type fakeDiscovery struct {
	markets exchange.EventSummary
	err     error
}

func (f fakeDiscovery) ListEventMarkets(ctx context.Context, eventTicker string) (exchange.EventSummary, error) {
	return f.markets, f.err
}

type fakeSubscriber struct {
	subscribed []string
	resynced   []string
}

func (f *fakeSubscriber) SubscribeTickers(tickers []string) error {
	f.subscribed = append(f.subscribed, tickers...)
	return nil
}

func (f *fakeSubscriber) ResyncTicker(ticker string) {
	f.resynced = append(f.resynced, ticker)
}

type fakeSports struct {
	games  []sportsfeed.GameSummary
	box    sportsfeed.BoxScore
	quotes []sportsfeed.OddsQuote
}

func (f fakeSports) GamesForDate(ctx context.Context, date time.Time) ([]sportsfeed.GameSummary, error) {
	return f.games, nil
}

func (f fakeSports) LiveBoxScore(ctx context.Context, nbaGameID string) (sportsfeed.BoxScore, error) {
	return f.box, nil
}

func (f fakeSports) Odds(ctx context.Context, nbaGameID string) ([]sportsfeed.OddsQuote, error) {
	return f.quotes, nil
}

const eventTicker = "KXNBAGAME-25NOV04BOSMIA"

func TestLoadMatchesAndRegistersMarkets(t *testing.T) {
	discovery := fakeDiscovery{markets: exchange.EventSummary{
		EventTicker: eventTicker,
		MarketTicks: []string{eventTicker + "-Y", eventTicker + "-N"},
	}}
	sub := &fakeSubscriber{}
	sports := fakeSports{games: []sportsfeed.GameSummary{
		{NBAGameID: "0022500001", HomeAbbr: "MIA", AwayAbbr: "BOS", ScheduledStart: time.Now()},
	}}
	bus := events.NewBus()

	a := New(discovery, sub, sports, bus, 5*time.Second, 10*time.Second)
	gameID, err := a.Load(context.Background(), eventTicker)
	require.NoError(t, err)
	require.NotEmpty(t, gameID)
	defer a.Unload(gameID)

	assert.ElementsMatch(t, []string{eventTicker + "-Y", eventTicker + "-N"}, sub.subscribed)

	gs, ok := a.GetState(gameID)
	require.True(t, ok)
	assert.Equal(t, "0022500001", gs.NBAGameID)
	assert.Equal(t, "MIA", gs.HomeAbbr)
	assert.Equal(t, "BOS", gs.AwayAbbr)
	assert.Len(t, gs.Markets, 2)

	states := a.ListStates()
	require.Len(t, states, 1)
}

func TestLoadFailsClosedOnAmbiguousMatch(t *testing.T) {
	discovery := fakeDiscovery{markets: exchange.EventSummary{EventTicker: eventTicker}}
	sub := &fakeSubscriber{}
	sports := fakeSports{games: []sportsfeed.GameSummary{
		{NBAGameID: "0022500001", HomeAbbr: "MIA", AwayAbbr: "BOS"},
		{NBAGameID: "0022500002", HomeAbbr: "MIA", AwayAbbr: "BOS"},
	}}
	bus := events.NewBus()

	a := New(discovery, sub, sports, bus, 5*time.Second, 10*time.Second)
	_, err := a.Load(context.Background(), eventTicker)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DataUnavailable))
}

func TestQuoteReturnsMarketView(t *testing.T) {
	discovery := fakeDiscovery{markets: exchange.EventSummary{
		EventTicker: eventTicker,
		MarketTicks: []string{eventTicker + "-Y"},
	}}
	sub := &fakeSubscriber{}
	sports := fakeSports{games: []sportsfeed.GameSummary{
		{NBAGameID: "0022500001", HomeAbbr: "MIA", AwayAbbr: "BOS"},
	}}
	bus := events.NewBus()

	a := New(discovery, sub, sports, bus, 5*time.Second, 10*time.Second)
	gameID, err := a.Load(context.Background(), eventTicker)
	require.NoError(t, err)
	defer a.Unload(gameID)

	bus.Publish(events.Event{
		Type: events.EventOrderbookUpdate,
		Payload: events.OrderbookUpdateEvent{
			Ticker: eventTicker + "-Y",
			YesAsk: money.NewCents(44), YesAskSet: true,
		},
	})

	require.Eventually(t, func() bool {
		q, ok := a.Quote(gameID, eventTicker+"-Y")
		return ok && q.YesAskSet
	}, time.Second, time.Millisecond)

	q, ok := a.Quote(gameID, eventTicker+"-Y")
	require.True(t, ok)
	assert.True(t, q.YesAsk.Equal(money.NewCents(44)))
}

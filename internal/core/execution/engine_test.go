package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/risk"
	"github.com/nbapaper/engine/internal/core/strategy"
)

type fakeMarket struct {
	quotes map[string]MarketQuote
}

func (f fakeMarket) Quote(gameID, ticker string) (MarketQuote, bool) {
	q, ok := f.quotes[ticker]
	return q, ok
}

type fakePersister struct {
	orders    []SimulatedOrder
	positions []Position
}

func (f *fakePersister) SaveOrder(ctx context.Context, o SimulatedOrder) error {
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakePersister) UpsertPosition(ctx context.Context, p Position) error {
	f.positions = append(f.positions, p)
	return nil
}

func newTestEngine(quotes map[string]MarketQuote) (*Engine, *fakePersister) {
	book := NewBook()
	gate := risk.NewGate(config.DefaultRiskLimits())
	persist := &fakePersister{}
	eng := NewEngine(book, gate, fakeMarket{quotes: quotes}, persist)
	return eng, persist
}

func sig(side strategy.Side, qty int) strategy.TradeSignal {
	return strategy.TradeSignal{
		StrategyID:   "s1",
		StrategyKind: strategy.KindSharpLine,
		GameID:       "g1",
		MarketTicker: "T1",
		Side:         side,
		Quantity:     qty,
		EmittedAt:    time.Now(),
	}
}

func TestPlaceSignalFillsAtAsk(t *testing.T) {
	eng, persist := newTestEngine(map[string]MarketQuote{
		"T1": {YesAsk: money.NewCents(44), YesAskSet: true},
	})

	order, err := eng.PlaceSignal(context.Background(), sig(strategy.SideYes, 10))
	require.NoError(t, err)
	require.Equal(t, StatusFilled, order.Status)
	require.NotNil(t, order.FillPrice)
	assert.True(t, order.FillPrice.Equal(money.NewCents(44)))
	assert.False(t, order.FilledAt.Before(order.PlacedAt))
	assert.True(t, order.FillPrice.GreaterThanOrEqual(money.NewCents(0)))
	assert.True(t, order.FillPrice.LessThanOrEqual(money.NewCents(100)))

	pos, ok := eng.Book().Get("s1", "T1", SideYes)
	require.True(t, ok)
	assert.True(t, pos.IsOpen)
	assert.Equal(t, 10, pos.Quantity)
	assert.True(t, pos.AvgPrice.Equal(money.NewCents(44)))
	require.Len(t, persist.orders, 1)
	require.Len(t, persist.positions, 1)
}

func TestPlaceSignalRejectsOnMissingMarketData(t *testing.T) {
	eng, _ := newTestEngine(map[string]MarketQuote{})
	order, err := eng.PlaceSignal(context.Background(), sig(strategy.SideYes, 10))
	require.Error(t, err)
	assert.Equal(t, StatusRejected, order.Status)
}

func TestPlaceSignalRejectsOnRiskLimit(t *testing.T) {
	eng, _ := newTestEngine(map[string]MarketQuote{
		"T1": {YesAsk: money.NewCents(44), YesAskSet: true},
	})
	limits := config.DefaultRiskLimits()
	limits.MaxTotalContracts = 1
	eng.gate = risk.NewGate(limits)

	order, err := eng.PlaceSignal(context.Background(), sig(strategy.SideYes, 10))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, order.Status)

	_, ok := eng.Book().Get("s1", "T1", SideYes)
	assert.False(t, ok)
}

// S4: open position strategy S, market M, side Yes, qty=10, avg_price=45.
// Settle(outcome=Yes) -> realized_pnl += (100-45)*10 = +550c, closed.
func TestSettlePositionMatchesS4(t *testing.T) {
	eng, _ := newTestEngine(nil)
	eng.Book().OpenOrAdd("s1", "T1", SideYes, "g1", 10, money.NewCents(45), time.Now())

	pos, ok := eng.SettlePosition(context.Background(), "s1", "T1", SideYes, SideYes)
	require.True(t, ok)
	assert.True(t, pos.RealizedPnL.Equal(money.NewCents(550)))
	assert.Equal(t, 0, pos.Quantity)
	assert.False(t, pos.IsOpen)
}

func TestSettlePositionLosingSide(t *testing.T) {
	eng, _ := newTestEngine(nil)
	eng.Book().OpenOrAdd("s1", "T1", SideYes, "g1", 10, money.NewCents(45), time.Now())

	pos, ok := eng.SettlePosition(context.Background(), "s1", "T1", SideYes, SideNo)
	require.True(t, ok)
	assert.True(t, pos.RealizedPnL.Equal(money.NewCents(-450)))
	assert.False(t, pos.IsOpen)
	assert.Equal(t, 0, pos.Quantity)
}

func TestClosePositionAppliesRealizedDelta(t *testing.T) {
	eng, _ := newTestEngine(nil)
	eng.Book().OpenOrAdd("s1", "T1", SideYes, "g1", 10, money.NewCents(40), time.Now())

	pos, ok := eng.ClosePosition(context.Background(), "s1", "T1", SideYes, money.NewCents(50))
	require.True(t, ok)
	assert.True(t, pos.RealizedPnL.Equal(money.NewCents(100)))
	assert.False(t, pos.IsOpen)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/execution"
	"github.com/nbapaper/engine/internal/core/money"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paperengine.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertGameIsIdempotentOnEventTicker(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := GameRecord{
		EventTicker: "KXNBAGAME-25NOV04BOSMIA",
		TickerSeed:  "25NOV04BOSMIA",
		NBAGameID:   "0022500001",
		HomeTeam:    "MIA",
		AwayTeam:    "BOS",
		GameDate:    time.Now(),
		Status:      "pregame",
		IsActive:    true,
	}

	id1, err := st.UpsertGame(ctx, rec)
	require.NoError(t, err)

	rec.Status = "in_progress"
	id2, err := st.UpsertGame(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var status string
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT status FROM games WHERE id = ?`, id1).Scan(&status))
	assert.Equal(t, "in_progress", status)
}

func TestSaveOrderThenUpsertPositionRoundTrips(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	fill := money.NewCents(44)
	order := execution.SimulatedOrder{
		OrderID:      "order-1",
		StrategyID:   "s1",
		StrategyKind: "sharp_line",
		GameID:       "g1",
		MarketTicker: "T1",
		Side:         execution.SideYes,
		Quantity:     10,
		Kind:         execution.OrderMarket,
		FillPrice:    &fill,
		Status:       execution.StatusFilled,
		PlacedAt:     time.Now(),
		FilledAt:     time.Now(),
		SignalMeta:   map[string]any{"edge_pct": 12.5},
	}
	require.NoError(t, st.SaveOrder(ctx, order))

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulated_orders WHERE order_id = ?`, order.OrderID).Scan(&count))
	assert.Equal(t, 1, count)

	pos := execution.Position{
		StrategyID:   "s1",
		MarketTicker: "T1",
		Side:         execution.SideYes,
		GameID:       "g1",
		Quantity:     10,
		AvgPrice:     money.NewCents(44),
		CurrentPrice: money.NewCents(44),
		RealizedPnL:  money.NewCents(0),
		IsOpen:       true,
		OpenedAt:     time.Now(),
	}
	require.NoError(t, st.UpsertPosition(ctx, pos))

	pos.Quantity = 0
	pos.IsOpen = false
	pos.RealizedPnL = money.NewCents(550)
	pos.ClosedAt = time.Now()
	require.NoError(t, st.UpsertPosition(ctx, pos))

	var rowCount int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions WHERE strategy_id = ? AND market_ticker = ? AND side = ?`,
		"s1", "T1", string(execution.SideYes)).Scan(&rowCount))
	assert.Equal(t, 1, rowCount, "upsert must not duplicate the (strategy, market, side) key")

	var isOpen int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT is_open FROM positions WHERE strategy_id = ? AND market_ticker = ? AND side = ?`,
		"s1", "T1", string(execution.SideYes)).Scan(&isOpen))
	assert.Equal(t, 0, isOpen)
}

func TestRecordRiskLimitsAndSystemLog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordRiskLimits(ctx, config.DefaultRiskLimits()))
	require.NoError(t, st.InsertSystemLog(ctx, LogWarn, "risk", "loss streak cooldown engaged"))

	var levelCount int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM system_logs WHERE level = ?`, string(LogWarn)).Scan(&levelCount))
	assert.Equal(t, 1, levelCount)
}

// Package storage is the durable repository of spec.md §6: a SQLite
// database (modernc.org/sqlite, pure Go, no cgo) holding the eleven
// tables the paper-trading engine writes to as it runs. Shaped after
// the teacher's tracking.Store — a single *sql.DB behind a mutex, a
// const schema string run at open, and exported methods that are each
// one round trip — but widened to the full relational schema instead
// of one FIFO table, since this engine answers to operators, not just
// a training pipeline.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/execution"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/telemetry"

	_ "modernc.org/sqlite"
)

// Store is the engine's SQLite-backed repository. One *sql.DB, one
// writer at a time (SetMaxOpenConns(1)) — the same discipline the
// teacher's tracking store uses, since modernc.org/sqlite serializes
// writes per-connection anyway and a pool just adds contention.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (if needed) the parent directory, opens the database in
// WAL mode with a busy timeout, enables foreign keys, and runs schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init storage schema: %w", err)
	}

	telemetry.Infof("storage: opened %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GameRecord is the games-table row (spec.md §6).
type GameRecord struct {
	EventTicker string
	TickerSeed  string
	NBAGameID   string
	HomeTeam    string
	AwayTeam    string
	HomeTeamID  string
	AwayTeamID  string
	GameDate    time.Time
	Status      string
	IsActive    bool
}

// UpsertGame inserts or refreshes a game row keyed by its unique
// event_ticker, the same ON CONFLICT ... DO UPDATE shape the teacher's
// goalserve collector uses to keep a first_seen/last_seen pair current
// without a read-then-write race.
func (s *Store) UpsertGame(ctx context.Context, g GameRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (event_ticker, ticker_seed, nba_game_id, home_team, away_team, home_team_id, away_team_id, game_date, status, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(event_ticker) DO UPDATE SET
			status=excluded.status, is_active=excluded.is_active, updated_at=excluded.updated_at`,
		g.EventTicker, g.TickerSeed, g.NBAGameID, g.HomeTeam, g.AwayTeam, g.HomeTeamID, g.AwayTeamID,
		g.GameDate.UTC().Format(time.RFC3339), g.Status, boolToInt(g.IsActive), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert game %s: %w", g.EventTicker, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM games WHERE event_ticker = ?`, g.EventTicker).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup game id %s: %w", g.EventTicker, err)
	}
	return id, nil
}

// MarketRecord is the kalshi_markets-table row.
type MarketRecord struct {
	GameID      int64
	Ticker      string
	MarketType  string // moneyline_home, moneyline_away, spread, total
	StrikeValue *money.Cents
	Side        string // yes, no, or "" when not side-specific
	Status      string
}

// UpsertMarket registers a market discovered for a game.
func (s *Store) UpsertMarket(ctx context.Context, m MarketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var strike any
	if m.StrikeValue != nil {
		strike = m.StrikeValue.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kalshi_markets (game_id, ticker, market_type, strike_value, side, status, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(ticker) DO UPDATE SET status=excluded.status`,
		m.GameID, m.Ticker, m.MarketType, strike, nullIfEmpty(m.Side), m.Status, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert market %s: %w", m.Ticker, err)
	}
	return nil
}

// OrderbookSnapshot is one orderbook_snapshots row.
type OrderbookSnapshot struct {
	MarketID                              int64
	Timestamp                              time.Time
	YesBid, YesAsk, NoBid, NoAsk           *money.Cents
	YesBidSize, YesAskSize, NoBidSize, NoAskSize int
}

// InsertOrderbookSnapshot appends one orderbook observation.
func (s *Store) InsertOrderbookSnapshot(ctx context.Context, o OrderbookSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orderbook_snapshots (market_id, timestamp, yes_bid, yes_ask, no_bid, no_ask, yes_bid_size, yes_ask_size, no_bid_size, no_ask_size, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.MarketID, o.Timestamp.UTC().Format(time.RFC3339Nano),
		centsOrNil(o.YesBid), centsOrNil(o.YesAsk), centsOrNil(o.NoBid), centsOrNil(o.NoAsk),
		o.YesBidSize, o.YesAskSize, o.NoBidSize, o.NoAskSize,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert orderbook snapshot market=%d: %w", o.MarketID, err)
	}
	return nil
}

// NbaLiveRow is one nba_live_data row.
type NbaLiveRow struct {
	GameID                    int64
	Timestamp                 time.Time
	Period                    int
	TimeRemaining             string
	HomeScore, AwayScore      int
	GameStatus                string
	Raw                       any // marshaled to JSON; nil skips the column
}

// InsertNbaLiveData appends one scoreboard observation.
func (s *Store) InsertNbaLiveData(ctx context.Context, r NbaLiveRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw any
	if r.Raw != nil {
		b, err := json.Marshal(r.Raw)
		if err != nil {
			return fmt.Errorf("marshal nba live raw_data: %w", err)
		}
		raw = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nba_live_data (game_id, timestamp, period, time_remaining, home_score, away_score, game_status, raw_data, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.GameID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.Period, r.TimeRemaining,
		r.HomeScore, r.AwayScore, r.GameStatus, raw, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert nba live data game=%d: %w", r.GameID, err)
	}
	return nil
}

// BettingOddsRow is one betting_odds row.
type BettingOddsRow struct {
	GameID                               int64
	NBAGameID                            string
	Timestamp                            time.Time
	Vendor                               string
	MoneylineHome, MoneylineAway         int
	SpreadHomeValue                      float64
	SpreadHomeOdds                       int
	SpreadAwayValue                      float64
	SpreadAwayOdds                       int
	TotalValue                           float64
	TotalOverOdds, TotalUnderOdds        int
}

// InsertBettingOdds appends one sportsbook-odds observation.
func (s *Store) InsertBettingOdds(ctx context.Context, o BettingOddsRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO betting_odds (game_id, nba_game_id, timestamp, vendor, moneyline_home, moneyline_away,
			spread_home_value, spread_home_odds, spread_away_value, spread_away_odds,
			total_value, total_over_odds, total_under_odds, created_at)
		VALUES (?,?,?,?,?,?, ?,?,?,?, ?,?,?,?)`,
		o.GameID, o.NBAGameID, o.Timestamp.UTC().Format(time.RFC3339Nano), o.Vendor,
		o.MoneylineHome, o.MoneylineAway,
		o.SpreadHomeValue, o.SpreadHomeOdds, o.SpreadAwayValue, o.SpreadAwayOdds,
		o.TotalValue, o.TotalOverOdds, o.TotalUnderOdds,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert betting odds game=%d vendor=%s: %w", o.GameID, o.Vendor, err)
	}
	return nil
}

// StrategyRecord is one strategies row.
type StrategyRecord struct {
	Name      string
	Type      string
	IsEnabled bool
	Config    any
}

// UpsertStrategy registers or updates a strategy's enabled flag and config.
func (s *Store) UpsertStrategy(ctx context.Context, r StrategyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg any
	if r.Config != nil {
		b, err := json.Marshal(r.Config)
		if err != nil {
			return fmt.Errorf("marshal strategy config: %w", err)
		}
		cfg = string(b)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO strategies (name, type, is_enabled, config, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET is_enabled=excluded.is_enabled, config=excluded.config, updated_at=excluded.updated_at`,
		r.Name, r.Type, boolToInt(r.IsEnabled), cfg, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert strategy %s: %w", r.Name, err)
	}
	return nil
}

// SaveOrder persists a simulated order. Satisfies execution.Persister.
// Idempotent on order_id so a retried write after a transport hiccup
// between the engine and the store never double-inserts the same fill
// (spec.md §4.7 step 7: "recoverable by replay").
func (s *Store) SaveOrder(ctx context.Context, o execution.SimulatedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var limitPrice, filledPrice any
	if o.LimitPrice != nil {
		limitPrice = o.LimitPrice.String()
	}
	if o.FillPrice != nil {
		filledPrice = o.FillPrice.String()
	}
	var filledAt any
	if !o.FilledAt.IsZero() {
		filledAt = o.FilledAt.UTC().Format(time.RFC3339Nano)
	}
	var signalData any
	if o.SignalMeta != nil {
		b, err := json.Marshal(o.SignalMeta)
		if err != nil {
			return fmt.Errorf("marshal signal_data for order %s: %w", o.OrderID, err)
		}
		signalData = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO simulated_orders (order_id, game_id, strategy_id, market_ticker, order_type, side, quantity,
			limit_price, filled_price, status, reject_reason, placed_at, filled_at, signal_data, created_at)
		VALUES (?,?,?,?,?,?,?, ?,?,?,?,?,?,?,?)
		ON CONFLICT(order_id) DO UPDATE SET
			filled_price=excluded.filled_price, status=excluded.status,
			reject_reason=excluded.reject_reason, filled_at=excluded.filled_at`,
		o.OrderID, o.GameID, o.StrategyID, o.MarketTicker, string(o.Kind), string(o.Side), o.Quantity,
		limitPrice, filledPrice, string(o.Status), o.RejectReason,
		o.PlacedAt.UTC().Format(time.RFC3339Nano), filledAt, signalData,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.OrderID, err)
	}
	return nil
}

// UpsertPosition persists the current state of a (strategy, market,
// side) position. Satisfies execution.Persister. Keyed the same way
// execution.Book is keyed, so a replay of the last row per key after a
// crash exactly reconstructs the in-memory book.
func (s *Store) UpsertPosition(ctx context.Context, p execution.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closedAt any
	if !p.ClosedAt.IsZero() {
		closedAt = p.ClosedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (game_id, strategy_id, market_ticker, side, quantity, avg_price, current_price,
			unrealized_pnl, realized_pnl, is_open, opened_at, closed_at, updated_at)
		VALUES (?,?,?,?,?,?,?, ?,?,?,?,?,?)
		ON CONFLICT(strategy_id, market_ticker, side) DO UPDATE SET
			game_id=excluded.game_id, quantity=excluded.quantity, avg_price=excluded.avg_price,
			current_price=excluded.current_price, unrealized_pnl=excluded.unrealized_pnl,
			realized_pnl=excluded.realized_pnl, is_open=excluded.is_open,
			opened_at=excluded.opened_at, closed_at=excluded.closed_at, updated_at=excluded.updated_at`,
		p.GameID, p.StrategyID, p.MarketTicker, string(p.Side), p.Quantity,
		p.AvgPrice.String(), p.CurrentPrice.String(), p.UnrealizedPnL.String(), p.RealizedPnL.String(),
		boolToInt(p.IsOpen), p.OpenedAt.UTC().Format(time.RFC3339Nano), closedAt,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert position %s/%s/%s: %w", p.StrategyID, p.MarketTicker, p.Side, err)
	}
	return nil
}

// StrategyPerformanceRow is one strategy_performance row — a periodic
// rollup snapshot, not a per-event write.
type StrategyPerformanceRow struct {
	StrategyID     string
	Timestamp      time.Time
	RealizedPnL    money.Cents
	UnrealizedPnL  money.Cents
	OpenPositions  int
	TotalOrders    int
	FilledOrders   int
	RejectedOrders int
}

// RecordStrategyPerformance appends one rollup snapshot for a strategy.
func (s *Store) RecordStrategyPerformance(ctx context.Context, r StrategyPerformanceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO strategy_performance (strategy_id, timestamp, realized_pnl, unrealized_pnl, open_positions, total_orders, filled_orders, rejected_orders, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.StrategyID, r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.RealizedPnL.String(), r.UnrealizedPnL.String(),
		r.OpenPositions, r.TotalOrders, r.FilledOrders, r.RejectedOrders,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record strategy performance %s: %w", r.StrategyID, err)
	}
	return nil
}

// RecordRiskLimits snapshots the active risk policy, so an operator can
// see exactly what limits were in force at any point in the run.
func (s *Store) RecordRiskLimits(ctx context.Context, l config.RiskLimits) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO risk_limits (max_contracts_per_market, max_contracts_per_game, max_total_contracts,
			max_daily_loss_cents, max_weekly_loss_cents, max_per_trade_risk_cents, max_total_exposure_cents,
			max_exposure_per_game_cents, max_exposure_per_strategy_cents, max_orders_per_day, max_orders_per_hour,
			loss_streak_threshold, loss_streak_cooldown_sec, effective_at)
		VALUES (?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?)`,
		l.MaxContractsPerMarket, l.MaxContractsPerGame, l.MaxTotalContracts,
		l.MaxDailyLossCents, l.MaxWeeklyLossCents, l.MaxPerTradeRiskCents, l.MaxTotalExposureCents,
		l.MaxExposurePerGameCents, l.MaxExposurePerStrategyCents, l.MaxOrdersPerDay, l.MaxOrdersPerHour,
		l.LossStreakThreshold, int(l.LossStreakCooldown.Seconds()), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record risk limits: %w", err)
	}
	return nil
}

// LogLevel names the severity recorded in system_logs.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// InsertSystemLog appends one row to the system_logs time series — the
// durable counterpart to telemetry's stderr stream (spec.md §7: "no
// exception escapes the pipeline into the HTTP/UI boundary" without
// also landing here for an operator to query later).
func (s *Store) InsertSystemLog(ctx context.Context, level LogLevel, component, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_logs (level, component, message, created_at) VALUES (?,?,?,?)`,
		string(level), component, message, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func centsOrNil(c *money.Cents) any {
	if c == nil {
		return nil
	}
	return c.String()
}

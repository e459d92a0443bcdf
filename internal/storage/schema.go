package storage

// schema is the eleven-table persisted schema (spec.md §6). SQLite lacks
// CASCADE by default without PRAGMA foreign_keys=ON, which Open enables
// before running this.
const schema = `
CREATE TABLE IF NOT EXISTS games (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	event_ticker  TEXT NOT NULL UNIQUE,
	ticker_seed   TEXT NOT NULL,
	nba_game_id   TEXT UNIQUE,
	home_team     TEXT NOT NULL,
	away_team     TEXT NOT NULL,
	home_team_id  TEXT NOT NULL DEFAULT '',
	away_team_id  TEXT NOT NULL DEFAULT '',
	game_date     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pregame',
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kalshi_markets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id      INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	ticker       TEXT NOT NULL UNIQUE,
	market_type  TEXT NOT NULL,
	strike_value TEXT,
	side         TEXT,
	status       TEXT NOT NULL DEFAULT 'active',
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orderbook_snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id  INTEGER NOT NULL REFERENCES kalshi_markets(id) ON DELETE CASCADE,
	timestamp  TEXT NOT NULL,
	yes_bid    TEXT,
	yes_ask    TEXT,
	no_bid     TEXT,
	no_ask     TEXT,
	yes_bid_size INTEGER,
	yes_ask_size INTEGER,
	no_bid_size  INTEGER,
	no_ask_size  INTEGER,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orderbook_market_ts ON orderbook_snapshots(market_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS nba_live_data (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id        INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	timestamp      TEXT NOT NULL,
	period         INTEGER NOT NULL,
	time_remaining TEXT NOT NULL DEFAULT '',
	home_score     INTEGER NOT NULL,
	away_score     INTEGER NOT NULL,
	game_status    TEXT NOT NULL,
	raw_data       TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nba_live_game_ts ON nba_live_data(game_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS betting_odds (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id              INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	nba_game_id          TEXT NOT NULL,
	timestamp            TEXT NOT NULL,
	vendor               TEXT NOT NULL,
	moneyline_home       INTEGER,
	moneyline_away       INTEGER,
	spread_home_value    REAL,
	spread_home_odds     INTEGER,
	spread_away_value    REAL,
	spread_away_odds     INTEGER,
	total_value          REAL,
	total_over_odds      INTEGER,
	total_under_odds     INTEGER,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_betting_odds_game_ts ON betting_odds(game_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS strategies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	is_enabled INTEGER NOT NULL DEFAULT 1,
	config     TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS simulated_orders (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id      TEXT NOT NULL UNIQUE,
	game_id       TEXT NOT NULL,
	strategy_id   TEXT NOT NULL,
	market_id     INTEGER,
	market_ticker TEXT NOT NULL,
	order_type    TEXT NOT NULL,
	side          TEXT NOT NULL,
	quantity      INTEGER NOT NULL,
	limit_price   TEXT,
	filled_price  TEXT,
	status        TEXT NOT NULL,
	reject_reason TEXT NOT NULL DEFAULT '',
	placed_at     TEXT NOT NULL,
	filled_at     TEXT,
	signal_data   TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_strategy_placed ON simulated_orders(strategy_id, placed_at DESC);

CREATE TABLE IF NOT EXISTS positions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id        TEXT NOT NULL,
	strategy_id    TEXT NOT NULL,
	market_id      INTEGER,
	market_ticker  TEXT NOT NULL,
	side           TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	avg_price      TEXT NOT NULL,
	current_price  TEXT,
	unrealized_pnl TEXT,
	realized_pnl   TEXT NOT NULL,
	is_open        INTEGER NOT NULL,
	opened_at      TEXT NOT NULL,
	closed_at      TEXT,
	updated_at     TEXT NOT NULL,
	UNIQUE(strategy_id, market_ticker, side)
);
CREATE INDEX IF NOT EXISTS idx_positions_strategy_open ON positions(strategy_id, is_open);

CREATE TABLE IF NOT EXISTS strategy_performance (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id      TEXT NOT NULL,
	timestamp        TEXT NOT NULL,
	realized_pnl     TEXT NOT NULL,
	unrealized_pnl   TEXT NOT NULL,
	open_positions   INTEGER NOT NULL,
	total_orders     INTEGER NOT NULL,
	filled_orders    INTEGER NOT NULL,
	rejected_orders  INTEGER NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_limits (
	id                              INTEGER PRIMARY KEY AUTOINCREMENT,
	max_contracts_per_market        INTEGER NOT NULL,
	max_contracts_per_game          INTEGER NOT NULL,
	max_total_contracts             INTEGER NOT NULL,
	max_daily_loss_cents            INTEGER NOT NULL,
	max_weekly_loss_cents           INTEGER NOT NULL,
	max_per_trade_risk_cents        INTEGER NOT NULL,
	max_total_exposure_cents        INTEGER NOT NULL,
	max_exposure_per_game_cents     INTEGER NOT NULL,
	max_exposure_per_strategy_cents INTEGER NOT NULL,
	max_orders_per_day              INTEGER NOT NULL,
	max_orders_per_hour             INTEGER NOT NULL,
	loss_streak_threshold           INTEGER NOT NULL,
	loss_streak_cooldown_sec        INTEGER NOT NULL,
	effective_at                    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS system_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	level      TEXT NOT NULL,
	component  TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_system_logs_created ON system_logs(created_at DESC);
`

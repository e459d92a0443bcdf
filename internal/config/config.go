package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, loaded once at startup from
// environment variables (with a .env file loaded first, if present).
type Config struct {
	// Exchange (Kalshi-style) REST + streaming endpoints and credentials.
	ExchangeMode    string // "demo" or "prod"
	ExchangeBaseURL string
	ExchangeWSURL   string
	ExchangeKeyID   string
	ExchangeKeyFile string // path to RSA PEM private key

	// Sports data feeds (scoreboard + sportsbook odds).
	SportsFeedBaseURL string
	SportsFeedAPIKey  string

	// Storage
	StoragePath string // sqlite DSN/path

	// Risk policy
	RiskLimitsPath string

	// StartingBankrollCents seeds the paper account's bankroll snapshot
	// (risk.BalanceCache); SharpLine's Kelly sizing reads against it.
	StartingBankrollCents int64

	// Cadence (spec.md §6 defaults)
	StrategyEvalInterval time.Duration
	NbaPollInterval      time.Duration
	OddsPollInterval     time.Duration

	// Rate limiting split (read vs. write request budgets against the
	// exchange REST API).
	ExchangeReadRPS  int
	ExchangeWriteRPS int

	// Alerting
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	mode := envStr("EXCHANGE_MODE", "prod")

	var keyID, keyFile, baseURL, wsURL string
	if mode == "prod" {
		keyID = envStr("PROD_KEYID", "")
		keyFile = envStr("PROD_KEYFILE", "")
		baseURL = envStr("EXCHANGE_BASE_URL", "https://api.elections.kalshi.com")
		wsURL = envStr("EXCHANGE_WS_URL", "wss://api.elections.kalshi.com/trade-api/ws/v2")
	} else {
		keyID = envStr("DEMO_KEYID", "")
		keyFile = envStr("DEMO_KEYFILE", "")
		baseURL = envStr("EXCHANGE_BASE_URL", "https://demo-api.kalshi.co")
		wsURL = envStr("EXCHANGE_WS_URL", "wss://demo-api.kalshi.co/trade-api/ws/v2")
	}

	return &Config{
		ExchangeMode:    mode,
		ExchangeBaseURL: baseURL,
		ExchangeWSURL:   wsURL,
		ExchangeKeyID:   keyID,
		ExchangeKeyFile: keyFile,

		SportsFeedBaseURL: envStr("SPORTSFEED_BASE_URL", ""),
		SportsFeedAPIKey:  envStr("SPORTSFEED_API_KEY", ""),

		StoragePath: envStr("STORAGE_PATH", "data/paperengine.db"),

		RiskLimitsPath: envStr("RISK_LIMITS_PATH", "internal/config/risk_limits.yaml"),

		StartingBankrollCents: int64(envInt("STARTING_BANKROLL_CENTS", 100000)),

		StrategyEvalInterval: time.Duration(envInt("STRATEGY_EVAL_INTERVAL_SEC", 2)) * time.Second,
		NbaPollInterval:      time.Duration(envInt("NBA_POLL_INTERVAL_SEC", 5)) * time.Second,
		OddsPollInterval:     time.Duration(envInt("ODDS_POLL_INTERVAL_SEC", 10)) * time.Second,

		ExchangeReadRPS:  envInt("EXCHANGE_READ_RPS", 10),
		ExchangeWriteRPS: envInt("EXCHANGE_WRITE_RPS", 5),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

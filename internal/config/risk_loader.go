package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RiskLimits is the single, process-wide risk policy (spec.md §6) loaded
// from YAML at startup. Unlike the teacher's per-sport/per-league lane
// limits, there is exactly one policy for the whole engine — the process
// trades one market (NBA game contracts on one exchange).
type RiskLimits struct {
	MaxContractsPerMarket int `yaml:"max_contracts_per_market"`
	MaxContractsPerGame   int `yaml:"max_contracts_per_game"`
	MaxTotalContracts     int `yaml:"max_total_contracts"`

	MaxDailyLossCents  int `yaml:"max_daily_loss_cents"`
	MaxWeeklyLossCents int `yaml:"max_weekly_loss_cents"`

	MaxPerTradeRiskCents        int `yaml:"max_per_trade_risk_cents"`
	MaxTotalExposureCents       int `yaml:"max_total_exposure_cents"`
	MaxExposurePerGameCents     int `yaml:"max_exposure_per_game_cents"`
	MaxExposurePerStrategyCents int `yaml:"max_exposure_per_strategy_cents"`

	MaxOrdersPerDay  int `yaml:"max_orders_per_day"`
	MaxOrdersPerHour int `yaml:"max_orders_per_hour"`

	LossStreakThreshold int           `yaml:"loss_streak_threshold"`
	LossStreakCooldown  time.Duration `yaml:"loss_streak_cooldown"`
}

// DefaultRiskLimits mirrors spec.md §6's stated defaults (dollar figures
// converted to cents). Used when no risk_limits.yaml is present so the
// engine never starts unguarded.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxContractsPerMarket: 100,
		MaxContractsPerGame:   200,
		MaxTotalContracts:     500,

		MaxDailyLossCents:  1000,
		MaxWeeklyLossCents: 5000,

		MaxPerTradeRiskCents:        500,
		MaxTotalExposureCents:       10000,
		MaxExposurePerGameCents:     2000,
		MaxExposurePerStrategyCents: 3000,

		MaxOrdersPerDay:  50,
		MaxOrdersPerHour: 20,

		LossStreakThreshold: 3,
		LossStreakCooldown:  5 * time.Minute,
	}
}

// LoadRiskLimits reads a YAML risk policy, falling back to
// DefaultRiskLimits when path does not exist.
func LoadRiskLimits(path string) (RiskLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRiskLimits(), nil
		}
		return RiskLimits{}, fmt.Errorf("read risk limits: %w", err)
	}

	limits := DefaultRiskLimits()
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return RiskLimits{}, fmt.Errorf("parse risk limits: %w", err)
	}
	return limits, nil
}

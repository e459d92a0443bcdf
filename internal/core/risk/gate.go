package risk

import (
	"strconv"
	"time"

	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/telemetry"
)

// LimitType names which §4.6 check rejected an order, echoed back on the
// SimulatedOrder row per spec.md §7.
type LimitType string

const (
	LimitCooldown              LimitType = "loss_streak_cooldown"
	LimitContractsPerMarket     LimitType = "max_contracts_per_market"
	LimitContractsPerGame       LimitType = "max_contracts_per_game"
	LimitTotalContracts         LimitType = "max_total_contracts"
	LimitPerTradeRisk           LimitType = "max_per_trade_risk"
	LimitExposurePerGame        LimitType = "max_exposure_per_game"
	LimitExposurePerStrategy    LimitType = "max_exposure_per_strategy"
	LimitTotalExposure          LimitType = "max_total_exposure"
	LimitOrdersPerHour          LimitType = "max_orders_per_hour"
	LimitOrdersPerDay           LimitType = "max_orders_per_day"
	LimitDailyLoss              LimitType = "max_daily_loss"
	LimitWeeklyLoss             LimitType = "max_weekly_loss"
)

// worstCaseLossPerContract is the maximum a single contract can lose:
// buying at any price can only go to zero, so the worst case is the
// full $1 payout never landing (spec.md §6).
var worstCaseLossPerContract = money.NewCents(100)

// Positions is the read-only view of the open position book (component
// C7) that Gate needs to evaluate contract-count and exposure limits.
// ExecutionEngine's book satisfies this; Gate never mutates it.
type Positions interface {
	ContractsInMarket(marketTicker string) int
	ContractsInGame(gameID string) int
	TotalContracts() int
	ExposureInGame(gameID string) money.Cents
	ExposureInStrategy(strategyID string) money.Cents
	TotalExposure() money.Cents
}

// Order is the subset of a proposed SimulatedOrder that Gate needs to
// evaluate (spec.md §4.6).
type Order struct {
	StrategyID   string
	GameID       string
	MarketTicker string
	Quantity     int
}

// Decision is the outcome of Check (spec.md §4.6).
type Decision struct {
	Approved  bool
	LimitType LimitType
	Current   string
	Limit     string
	Reason    string
}

func approved() Decision { return Decision{Approved: true} }

func rejected(kind LimitType, current, limit, reason string) Decision {
	return Decision{Approved: false, LimitType: kind, Current: current, Limit: limit, Reason: reason}
}

// Gate is the pre-trade validator and post-trade recorder (component
// C6). It exclusively owns one Account.
type Gate struct {
	limits  config.RiskLimits
	account *Account
	enabled bool
}

func NewGate(limits config.RiskLimits) *Gate {
	return &Gate{limits: limits, account: NewAccount(), enabled: true}
}

// SetEnabled toggles the gate. Disabling is allowed but logged; while
// disabled, Check always approves but Record still accrues (spec.md §4.6).
func (g *Gate) SetEnabled(enabled bool) {
	if enabled != g.enabled {
		telemetry.Warnf("risk_gate: enabled=%v (was %v)", enabled, g.enabled)
	}
	g.enabled = enabled
}

// Check evaluates order against the fixed-order limit checks of spec.md
// §4.6, short-circuiting on the first failure.
func (g *Gate) Check(order Order, positions Positions) Decision {
	if !g.enabled {
		return approved()
	}

	now := time.Now()
	snap := g.account.Snapshot(now)

	// 1. loss-streak cooldown
	if snap.ConsecutiveLosses >= g.limits.LossStreakThreshold && now.Before(snap.CooldownUntil) {
		return rejected(LimitCooldown, snap.CooldownUntil.Format(time.RFC3339),
			now.Format(time.RFC3339), "loss-streak cooldown active")
	}

	worstCase := worstCaseLossPerContract.Mul(money.NewCents(int64(order.Quantity)))

	// 2. per-market contracts
	if g.limits.MaxContractsPerMarket > 0 {
		cur := positions.ContractsInMarket(order.MarketTicker) + order.Quantity
		if cur > g.limits.MaxContractsPerMarket {
			return rejected(LimitContractsPerMarket, strconv.Itoa(cur), strconv.Itoa(g.limits.MaxContractsPerMarket),
				"would exceed max contracts per market")
		}
	}

	// 3. per-game contracts
	if g.limits.MaxContractsPerGame > 0 {
		cur := positions.ContractsInGame(order.GameID) + order.Quantity
		if cur > g.limits.MaxContractsPerGame {
			return rejected(LimitContractsPerGame, strconv.Itoa(cur), strconv.Itoa(g.limits.MaxContractsPerGame),
				"would exceed max contracts per game")
		}
	}

	// 4. total contracts
	if g.limits.MaxTotalContracts > 0 {
		cur := positions.TotalContracts() + order.Quantity
		if cur > g.limits.MaxTotalContracts {
			return rejected(LimitTotalContracts, strconv.Itoa(cur), strconv.Itoa(g.limits.MaxTotalContracts),
				"would exceed max total contracts")
		}
	}

	// 5. per-trade risk
	if g.limits.MaxPerTradeRiskCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxPerTradeRiskCents))
		if worstCase.GreaterThan(limit) {
			return rejected(LimitPerTradeRisk, worstCase.String(), limit.String(),
				"single order worst-case loss exceeds per-trade risk limit")
		}
	}

	// 6. exposure sums (game / strategy / total)
	if g.limits.MaxExposurePerGameCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxExposurePerGameCents))
		cur := positions.ExposureInGame(order.GameID).Add(worstCase)
		if cur.GreaterThan(limit) {
			return rejected(LimitExposurePerGame, cur.String(), limit.String(),
				"would exceed max exposure per game")
		}
	}
	if g.limits.MaxExposurePerStrategyCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxExposurePerStrategyCents))
		cur := positions.ExposureInStrategy(order.StrategyID).Add(worstCase)
		if cur.GreaterThan(limit) {
			return rejected(LimitExposurePerStrategy, cur.String(), limit.String(),
				"would exceed max exposure per strategy")
		}
	}
	if g.limits.MaxTotalExposureCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxTotalExposureCents))
		cur := positions.TotalExposure().Add(worstCase)
		if cur.GreaterThan(limit) {
			return rejected(LimitTotalExposure, cur.String(), limit.String(),
				"would exceed max total exposure")
		}
	}

	// 7. order-rate counters
	if g.limits.MaxOrdersPerHour > 0 && snap.OrdersThisHour+1 > g.limits.MaxOrdersPerHour {
		return rejected(LimitOrdersPerHour, strconv.Itoa(snap.OrdersThisHour+1), strconv.Itoa(g.limits.MaxOrdersPerHour),
			"would exceed max orders per hour")
	}
	if g.limits.MaxOrdersPerDay > 0 && snap.OrdersToday+1 > g.limits.MaxOrdersPerDay {
		return rejected(LimitOrdersPerDay, strconv.Itoa(snap.OrdersToday+1), strconv.Itoa(g.limits.MaxOrdersPerDay),
			"would exceed max orders per day")
	}

	// 8. daily/weekly loss
	if g.limits.MaxDailyLossCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxDailyLossCents))
		cur := snap.DailyLoss.Add(worstCase)
		if cur.GreaterThan(limit) {
			return rejected(LimitDailyLoss, snap.DailyLoss.String(), limit.String(),
				"would exceed max daily loss")
		}
	}
	if g.limits.MaxWeeklyLossCents > 0 {
		limit := money.NewCents(int64(g.limits.MaxWeeklyLossCents))
		cur := snap.WeeklyLoss.Add(worstCase)
		if cur.GreaterThan(limit) {
			return rejected(LimitWeeklyLoss, snap.WeeklyLoss.String(), limit.String(),
				"would exceed max weekly loss")
		}
	}

	return approved()
}

// Record accrues an approved order's effects onto the account: order
// counters always increment; realizedDelta (cents, signed) is folded
// into the loss accumulators and the loss-streak counter when a
// position closes or settles. realizedDelta is zero on open (spec.md §4.6).
func (g *Gate) Record(realizedDelta money.Cents) {
	now := time.Now()
	g.account.mu.Lock()
	defer g.account.mu.Unlock()

	g.account.rollBuckets(now)
	g.account.ordersToday++
	g.account.orderTimestamps = append(g.account.orderTimestamps, now)
	g.account.ordersInLastHour(now)

	if realizedDelta.IsZero() {
		return
	}
	g.account.realizedPnL = g.account.realizedPnL.Add(realizedDelta)

	if realizedDelta.IsNegative() {
		loss := realizedDelta.Neg()
		g.account.dailyLoss = g.account.dailyLoss.Add(loss)
		g.account.weeklyLoss = g.account.weeklyLoss.Add(loss)
		g.account.consecutiveLosses++
		if g.account.consecutiveLosses >= g.limits.LossStreakThreshold {
			g.account.cooldownUntil = now.Add(g.limits.LossStreakCooldown)
		}
		return
	}
	g.account.consecutiveLosses = 0
}

// Snapshot exposes the current account state, e.g. for logging/telemetry.
func (g *Gate) Snapshot() Snapshot { return g.account.Snapshot(time.Now()) }

// RealizedPnL returns the account's cumulative signed realized P&L,
// read by BalanceCache to derive a bankroll snapshot.
func (g *Gate) RealizedPnL() money.Cents {
	g.account.mu.Lock()
	defer g.account.mu.Unlock()
	return g.account.realizedPnL
}


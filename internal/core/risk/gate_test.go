package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/money"
)

type fakePositions struct {
	contractsByMarket map[string]int
	contractsByGame   map[string]int
	total             int
	exposureByGame    map[string]money.Cents
	exposureByStrat   map[string]money.Cents
	totalExposure     money.Cents
}

func (f fakePositions) ContractsInMarket(t string) int         { return f.contractsByMarket[t] }
func (f fakePositions) ContractsInGame(g string) int           { return f.contractsByGame[g] }
func (f fakePositions) TotalContracts() int                    { return f.total }
func (f fakePositions) ExposureInGame(g string) money.Cents    { return f.exposureByGame[g] }
func (f fakePositions) ExposureInStrategy(s string) money.Cents { return f.exposureByStrat[s] }
func (f fakePositions) TotalExposure() money.Cents             { return f.totalExposure }

func emptyPositions() fakePositions {
	return fakePositions{
		contractsByMarket: map[string]int{},
		contractsByGame:   map[string]int{},
		exposureByGame:    map[string]money.Cents{},
		exposureByStrat:   map[string]money.Cents{},
		totalExposure:     money.NewCents(0),
	}
}

// S3: max_daily_loss=1000; daily_loss already at 600; a qty-5 order
// (worst-case 500) would push the total to 1100 > 1000, so it rejects.
func TestCheckRejectsOnDailyLoss(t *testing.T) {
	limits := config.DefaultRiskLimits()
	limits.MaxDailyLossCents = 1000
	g := NewGate(limits)
	g.account.dailyLoss = money.NewCents(600)

	order := Order{StrategyID: "s1", GameID: "g1", MarketTicker: "T1", Quantity: 5}
	decision := g.Check(order, emptyPositions())

	assert.False(t, decision.Approved)
	assert.Equal(t, LimitDailyLoss, decision.LimitType)
}

func TestCheckApprovesWithinLimits(t *testing.T) {
	g := NewGate(config.DefaultRiskLimits())
	order := Order{StrategyID: "s1", GameID: "g1", MarketTicker: "T1", Quantity: 1}
	decision := g.Check(order, emptyPositions())
	require.True(t, decision.Approved)
}

func TestCheckRejectsPerMarketContracts(t *testing.T) {
	limits := config.DefaultRiskLimits()
	limits.MaxContractsPerMarket = 10
	g := NewGate(limits)

	pos := emptyPositions()
	pos.contractsByMarket["T1"] = 8
	decision := g.Check(Order{GameID: "g1", MarketTicker: "T1", Quantity: 5}, pos)

	assert.False(t, decision.Approved)
	assert.Equal(t, LimitContractsPerMarket, decision.LimitType)
}

func TestRecordTracksLossStreakAndCooldown(t *testing.T) {
	limits := config.DefaultRiskLimits()
	limits.LossStreakThreshold = 2
	g := NewGate(limits)

	g.Record(money.NewCents(-100))
	assert.Equal(t, 1, g.Snapshot().ConsecutiveLosses)

	g.Record(money.NewCents(-100))
	snap := g.Snapshot()
	assert.Equal(t, 2, snap.ConsecutiveLosses)
	assert.True(t, snap.CooldownUntil.After(time.Now()))

	decision := g.Check(Order{GameID: "g1", MarketTicker: "T1", Quantity: 1}, emptyPositions())
	assert.False(t, decision.Approved)
	assert.Equal(t, LimitCooldown, decision.LimitType)
}

func TestRecordResetsStreakOnWin(t *testing.T) {
	g := NewGate(config.DefaultRiskLimits())
	g.Record(money.NewCents(-100))
	g.Record(money.NewCents(100))
	assert.Equal(t, 0, g.Snapshot().ConsecutiveLosses)
}

func TestDisabledGateAlwaysApproves(t *testing.T) {
	limits := config.DefaultRiskLimits()
	limits.MaxTotalContracts = 1
	g := NewGate(limits)
	g.SetEnabled(false)

	pos := emptyPositions()
	pos.total = 100
	decision := g.Check(Order{GameID: "g1", MarketTicker: "T1", Quantity: 50}, pos)
	assert.True(t, decision.Approved)
}

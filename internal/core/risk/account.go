// Package risk is the stateful pre-trade validator and post-trade
// recorder (component C6). RiskGate owns the single process-wide
// RiskAccount exclusively — every mutation is serialized through it, the
// same single-writer discipline the aggregator (C4) applies to
// GameState and the execution engine (C7) applies to the position book.
//
// The rolling counters here are a direct generalization of the teacher's
// per-lane atomic guards (internal/core/execution/lanes: RiskGuard's
// open-order ceiling, SpendGuard's cumulative cap, Throttle's
// last-touched timestamp) from a per-(sport,league) shape into the flat,
// single-policy RiskAccount spec.md §3/§6 describes.
package risk

import (
	"sync"
	"time"

	"github.com/nbapaper/engine/internal/core/money"
)

// Account is the process-wide risk accumulator (spec.md §3 RiskAccount).
// All fields are mutated only through Gate, which holds the single
// mutex guarding them.
type Account struct {
	mu sync.Mutex

	dailyLoss   money.Cents
	dailyBucket time.Time // start-of-day (UTC) this dailyLoss covers

	weeklyLoss   money.Cents
	weeklyBucket time.Time // start-of-week (Monday UTC) this weeklyLoss covers

	ordersToday     int
	ordersTodayDate time.Time

	orderTimestamps []time.Time // pruned to the trailing hour on access

	consecutiveLosses int
	cooldownUntil     time.Time

	// realizedPnL is the cumulative signed P&L across the account's
	// whole lifetime (never rolled over), unlike dailyLoss/weeklyLoss
	// which reset on their calendar bucket. BalanceCache reads this to
	// derive a current bankroll snapshot.
	realizedPnL money.Cents
}

// NewAccount returns a freshly reset RiskAccount.
func NewAccount() *Account {
	now := time.Now().UTC()
	return &Account{
		dailyLoss:       money.NewCents(0),
		dailyBucket:     startOfDayUTC(now),
		weeklyLoss:      money.NewCents(0),
		weeklyBucket:    startOfWeekUTC(now),
		ordersTodayDate: startOfDayUTC(now),
		realizedPnL:     money.NewCents(0),
	}
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeekUTC returns the most recent Monday 00:00 UTC at or before t.
func startOfWeekUTC(t time.Time) time.Time {
	day := startOfDayUTC(t)
	// time.Weekday: Sunday=0 ... Saturday=6. Days since Monday:
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// rollBuckets resets daily/weekly accumulators and order-today counter
// when their calendar bucket has rolled over. Caller must hold mu.
func (a *Account) rollBuckets(now time.Time) {
	now = now.UTC()
	if sod := startOfDayUTC(now); sod.After(a.dailyBucket) {
		a.dailyLoss = money.NewCents(0)
		a.dailyBucket = sod
	}
	if sow := startOfWeekUTC(now); sow.After(a.weeklyBucket) {
		a.weeklyLoss = money.NewCents(0)
		a.weeklyBucket = sow
	}
	if sod := startOfDayUTC(now); sod.After(a.ordersTodayDate) {
		a.ordersToday = 0
		a.ordersTodayDate = sod
	}
}

// ordersInLastHour prunes and counts the rolling hourly order window.
// Caller must hold mu.
func (a *Account) ordersInLastHour(now time.Time) int {
	cutoff := now.Add(-1 * time.Hour)
	kept := a.orderTimestamps[:0]
	for _, ts := range a.orderTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	a.orderTimestamps = kept
	return len(a.orderTimestamps)
}

// Snapshot is a read-only view of the account's current accumulators,
// used by Check for limit comparisons and by callers for display.
type Snapshot struct {
	DailyLoss         money.Cents
	WeeklyLoss        money.Cents
	OrdersToday       int
	OrdersThisHour    int
	ConsecutiveLosses int
	CooldownUntil     time.Time
}

// Snapshot returns the account's current state as of now, rolling over
// any expired calendar buckets first.
func (a *Account) Snapshot(now time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollBuckets(now)
	return Snapshot{
		DailyLoss:         a.dailyLoss,
		WeeklyLoss:        a.weeklyLoss,
		OrdersToday:       a.ordersToday,
		OrdersThisHour:    a.ordersInLastHour(now),
		ConsecutiveLosses: a.consecutiveLosses,
		CooldownUntil:     a.cooldownUntil,
	}
}

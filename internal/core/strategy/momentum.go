package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/core/tickergrammar"
)

const momentumHistoryCap = 100

// MomentumConfig holds the documented defaults for the Momentum kind
// (spec.md §4.5.2).
type MomentumConfig struct {
	LookbackSeconds      int
	MinPriceChangeCents  money.Cents
	PositionSize         int
	CooldownMinutes      int
	MaxSpreadCents       money.Cents
	MarketTypes          []string
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		LookbackSeconds:     120,
		MinPriceChangeCents: money.NewCents(5),
		PositionSize:        10,
		CooldownMinutes:     3,
		MaxSpreadCents:      money.NewCents(3),
		MarketTypes:         []string{"moneyline", "spread", "total"},
	}
}

type midObservation struct {
	at  time.Time
	mid money.Cents
}

// Momentum follows short-horizon mid-price moves on any configured
// market kind (spec.md §4.5.2).
type Momentum struct {
	*base
	cfg MomentumConfig

	histMu  sync.Mutex
	history map[string][]midObservation // market ticker -> bounded deque
}

func NewMomentum(id string, cfg MomentumConfig) *Momentum {
	return &Momentum{
		base:    newBase(id, KindMomentum),
		cfg:     cfg,
		history: make(map[string][]midObservation),
	}
}

func (s *Momentum) Evaluate(gs gamestate.GameState) ([]TradeSignal, error) {
	if !s.Enabled() {
		return nil, nil
	}
	now := time.Now()
	var out []TradeSignal

	for ticker, mv := range gs.Markets {
		mt, err := tickergrammar.ParseMarketTicker(ticker)
		if err != nil {
			continue
		}
		if !matchesMarketType(mt.Kind, s.cfg.MarketTypes) {
			continue
		}
		mid, ok := mv.MidOK()
		if !ok {
			continue
		}
		hist := s.appendHistory(ticker, now, mid)
		if s.onCooldown(ticker, now) {
			continue
		}

		target := now.Add(-time.Duration(s.cfg.LookbackSeconds) * time.Second)
		historical, found := closestObservation(hist, target, s.cfg.LookbackSeconds)
		if !found {
			continue
		}

		if mv.YesBidSet && mv.YesAskSet {
			spread := mv.YesAsk.Sub(mv.YesBid)
			if spread.GreaterThan(s.cfg.MaxSpreadCents) {
				continue
			}
		}

		delta := mid.Sub(historical.mid)
		if delta.Abs().LessThan(s.cfg.MinPriceChangeCents) {
			continue
		}

		var side Side
		var entry money.Cents
		switch {
		case delta.GreaterThan(decimal.Zero):
			side = SideYes
			if mv.YesAskSet {
				entry = mv.YesAsk
			} else {
				entry = mid
			}
		default:
			side = SideNo
			switch {
			case mv.NoAskSet:
				entry = mv.NoAsk
			case mv.YesBidSet:
				entry = decimal.NewFromInt(100).Sub(mv.YesBid)
			default:
				entry = decimal.NewFromInt(100).Sub(mid)
			}
		}

		sig := TradeSignal{
			StrategyID:   s.ID(),
			StrategyKind: KindMomentum,
			GameID:       gs.GameID,
			MarketTicker: ticker,
			Side:         side,
			Quantity:     s.cfg.PositionSize,
			Confidence:   clampProb(delta.Abs().Div(decimal.NewFromInt(100))),
			Reason:       fmt.Sprintf("momentum: %s moved %s over %ds (entry %s)", ticker, delta.String(), s.cfg.LookbackSeconds, entry.String()),
			Metadata: map[string]any{
				"delta_cents":    delta.String(),
				"historical_at":  historical.at,
				"historical_mid": historical.mid.String(),
			},
			EmittedAt: now,
		}
		s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
		out = append(out, sig)
	}
	return out, nil
}

// appendHistory records the current mid observation for ticker, trimming
// the deque to momentumHistoryCap (spec.md §4.5.2), and returns a copy.
func (s *Momentum) appendHistory(ticker string, now time.Time, mid money.Cents) []midObservation {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	h := append(s.history[ticker], midObservation{at: now, mid: mid})
	if len(h) > momentumHistoryCap {
		h = h[len(h)-momentumHistoryCap:]
	}
	s.history[ticker] = h
	out := make([]midObservation, len(h))
	copy(out, h)
	return out
}

// closestObservation finds the observation nearest target, requiring it
// to lie within 50% of the lookback window (spec.md §4.5.2).
func closestObservation(hist []midObservation, target time.Time, lookbackSeconds int) (midObservation, bool) {
	if len(hist) == 0 {
		return midObservation{}, false
	}
	tolerance := time.Duration(lookbackSeconds) * time.Second / 2
	best := hist[0]
	bestDiff := absDuration(best.at.Sub(target))
	for _, o := range hist[1:] {
		diff := absDuration(o.at.Sub(target))
		if diff < bestDiff {
			best = o
			bestDiff = diff
		}
	}
	if bestDiff > tolerance {
		return midObservation{}, false
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/oddsmath"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/core/tickergrammar"
)

// SharpLineConfig holds the documented defaults for component C5's
// SharpLine kind (spec.md §4.5.1).
type SharpLineConfig struct {
	ThresholdPercent     decimal.Decimal
	MinSampleSportsbooks int
	PositionSize         int
	CooldownMinutes      int
	MinEVPercent         decimal.Decimal
	MarketTypes          []string
	UseKellySizing       bool
	KellyFraction        decimal.Decimal
	// BankrollUnits plumbs spec.md §9's undefined "bankroll" reference:
	// an explicit, cents-denominated size cap for Kelly sizing. Zero
	// (the default) disables Kelly sizing regardless of UseKellySizing.
	BankrollUnits money.Cents
}

func DefaultSharpLineConfig() SharpLineConfig {
	return SharpLineConfig{
		ThresholdPercent:     decimal.NewFromFloat(5.0),
		MinSampleSportsbooks: 3,
		PositionSize:         10,
		CooldownMinutes:      5,
		MinEVPercent:         decimal.NewFromFloat(2.0),
		MarketTypes:          []string{"moneyline"},
		UseKellySizing:       false,
		KellyFraction:        decimal.NewFromFloat(0.25),
		BankrollUnits:        money.NewCents(0),
	}
}

// SharpLine detects persistent divergence between the exchange mid and
// the sportsbook consensus implied probability (spec.md §4.5.1).
type SharpLine struct {
	*base
	cfg SharpLineConfig

	bankrollMu sync.RWMutex
}

func NewSharpLine(id string, cfg SharpLineConfig) *SharpLine {
	return &SharpLine{base: newBase(id, KindSharpLine), cfg: cfg}
}

// SetBankroll updates the Kelly-sizing bankroll reference used by the
// next Evaluate call. The composition root calls this periodically
// from a risk.BalanceCache snapshot (spec.md §9's "bankroll" reference
// has no single owner, so the bankroll value lives outside the
// strategy and is pushed in rather than read live on every tick); a
// dedicated mutex guards just this field since it's written from a
// different goroutine than Evaluate runs on.
func (s *SharpLine) SetBankroll(units money.Cents) {
	s.bankrollMu.Lock()
	defer s.bankrollMu.Unlock()
	s.cfg.BankrollUnits = units
}

func (s *SharpLine) bankroll() money.Cents {
	s.bankrollMu.RLock()
	defer s.bankrollMu.RUnlock()
	return s.cfg.BankrollUnits
}

func (s *SharpLine) Evaluate(gs gamestate.GameState) ([]TradeSignal, error) {
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
		if mt.Kind != tickergrammar.MoneylineHome && mt.Kind != tickergrammar.MoneylineAway {
			continue
		}
		if !matchesMarketType(mt.Kind, s.cfg.MarketTypes) {
			continue
		}
		if !mv.YesBidSet || !mv.YesAskSet {
			continue
		}
		if s.onCooldown(ticker, now) {
			continue
		}

		probs := s.vendorProbs(gs, mt.Kind)
		if len(probs) < s.cfg.MinSampleSportsbooks {
			continue
		}
		pCons := oddsmath.Consensus(probs)

		mid := money.Mid(mv.YesBid, mv.YesAsk)
		pExch := money.ToProb(mid)
		divergence := pCons.Sub(pExch)
		divergencePercent := divergence.Mul(decimal.NewFromInt(100)).Abs()
		if divergencePercent.LessThan(s.cfg.ThresholdPercent) {
			continue
		}

		var side Side
		var entry money.Cents
		var truthProb decimal.Decimal
		if divergence.GreaterThan(decimal.Zero) {
			side = SideYes
			entry = mv.YesAsk
			truthProb = pCons
		} else {
			side = SideNo
			truthProb = decimal.NewFromInt(1).Sub(pCons)
			switch {
			case mv.NoAskSet:
				entry = mv.NoAsk
			case mv.YesBidSet:
				entry = decimal.NewFromInt(100).Sub(mv.YesBid)
			default:
				continue
			}
		}

		evPercent := oddsmath.EVPercent(truthProb, entry)
		if evPercent.LessThan(s.cfg.MinEVPercent) {
			continue
		}

		qty := s.cfg.PositionSize
		bankroll := s.bankroll()
		if s.cfg.UseKellySizing && bankroll.GreaterThan(decimal.Zero) {
			kf := oddsmath.KellyFraction(truthProb, entry)
			raw := s.cfg.KellyFraction.Mul(kf).Mul(bankroll)
			qty = int(raw.Floor().IntPart())
			if qty < 0 {
				qty = 0
			}
			if qty > s.cfg.PositionSize {
				qty = s.cfg.PositionSize
			}
		}
		if qty <= 0 {
			continue
		}

		sig := TradeSignal{
			StrategyID:   s.ID(),
			StrategyKind: KindSharpLine,
			GameID:       gs.GameID,
			MarketTicker: ticker,
			Side:         side,
			Quantity:     qty,
			Confidence:   clampProb(pCons),
			Reason: fmt.Sprintf("sharpline: consensus %.4f vs exchange %.4f (%.2f%% divergence, %.2f%% EV)",
				f64(pCons), f64(pExch), f64(divergencePercent), f64(evPercent)),
			Metadata: map[string]any{
				"consensus_prob": pCons.String(),
				"exchange_prob":  pExch.String(),
				"ev_percent":     evPercent.String(),
				"sample_size":    len(probs),
			},
			EmittedAt: now,
		}
		s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
		out = append(out, sig)
	}
	return out, nil
}

// vendorProbs collects every vendor's implied probability of the
// outcome this market's "yes" side represents (spec.md §4.5.1 step 2).
func (s *SharpLine) vendorProbs(gs gamestate.GameState, kind tickergrammar.MarketKind) []decimal.Decimal {
	var probs []decimal.Decimal
	for _, book := range gs.Books {
		odds := book.MoneylineHomeOdds
		if kind == tickergrammar.MoneylineAway {
			odds = book.MoneylineAwayOdds
		}
		p, err := oddsmath.AmericanToProb(odds)
		if err != nil {
			continue
		}
		probs = append(probs, p)
	}
	return probs
}

func clampProb(p decimal.Decimal) decimal.Decimal {
	return money.Clamp(p, decimal.Zero, decimal.NewFromInt(1))
}

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

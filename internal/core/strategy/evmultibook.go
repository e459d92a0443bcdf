package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/oddsmath"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/core/tickergrammar"
)

// EvMultiBookConfig holds the documented defaults for the EvMultiBook
// kind (spec.md §4.5.3).
type EvMultiBookConfig struct {
	MinEVPercent           decimal.Decimal
	MinSportsbooksAgreeing int
	PositionSize           int
	CooldownMinutes        int
	PreferredBooks         []string
	ExcludeBooks           []string
	MarketTypes            []string
}

func DefaultEvMultiBookConfig() EvMultiBookConfig {
	return EvMultiBookConfig{
		MinEVPercent:           decimal.NewFromFloat(3.0),
		MinSportsbooksAgreeing: 2,
		PositionSize:           10,
		CooldownMinutes:        5,
		PreferredBooks:         nil,
		ExcludeBooks:           nil,
		MarketTypes:            []string{"moneyline"},
	}
}

// EvMultiBook requires independent agreement among multiple sportsbooks
// on +EV against the exchange (spec.md §4.5.3).
type EvMultiBook struct {
	*base
	cfg EvMultiBookConfig
}

func NewEvMultiBook(id string, cfg EvMultiBookConfig) *EvMultiBook {
	return &EvMultiBook{base: newBase(id, KindEvMultiBook), cfg: cfg}
}

type bookEV struct {
	book  string
	evYes decimal.Decimal
	evNo  decimal.Decimal
}

func (s *EvMultiBook) Evaluate(gs gamestate.GameState) ([]TradeSignal, error) {
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
		if !mv.YesAskSet || !mv.NoAskSet {
			continue
		}
		if s.onCooldown(ticker, now) {
			continue
		}

		var evs []bookEV
		for name, bq := range gs.Books {
			if !s.included(name) {
				continue
			}
			odds := bq.MoneylineHomeOdds
			if mt.Kind == tickergrammar.MoneylineAway {
				odds = bq.MoneylineAwayOdds
			}
			p, err := oddsmath.AmericanToProb(odds)
			if err != nil {
				continue
			}
			evYes := oddsmath.EVPercent(p, mv.YesAsk)
			evNo := oddsmath.EVPercent(money.One().Sub(p), mv.NoAsk)
			evs = append(evs, bookEV{book: name, evYes: evYes, evNo: evNo})
		}

		yesCount, bestYesBook, bestYesEV := countAgreeing(evs, s.cfg.MinEVPercent, true)
		noCount, bestNoBook, bestNoEV := countAgreeing(evs, s.cfg.MinEVPercent, false)

		var side Side
		var entry money.Cents
		var bestBook string
		var bestEV decimal.Decimal
		var contributing int
		switch {
		case yesCount >= s.cfg.MinSportsbooksAgreeing && (yesCount > noCount || (yesCount == noCount && bestYesEV.GreaterThanOrEqual(bestNoEV))):
			side, entry, bestBook, bestEV, contributing = SideYes, mv.YesAsk, bestYesBook, bestYesEV, yesCount
		case noCount >= s.cfg.MinSportsbooksAgreeing:
			side, entry, bestBook, bestEV, contributing = SideNo, mv.NoAsk, bestNoBook, bestNoEV, noCount
		default:
			continue
		}

		sig := TradeSignal{
			StrategyID:   s.ID(),
			StrategyKind: KindEvMultiBook,
			GameID:       gs.GameID,
			MarketTicker: ticker,
			Side:         side,
			Quantity:     s.cfg.PositionSize,
			Confidence:   money.Clamp(bestEV.Div(money.NewCents(100)), money.NewCents(0), money.NewCents(1)),
			Reason:       fmt.Sprintf("evmultibook: %d books agree on %s at entry %s (best %s %.2f%%)", contributing, side, entry.String(), bestBook, f64(bestEV)),
			Metadata: map[string]any{
				"best_book":   bestBook,
				"best_ev":     bestEV.String(),
				"agree_count": contributing,
			},
			EmittedAt: now,
		}
		s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
		out = append(out, sig)
	}
	return out, nil
}

// included reports whether a book name passes the preferred/exclude
// filters (spec.md §4.5.3: "after applying preferred/exclude filters").
func (s *EvMultiBook) included(book string) bool {
	for _, b := range s.cfg.ExcludeBooks {
		if b == book {
			return false
		}
	}
	if len(s.cfg.PreferredBooks) == 0 {
		return true
	}
	for _, b := range s.cfg.PreferredBooks {
		if b == book {
			return true
		}
	}
	return false
}

// countAgreeing counts vendors whose EV on the requested side clears
// threshold, tracking the single best-EV contributor.
func countAgreeing(evs []bookEV, threshold decimal.Decimal, yes bool) (count int, bestBook string, bestEV decimal.Decimal) {
	for _, e := range evs {
		v := e.evNo
		if yes {
			v = e.evYes
		}
		if v.GreaterThanOrEqual(threshold) {
			count++
			if bestBook == "" || v.GreaterThan(bestEV) {
				bestEV = v
				bestBook = e.book
			}
		}
	}
	return count, bestBook, bestEV
}

package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/state/gamestate"
	"github.com/nbapaper/engine/internal/core/tickergrammar"
)

// CorrelationConfig holds the documented defaults for the Correlation
// kind (spec.md §4.5.5).
type CorrelationConfig struct {
	MinDiscrepancyPercent decimal.Decimal
	ComplementaryMaxSum   decimal.Decimal
	ComplementaryMinSum   decimal.Decimal
	PositionSize          int
	CooldownMinutes       int
	CheckComplementary    bool
	CheckMoneylineSpread  bool
	PreferNoOnOvervalued  bool
}

func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		MinDiscrepancyPercent: decimal.NewFromFloat(5.0),
		ComplementaryMaxSum:   decimal.NewFromFloat(105.0),
		ComplementaryMinSum:   decimal.NewFromFloat(95.0),
		PositionSize:          10,
		CooldownMinutes:       5,
		CheckComplementary:    true,
		CheckMoneylineSpread:  true,
		PreferNoOnOvervalued:  true,
	}
}

// Correlation exploits arithmetic inconsistencies between related
// markets of the same game (spec.md §4.5.5).
//
// Check B's linear moneyline<->spread mapping is an explicitly
// documented placeholder in the source; its confidence is capped below
// the level a direct mid-vs-consensus divergence would earn.
type Correlation struct {
	*base
	cfg CorrelationConfig
}

// checkBConfidenceCap bounds Check B signal confidence (spec.md §9: the
// linear spread<->moneyline approximation is a documented placeholder,
// so its signals are treated as lower-confidence than Check A's).
var checkBConfidenceCap = decimal.NewFromFloat(0.5)

func NewCorrelation(id string, cfg CorrelationConfig) *Correlation {
	return &Correlation{base: newBase(id, KindCorrelation), cfg: cfg}
}

func (s *Correlation) Evaluate(gs gamestate.GameState) ([]TradeSignal, error) {
	if !s.Enabled() {
		return nil, nil
	}
	now := time.Now()
	var out []TradeSignal

	if s.cfg.CheckComplementary {
		if sig, ok := s.checkComplementary(gs, now); ok {
			out = append(out, sig)
		}
	}
	if s.cfg.CheckMoneylineSpread {
		out = append(out, s.checkMoneylineSpread(gs, now)...)
	}
	return out, nil
}

// checkComplementary implements Check A (spec.md §4.5.5): home_yes +
// away_yes should sum to ~100; a sum above complementary_max_sum means
// at least one side is overpriced.
func (s *Correlation) checkComplementary(gs gamestate.GameState, now time.Time) (TradeSignal, bool) {
	homeTicker, homeMV := findMarket(gs, tickergrammar.MoneylineHome)
	awayTicker, awayMV := findMarket(gs, tickergrammar.MoneylineAway)
	if homeMV == nil || awayMV == nil {
		return TradeSignal{}, false
	}
	if !homeMV.YesAskSet || !awayMV.YesAskSet {
		return TradeSignal{}, false
	}

	sumPct := homeMV.YesAsk.Add(awayMV.YesAsk)
	if sumPct.LessThanOrEqual(s.cfg.ComplementaryMaxSum) {
		return TradeSignal{}, false
	}
	if !s.cfg.PreferNoOnOvervalued {
		return TradeSignal{}, false
	}

	ticker := homeTicker
	overvaluedAsk := homeMV.YesAsk
	if awayMV.YesAsk.GreaterThan(homeMV.YesAsk) {
		ticker = awayTicker
		overvaluedAsk = awayMV.YesAsk
	}
	if s.onCooldown(ticker, now) {
		return TradeSignal{}, false
	}

	entry := money.NewCents(100).Sub(overvaluedAsk)
	sig := TradeSignal{
		StrategyID:   s.ID(),
		StrategyKind: KindCorrelation,
		GameID:       gs.GameID,
		MarketTicker: ticker,
		Side:         SideNo,
		Quantity:     s.cfg.PositionSize,
		Confidence:   money.NewCents(1),
		Reason:       fmt.Sprintf("correlation: complementary sum %.1f%% > %.1f%%, No on overvalued side at %s", f64(sumPct), f64(s.cfg.ComplementaryMaxSum), entry.String()),
		Metadata: map[string]any{
			"sum_pct":     sumPct.String(),
			"home_ticker": homeTicker,
			"away_ticker": awayTicker,
		},
		EmittedAt: now,
	}
	s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
	return sig, true
}

// checkMoneylineSpread implements Check B (spec.md §4.5.5): a linear
// approximation mapping moneyline probability onto the favored team's
// spread-market probability.
func (s *Correlation) checkMoneylineSpread(gs gamestate.GameState, now time.Time) []TradeSignal {
	var out []TradeSignal
	for ticker, mv := range gs.Markets {
		mt, err := tickergrammar.ParseMarketTicker(ticker)
		if err != nil || mt.Kind != tickergrammar.Spread {
			continue
		}
		mlKind := tickergrammar.MoneylineHome
		if mt.Favored != "" && mt.Favored != gs.HomeAbbr {
			mlKind = tickergrammar.MoneylineAway
		}
		_, mlMV := findMarket(gs, mlKind)
		if mlMV == nil {
			continue
		}
		mlProb, ok := mlMV.ImpliedProbOK()
		if !ok {
			continue
		}
		spreadProb, ok := mv.ImpliedProbOK()
		if !ok {
			continue
		}
		if s.onCooldown(ticker, now) {
			continue
		}

		mlPct := mlProb.Mul(decimal.NewFromInt(100))
		actualPct := spreadProb.Mul(decimal.NewFromInt(100))
		expectedPct := decimal.NewFromInt(50).Add(mlPct.Sub(decimal.NewFromInt(50)).Mul(decimal.NewFromFloat(0.5)))
		discrepancy := actualPct.Sub(expectedPct)
		discAbs := discrepancy.Abs()
		if discAbs.LessThan(s.cfg.MinDiscrepancyPercent) {
			continue
		}

		var side Side
		var entry money.Cents
		if discrepancy.GreaterThan(decimal.Zero) {
			side = SideNo
			switch {
			case mv.NoAskSet:
				entry = mv.NoAsk
			case mv.YesBidSet:
				entry = money.NewCents(100).Sub(mv.YesBid)
			default:
				continue
			}
		} else {
			side = SideYes
			if !mv.YesAskSet {
				continue
			}
			entry = mv.YesAsk
		}

		conf := discAbs.Div(decimal.NewFromInt(100))
		if conf.GreaterThan(checkBConfidenceCap) {
			conf = checkBConfidenceCap
		}

		sig := TradeSignal{
			StrategyID:   s.ID(),
			StrategyKind: KindCorrelation,
			GameID:       gs.GameID,
			MarketTicker: ticker,
			Side:         side,
			Quantity:     s.cfg.PositionSize,
			Confidence:   clampProb(conf),
			Reason:       fmt.Sprintf("correlation: spread prob %.1f%% vs expected %.1f%% (discrepancy %.1f%%), entry %s", f64(actualPct), f64(expectedPct), f64(discrepancy), entry.String()),
			Metadata: map[string]any{
				"actual_spread_prob_pct":   actualPct.String(),
				"expected_spread_prob_pct": expectedPct.String(),
				"moneyline_prob_pct":       mlPct.String(),
			},
			EmittedAt: now,
		}
		s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
		out = append(out, sig)
	}
	return out
}

// findMarket returns the first market ticker/view of the given kind.
func findMarket(gs gamestate.GameState, kind tickergrammar.MarketKind) (string, *gamestate.MarketView) {
	for ticker, mv := range gs.Markets {
		mt, err := tickergrammar.ParseMarketTicker(ticker)
		if err != nil {
			continue
		}
		if mt.Kind == kind {
			return ticker, mv
		}
	}
	return "", nil
}

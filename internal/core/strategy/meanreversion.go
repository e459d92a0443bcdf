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

// MeanReversionConfig holds the documented defaults for the
// MeanReversion kind (spec.md §4.5.4).
type MeanReversionConfig struct {
	MinReversionPercent decimal.Decimal
	MaxReversionPercent decimal.Decimal
	MinTimeRemainingPct float64
	PositionSize        int
	CooldownMinutes     int
	OnlyFirstHalf       bool
	MarketTypes         []string
	MaxScoreDeficit     int
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		MinReversionPercent: decimal.NewFromFloat(15.0),
		MaxReversionPercent: decimal.NewFromFloat(40.0),
		MinTimeRemainingPct: 25.0,
		PositionSize:        10,
		CooldownMinutes:     10,
		OnlyFirstHalf:       true,
		MarketTypes:         []string{"moneyline"},
		MaxScoreDeficit:     20,
	}
}

// MeanReversion fades large intragame swings away from a pregame anchor
// price captured at the moment a game first goes live (spec.md §4.5.4).
// Per the open question on loaded-mid-live games (spec.md §9), the
// anchor is whatever mid is first observed while the game is live — not
// a reconstruction of the true pregame price.
type MeanReversion struct {
	*base
	cfg MeanReversionConfig

	pregameMu sync.Mutex
	pregame   map[string]money.Cents // market ticker -> anchor price
}

func NewMeanReversion(id string, cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{
		base:    newBase(id, KindMeanReversion),
		cfg:     cfg,
		pregame: make(map[string]money.Cents),
	}
}

func (s *MeanReversion) Evaluate(gs gamestate.GameState) ([]TradeSignal, error) {
	if !s.Enabled() {
		return nil, nil
	}
	now := time.Now()

	for ticker, mv := range gs.Markets {
		mid, ok := mv.MidOK()
		if !ok {
			continue
		}
		if gs.Phase == gamestate.PhaseInProgress {
			s.captureAnchor(ticker, mid)
		}
	}

	if gs.Phase != gamestate.PhaseInProgress {
		return nil, nil
	}

	var out []TradeSignal
	for ticker, mv := range gs.Markets {
		mt, err := tickergrammar.ParseMarketTicker(ticker)
		if err != nil {
			continue
		}
		if !matchesMarketType(mt.Kind, s.cfg.MarketTypes) {
			continue
		}
		if s.cfg.OnlyFirstHalf && gs.Period > 2 {
			continue
		}
		if abs(gs.HomeScore-gs.AwayScore) > s.cfg.MaxScoreDeficit {
			continue
		}
		if s.onCooldown(ticker, now) {
			continue
		}

		anchor, ok := s.anchorFor(ticker)
		if !ok {
			continue
		}
		mid, ok := mv.MidOK()
		if !ok {
			continue
		}

		swing := mid.Sub(anchor)
		swingAbs := swing.Abs()
		if swingAbs.LessThan(s.cfg.MinReversionPercent) || swingAbs.GreaterThan(s.cfg.MaxReversionPercent) {
			continue
		}

		remainingPct := estimateTimeRemainingPct(gs.Period, gs.Clock)
		if remainingPct < s.cfg.MinTimeRemainingPct {
			continue
		}

		var side Side
		var entry money.Cents
		if swing.LessThan(decimal.Zero) {
			side = SideYes
			if mv.YesAskSet {
				entry = mv.YesAsk
			} else {
				entry = mid
			}
		} else {
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
			StrategyKind: KindMeanReversion,
			GameID:       gs.GameID,
			MarketTicker: ticker,
			Side:         side,
			Quantity:     s.cfg.PositionSize,
			Confidence:   clampProb(swingAbs.Div(s.cfg.MaxReversionPercent)),
			Reason:       fmt.Sprintf("meanreversion: swing %s vs anchor %s, entry %s", swing.String(), anchor.String(), entry.String()),
			Metadata: map[string]any{
				"pregame_price": anchor.String(),
				"swing_cents":   swing.String(),
				"period":        gs.Period,
			},
			EmittedAt: now,
		}
		s.emit(sig, ticker, time.Duration(s.cfg.CooldownMinutes)*time.Minute, now)
		out = append(out, sig)
	}
	return out, nil
}

func (s *MeanReversion) captureAnchor(ticker string, mid money.Cents) {
	s.pregameMu.Lock()
	defer s.pregameMu.Unlock()
	if _, ok := s.pregame[ticker]; !ok {
		s.pregame[ticker] = mid
	}
}

func (s *MeanReversion) anchorFor(ticker string) (money.Cents, bool) {
	s.pregameMu.Lock()
	defer s.pregameMu.Unlock()
	v, ok := s.pregame[ticker]
	return v, ok
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// estimateTimeRemainingPct approximates the fraction of a 4-quarter game
// remaining from the current period and clock string ("MM:SS").
func estimateTimeRemainingPct(period int, clock string) float64 {
	const periods = 4
	if period <= 0 {
		return 100
	}
	if period > periods {
		return 0
	}
	periodFracRemaining := clockFraction(clock)
	periodsFullyRemaining := periods - period
	remaining := float64(periodsFullyRemaining) + periodFracRemaining
	return (remaining / float64(periods)) * 100
}

// clockFraction parses an "MM:SS" clock into the fraction of a 12-minute
// period still remaining. Unparseable clocks are treated as 0 remaining
// for this period (conservative: favors skipping the signal).
func clockFraction(clock string) float64 {
	var m, sec int
	if _, err := fmt.Sscanf(clock, "%d:%d", &m, &sec); err != nil {
		return 0
	}
	total := float64(m)*60 + float64(sec)
	return total / (12 * 60)
}

// Package gamestate is the fused per-game view (component C3): one
// GameState merges the exchange orderbook, the live scoreboard, and the
// sportsbook consensus odds for a single NBA game into the single
// structure every strategy (C5) reads.
package gamestate

import (
	"github.com/shopspring/decimal"

	"github.com/nbapaper/engine/internal/core/errs"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/oddsmath"
	"github.com/nbapaper/engine/internal/events"
)

var errNoOdds = errs.New(errs.DataUnavailable, "no sportsbook odds recorded for this game")

const (
	PhasePregame    = "pregame"
	PhaseInProgress = "in_progress"
	PhaseFinal      = "final"
)

// MarketView is the latest reconciled orderbook view for one market
// ticker belonging to this game.
type MarketView struct {
	Ticker string
	YesBid money.Cents
	YesAsk money.Cents
	NoBid  money.Cents
	NoAsk  money.Cents
	// *Set flags distinguish a genuinely absent level from a level
	// resting at 0¢ — spec.md §8's "orderbook with only one side
	// defined" boundary case.
	YesBidSet bool
	YesAskSet bool
	NoBidSet  bool
	NoAskSet  bool
	Stale     bool
}

// ImpliedProb returns the midpoint-derived implied probability of the
// yes side for this market, assuming both sides are present. Callers
// that must honor the one-sided boundary case (spec.md §8) should use
// MidOK/ImpliedProbOK instead.
func (m MarketView) ImpliedProb() money.Prob {
	mid := money.Mid(m.YesBid, m.YesAsk)
	return money.ToProb(mid)
}

// MidOK returns the yes-side mid price, honoring presence: the average
// of both sides when both are defined, the single present side when
// only one is, or ok=false when neither is (spec.md §4.3/§8).
func (m MarketView) MidOK() (money.Cents, bool) {
	switch {
	case m.YesBidSet && m.YesAskSet:
		return money.Mid(m.YesBid, m.YesAsk), true
	case m.YesBidSet:
		return m.YesBid, true
	case m.YesAskSet:
		return m.YesAsk, true
	default:
		return money.Cents{}, false
	}
}

// ImpliedProbOK is the presence-aware counterpart to ImpliedProb.
func (m MarketView) ImpliedProbOK() (money.Prob, bool) {
	mid, ok := m.MidOK()
	if !ok {
		return money.Prob{}, false
	}
	return money.ToProb(mid), true
}

// BookQuote is the latest odds line from one sportsbook.
type BookQuote struct {
	Book              string
	MoneylineHomeOdds int
	MoneylineAwayOdds int
	SpreadFavored     string
	SpreadValue       decimal.Decimal
	TotalValue        decimal.Decimal
}

// GameState is the fused view for one NBA game.
type GameState struct {
	GameID      string // opaque identity assigned by the aggregator (C4)
	EventTicker string // exchange event ticker, unique
	NBAGameID   string
	HomeAbbr    string
	AwayAbbr    string

	Phase     string
	HomeScore int
	AwayScore int
	Period    int
	Clock     string

	Markets map[string]*MarketView
	Books   map[string]BookQuote // keyed by sportsbook name
}

func New(nbaGameID, homeAbbr, awayAbbr string) *GameState {
	return &GameState{
		NBAGameID: nbaGameID,
		HomeAbbr:  homeAbbr,
		AwayAbbr:  awayAbbr,
		Phase:     PhasePregame,
		Markets:   make(map[string]*MarketView),
		Books:     make(map[string]BookQuote),
	}
}

// ApplyOrderbook folds an exchange orderbook update into the market view
// for its ticker and returns the affected ticker.
func (g *GameState) ApplyOrderbook(ev events.OrderbookUpdateEvent) []string {
	mv, ok := g.Markets[ev.Ticker]
	if !ok {
		mv = &MarketView{Ticker: ev.Ticker}
		g.Markets[ev.Ticker] = mv
	}
	mv.YesBid = ev.YesBid
	mv.YesAsk = ev.YesAsk
	mv.NoBid = ev.NoBid
	mv.NoAsk = ev.NoAsk
	mv.YesBidSet = ev.YesBidSet
	mv.YesAskSet = ev.YesAskSet
	mv.NoBidSet = ev.NoBidSet
	mv.NoAskSet = ev.NoAskSet
	mv.Stale = ev.Stale
	return []string{ev.Ticker}
}

// ApplyNba folds a scoreboard poll into the game's score/period/clock and
// returns every ticker whose pricing depends on game state (all of them,
// since strategies reference the live score directly).
func (g *GameState) ApplyNba(ev events.NbaUpdateEvent) []string {
	g.HomeScore = ev.HomeScore
	g.AwayScore = ev.AwayScore
	g.Period = ev.Period
	g.Clock = ev.Clock
	return g.allTickers()
}

// ApplyOdds folds a sportsbook-odds poll into the consensus view and
// returns every ticker (consensus feeds every strategy's EV calc).
func (g *GameState) ApplyOdds(ev events.OddsUpdateEvent) []string {
	g.Books[ev.Book] = BookQuote{
		Book:              ev.Book,
		MoneylineHomeOdds: ev.MoneylineHomeOdd,
		MoneylineAwayOdds: ev.MoneylineAwayOdd,
		SpreadFavored:     ev.SpreadFavored,
		SpreadValue:       ev.SpreadValue,
		TotalValue:        ev.TotalValue,
	}
	return g.allTickers()
}

// SetPhase transitions the game's lifecycle phase. Returns the old phase
// and whether it actually changed, so the caller can decide whether to
// publish a StateChangeEvent.
func (g *GameState) SetPhase(newPhase string) (old string, changed bool) {
	old = g.Phase
	if old == newPhase {
		return old, false
	}
	g.Phase = newPhase
	return old, true
}

func (g *GameState) allTickers() []string {
	out := make([]string, 0, len(g.Markets))
	for t := range g.Markets {
		out = append(out, t)
	}
	return out
}

// ConsensusHomeProb returns the median implied probability of the home
// team winning across every tracked sportsbook's moneyline.
func (g *GameState) ConsensusHomeProb() (money.Prob, error) {
	probs := make([]money.Prob, 0, len(g.Books))
	for _, b := range g.Books {
		p, err := oddsmath.AmericanToProb(b.MoneylineHomeOdds)
		if err != nil {
			continue
		}
		probs = append(probs, p)
	}
	if len(probs) == 0 {
		return money.Prob{}, errNoOdds
	}
	return oddsmath.Consensus(probs), nil
}

// Package tickergrammar is the pure ticker parser (§6).
// It is explicitly out of the pipeline's core per spec.md §1's non-goals
// ("ticker-string parsing for event discovery ... a pure function with a
// documented contract") — every exported function here is side-effect
// free and safe to unit test in isolation, in the same spirit as the
// teacher's internal/core/ticker/normalize.go.
package tickergrammar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/nbapaper/engine/internal/core/errs"
)

const eventPrefix = "KXNBAGAME-"

var monthAbbrev = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// EventTicker is the decomposition of `KXNBAGAME-YYmmmDD{AAA}{HHH}`.
type EventTicker struct {
	Raw      string
	Date     time.Time // year/month/day only, UTC
	AwayAbbr string    // 3-letter, upper
	HomeAbbr string    // 3-letter, upper
}

// ParseEventTicker accepts common casing variants (input is normalized to
// upper before parsing) and decomposes the ticker into date + team pair.
func ParseEventTicker(raw string) (EventTicker, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(upper, eventPrefix) {
		return EventTicker{}, errs.Wrap(errs.DataUnavailable, "ticker missing KXNBAGAME- prefix", errs.NotFound)
	}
	rest := upper[len(eventPrefix):]
	// rest = YYmmmDD{AAA}{HHH}, a fixed 7 + 3 + 3 = 13 character layout.
	if len(rest) < 13 {
		return EventTicker{}, errs.Wrap(errs.DataUnavailable, "ticker date/team segment too short", errs.NotFound)
	}
	datePart := rest[:7]
	teamPart := rest[7:]
	if len(teamPart) != 6 {
		return EventTicker{}, errs.Wrap(errs.DataUnavailable, "ticker team segment must be 6 characters", errs.NotFound)
	}

	date, err := parseYYmmmDD(datePart)
	if err != nil {
		return EventTicker{}, errs.Wrap(errs.DataUnavailable, "ticker date segment invalid", err)
	}

	return EventTicker{
		Raw:      upper,
		Date:     date,
		AwayAbbr: teamPart[:3],
		HomeAbbr: teamPart[3:],
	}, nil
}

// parseYYmmmDD parses a 7-character YYmmmDD token, e.g. "25NOV04".
func parseYYmmmDD(s string) (time.Time, error) {
	if len(s) != 7 {
		return time.Time{}, fmt.Errorf("expected 7 characters, got %d", len(s))
	}
	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year digits %q: %w", s[:2], err)
	}
	mon := s[2:5]
	monthIdx := -1
	for i, abbrev := range monthAbbrev {
		if abbrev == mon {
			monthIdx = i
			break
		}
	}
	if monthIdx < 0 {
		return time.Time{}, fmt.Errorf("invalid month abbreviation %q", mon)
	}
	dd, err := strconv.Atoi(s[5:7])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day digits %q: %w", s[5:7], err)
	}
	year := 2000 + yy
	return time.Date(year, time.Month(monthIdx+1), dd, 0, 0, 0, 0, time.UTC), nil
}

// MarketKind mirrors §3's Market.kind enum.
type MarketKind string

const (
	MoneylineHome MarketKind = "moneyline_home"
	MoneylineAway MarketKind = "moneyline_away"
	Spread        MarketKind = "spread"
	Total         MarketKind = "total"
)

// MarketTicker is the decomposition of a market ticker appended to an
// event ticker: "-Y"/"-N" (moneyline sides), "-SPREAD-{TEAM}{value}", or
// "-TOTAL-{O|U}{value}".
type MarketTicker struct {
	Raw      string
	Event    EventTicker
	Kind     MarketKind
	Side     string  // "yes" or "no", when applicable
	Strike   float64 // spread/total strike value, zero otherwise
	HasSide  bool
	Favored  string // team abbreviation for spread markets
	OverUnder string // "O" or "U" for total markets
}

// ParseMarketTicker parses a full market ticker (event portion plus a
// recognized suffix). Casing is tolerant; the event portion must satisfy
// ParseEventTicker.
func ParseMarketTicker(raw string) (MarketTicker, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	// A moneyline ticker is the event ticker plus a "-Y" (home) or "-N"
	// (away) suffix. NBA markets are two-outcome, so Kalshi issues one
	// ticker per team rather than one ticker per side; the suffix names
	// which team's contract this is, and each ticker's own orderbook
	// already carries both yes_* and no_* levels (§3 OrderbookState).
	if strings.HasSuffix(upper, "-Y") || strings.HasSuffix(upper, "-N") {
		base := upper[:len(upper)-2]
		evt, err := ParseEventTicker(base)
		if err != nil {
			return MarketTicker{}, err
		}
		kind := MoneylineHome
		if strings.HasSuffix(upper, "-N") {
			kind = MoneylineAway
		}
		return MarketTicker{Raw: upper, Event: evt, Kind: kind, Side: "yes", HasSide: true}, nil
	}

	if i := strings.Index(upper, "-SPREAD-"); i >= 0 {
		evt, err := ParseEventTicker(upper[:i])
		if err != nil {
			return MarketTicker{}, err
		}
		tail := upper[i+len("-SPREAD-"):]
		team, val, err := splitTeamValue(tail)
		if err != nil {
			return MarketTicker{}, errs.Wrap(errs.DataUnavailable, "spread ticker suffix invalid", err)
		}
		return MarketTicker{Raw: upper, Event: evt, Kind: Spread, Favored: team, Strike: val}, nil
	}

	if i := strings.Index(upper, "-TOTAL-"); i >= 0 {
		evt, err := ParseEventTicker(upper[:i])
		if err != nil {
			return MarketTicker{}, err
		}
		tail := upper[i+len("-TOTAL-"):]
		if len(tail) < 2 {
			return MarketTicker{}, errs.New(errs.DataUnavailable, "total ticker suffix too short")
		}
		ou := tail[:1]
		if ou != "O" && ou != "U" {
			return MarketTicker{}, errs.New(errs.DataUnavailable, "total ticker must start with O or U")
		}
		val, err := strconv.ParseFloat(tail[1:], 64)
		if err != nil {
			return MarketTicker{}, errs.Wrap(errs.DataUnavailable, "total ticker value invalid", err)
		}
		return MarketTicker{Raw: upper, Kind: Total, OverUnder: ou, Strike: val, Event: evt}, nil
	}

	return MarketTicker{}, errs.New(errs.DataUnavailable, "unrecognized market ticker suffix")
}

func splitTeamValue(tail string) (team string, value float64, err error) {
	// team abbreviation is alphabetic, value is the trailing numeric run.
	i := len(tail)
	for i > 0 && isValueChar(tail[i-1]) {
		i--
	}
	if i == 0 || i == len(tail) {
		return "", 0, fmt.Errorf("no team/value split found in %q", tail)
	}
	team = tail[:i]
	value, err = strconv.ParseFloat(tail[i:], 64)
	return team, value, err
}

func isValueChar(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == '-'
}

// Matching contract (§4.2): extract {date, away_abbr, home_abbr} from an
// event ticker, used by SportsFeed to find the one NBA game whose date and
// team abbreviations match after case-fold. Ambiguity is the caller's
// responsibility to detect (multiple matches => errs.NotFound).
type MatchKey struct {
	Date     time.Time
	AwayAbbr string
	HomeAbbr string
}

// ExtractMatchKey is the documented pure helper named in §4.2.
func ExtractMatchKey(eventTicker string) (MatchKey, error) {
	et, err := ParseEventTicker(eventTicker)
	if err != nil {
		return MatchKey{}, err
	}
	return MatchKey{Date: et.Date, AwayAbbr: et.AwayAbbr, HomeAbbr: et.HomeAbbr}, nil
}

// MatchCandidate is one candidate game offered by SportsFeed for matching.
type MatchCandidate struct {
	NBAGameID string
	HomeAbbr  string
	AwayAbbr  string
}

// Match finds the single candidate whose home/away abbreviations equal the
// key's after case-fold. Zero or more than one match fails with
// errs.NotFound — ambiguity is never resolved by guessing (§4.2).
func Match(key MatchKey, candidates []MatchCandidate) (MatchCandidate, error) {
	var found []MatchCandidate
	for _, c := range candidates {
		if NormalizeAbbr(c.HomeAbbr) == NormalizeAbbr(key.HomeAbbr) && NormalizeAbbr(c.AwayAbbr) == NormalizeAbbr(key.AwayAbbr) {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return MatchCandidate{}, errs.NotFound
	}
	return found[0], nil
}

// NormalizeAbbr strips diacritics and case-folds a team abbreviation
// before comparison. The exchange's ticker grammar only ever emits
// plain ASCII, but the sports feed is a third party and occasionally
// echoes back accented city/team names, so the two sides of a match
// are normalized the same way rather than trusting either to be ASCII.
func NormalizeAbbr(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(strings.TrimSpace(b.String()))
}

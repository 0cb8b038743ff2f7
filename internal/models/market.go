package models

import (
	"fmt"
	"strings"
)

// Sport identifies a league handled by the engine
type Sport string

const (
	SportMLB Sport = "mlb"
	SportNHL Sport = "nhl"
)

// Stat identifies the counted player statistic
type Stat string

const (
	StatStrikeouts Stat = "strikeouts"
	StatShots      Stat = "shots"
	StatGoals      Stat = "goals"
	StatAssists    Stat = "assists"
)

// Market is a (sport, stat) pair. Every artifact, table and cache key is scoped by one.
type Market struct {
	Sport Sport
	Stat  Stat
}

var supportedMarkets = map[Sport][]Stat{
	SportMLB: {StatStrikeouts},
	SportNHL: {StatShots, StatGoals, StatAssists},
}

// ParseMarket validates a sport/stat combination
func ParseMarket(sport, stat string) (Market, error) {
	s := Sport(strings.ToLower(strings.TrimSpace(sport)))
	k := Stat(strings.ToLower(strings.TrimSpace(stat)))

	stats, ok := supportedMarkets[s]
	if !ok {
		return Market{}, fmt.Errorf("unknown sport %q", sport)
	}
	for _, candidate := range stats {
		if candidate == k {
			return Market{Sport: s, Stat: k}, nil
		}
	}
	return Market{}, fmt.Errorf("unknown stat %q for sport %s", stat, s)
}

// ParseMarketKey parses "<sport>:<stat>" or "<sport>_<stat>"
func ParseMarketKey(key string) (Market, error) {
	sep := ":"
	if !strings.Contains(key, sep) {
		sep = "_"
	}
	parts := strings.SplitN(key, sep, 2)
	if len(parts) != 2 {
		return Market{}, fmt.Errorf("invalid market key %q", key)
	}
	return ParseMarket(parts[0], parts[1])
}

// Key returns the "<sport>_<stat>" form used in paths
func (m Market) Key() string {
	return fmt.Sprintf("%s_%s", m.Sport, m.Stat)
}

func (m Market) String() string {
	return m.Key()
}

// IsPitching reports whether the subjects are pitchers (per-start rates, pitch-count volume)
func (m Market) IsPitching() bool {
	return m.Sport == SportMLB
}

package features

import (
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/models"
)

// Lookup holds per-player and per-team rolling snapshots for serving without recomputation.
// Snapshots cover every game dated before AsOf.
type Lookup struct {
	Market  string                           `json:"market"`
	AsOf    time.Time                        `json:"as_of"`
	Players map[string]models.PlayerSnapshot `json:"players"`
	Teams   map[string]models.TeamDay        `json:"teams"`
}

// Covers reports whether the snapshot can serve a game on date without leaking or going stale
func (l Lookup) Covers(date time.Time) bool {
	return !l.AsOf.IsZero() && !truncateDay(date).Before(l.AsOf)
}

// Snapshot captures the latest rolling window per player and profile per team.
// AsOf is the day after the most recent indexed game.
func (b *Builder) Snapshot(h *History) Lookup {
	var latest time.Time
	for _, games := range h.players {
		if last := games[len(games)-1].GameDate; last.After(latest) {
			latest = last
		}
	}
	l := Lookup{
		Market:  b.market.Key(),
		Players: make(map[string]models.PlayerSnapshot),
		Teams:   make(map[string]models.TeamDay),
	}
	if latest.IsZero() {
		return l
	}
	l.AsOf = truncateDay(latest).AddDate(0, 0, 1)

	for _, id := range h.Players() {
		games := h.players[id]
		w, ok := b.summarize(games)
		if !ok {
			continue
		}
		last := games[len(games)-1]
		l.Players[id] = models.PlayerSnapshot{
			PlayerID:   id,
			PlayerName: last.PlayerName,
			Team:       last.Team,
			AsOf:       l.AsOf,
			Games:      w.games,
			RateL10:    w.rate,
			VolumeL10:  w.volume,
		}
	}
	l.Teams = h.teams.Snapshot(l.AsOf)
	return l
}

// FromLookup builds rows from snapshots. Targets dated before the snapshot are dropped
// as future-dated relative to the snapshot window.
func (b *Builder) FromLookup(l Lookup, targets []Target) Result {
	res := Result{Dropped: make(map[string]int)}
	sorted := append([]Target(nil), targets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PlayerID < sorted[j].PlayerID })

	for _, t := range sorted {
		if !l.Covers(t.GameDate) {
			res.Dropped[DropFutureDated]++
			continue
		}
		ps, ok := l.Players[t.PlayerID]
		if !ok {
			res.Dropped[DropInsufficientHistory]++
			continue
		}
		td, ok := l.Teams[models.NormalizeName(t.Opponent)]
		if !ok {
			res.Dropped[DropMissingOpponent]++
			continue
		}
		w := windowStats{games: ps.Games, rate: ps.RateL10, volume: ps.VolumeL10}
		res.Rows = append(res.Rows, b.row(t, w, td))
	}
	return res
}

package features

import (
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/models"
)

type teamGame struct {
	date    time.Time
	allowed float64
	volume  float64
}

// TeamIndex answers strictly-past defensive questions per team.
// A team's "allowed" count for a game is the stat total recorded by opposing players against it
// (strikeouts suffered by its batters, shots its skaters allowed). Hockey games run sixty
// regulation minutes, so allowed per game stands in for allowed per 60.
type TeamIndex struct {
	games map[string][]teamGame
	// prefix sums aligned with games; index i covers games[:i]
	allowed map[string][]float64
	volume  map[string][]float64
}

// NewTeamIndex aggregates player lines by the normalized name of the team they were recorded against
func NewTeamIndex(m models.Market, history []models.PlayerGame) *TeamIndex {
	type key struct {
		team string
		date string
	}
	agg := make(map[key]*teamGame)
	for _, pg := range history {
		if pg.Opponent == "" {
			continue
		}
		k := key{team: models.NormalizeName(pg.Opponent), date: pg.GameDate.Format(models.DateLayout)}
		g, ok := agg[k]
		if !ok {
			g = &teamGame{date: pg.GameDate}
			agg[k] = g
		}
		g.allowed += float64(pg.StatCount(m.Stat))
		g.volume += pg.Volume(m)
	}

	idx := &TeamIndex{
		games:   make(map[string][]teamGame),
		allowed: make(map[string][]float64),
		volume:  make(map[string][]float64),
	}
	for k, g := range agg {
		idx.games[k.team] = append(idx.games[k.team], *g)
	}
	for team, games := range idx.games {
		sort.Slice(games, func(i, j int) bool { return games[i].date.Before(games[j].date) })
		allowed := make([]float64, len(games)+1)
		volume := make([]float64, len(games)+1)
		for i, g := range games {
			allowed[i+1] = allowed[i] + g.allowed
			volume[i+1] = volume[i] + g.volume
		}
		idx.allowed[team] = allowed
		idx.volume[team] = volume
	}
	return idx
}

// AsOf returns the team's profile over games dated strictly before asOf
func (idx *TeamIndex) AsOf(team string, asOf time.Time) (models.TeamDay, bool) {
	team = models.NormalizeName(team)
	games := idx.games[team]
	n := sort.Search(len(games), func(i int) bool { return !games[i].date.Before(asOf) })
	if n == 0 {
		return models.TeamDay{}, false
	}
	return models.TeamDay{
		Team:           team,
		AsOf:           asOf,
		Games:          n,
		AllowedPerGame: idx.allowed[team][n] / float64(n),
		Pace:           idx.volume[team][n] / float64(n),
	}, true
}

// Teams returns the indexed team names, sorted
func (idx *TeamIndex) Teams() []string {
	teams := make([]string, 0, len(idx.games))
	for t := range idx.games {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// Snapshot returns every team's profile as of asOf
func (idx *TeamIndex) Snapshot(asOf time.Time) map[string]models.TeamDay {
	out := make(map[string]models.TeamDay, len(idx.games))
	for _, team := range idx.Teams() {
		if td, ok := idx.AsOf(team, asOf); ok {
			out[team] = td
		}
	}
	return out
}

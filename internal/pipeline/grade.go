package pipeline

import (
	"context"
	"time"

	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// Grade settles the date's recommendations against observed REX results
func (p *Pipeline) Grade(ctx context.Context, m models.Market, date time.Time) (Summary, error) {
	start := time.Now()
	s := p.summary(StageGrade, m.Key())
	date = day(date)

	recs, err := tables.ReadRecommendations(p.recsPath(m, date))
	if err != nil {
		return p.finish(s, start, readErr("grade", err))
	}
	s.In = len(recs)

	games, err := p.source.PlayerGames(ctx, m.Sport)
	if err != nil {
		return p.finish(s, start, err)
	}
	byID := make(map[string]int)
	byName := make(map[string]int)
	for _, g := range games {
		if !day(g.GameDate).Equal(date) {
			continue
		}
		n := g.StatCount(m.Stat)
		byID[g.PlayerID] = n
		byName[models.NormalizeName(g.PlayerName)] = n
	}

	counts := make(map[models.Grade]int)
	graded := make([]models.GradedRecommendation, 0, len(recs))
	for _, r := range recs {
		var observed *int
		if n, ok := byID[r.PlayerID]; ok {
			observed = &n
		} else if n, ok := byName[models.NormalizeName(r.PlayerName)]; ok {
			observed = &n
		}
		g := edge.Grade(r, observed)
		counts[g.Grade]++
		graded = append(graded, g)
	}
	s.Out = len(graded)
	if len(recs) > 0 {
		s.Version = recs[0].ArtifactVersion
	}

	if err := tables.WriteGraded(p.gradedPath(m, date), graded); err != nil {
		return p.finish(s, start, err)
	}

	var staked, returned float64
	for _, g := range graded {
		if g.Grade == models.GradeWon || g.Grade == models.GradeLost || g.Grade == models.GradePush {
			staked += g.StakeFraction
			returned += g.StakeFraction * g.PayoutMultiple
		}
	}
	log.Info().
		Str("market", m.Key()).
		Int("won", counts[models.GradeWon]).
		Int("lost", counts[models.GradeLost]).
		Int("push", counts[models.GradePush]).
		Int("ungraded", counts[models.GradeUngraded]).
		Float64("staked", staked).
		Float64("returned", returned).
		Msg("Recommendations graded")
	return p.finish(s, start, nil)
}

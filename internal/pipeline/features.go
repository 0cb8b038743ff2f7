package pipeline

import (
	"context"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// BuildFeatures writes a labeled feature row for every historical game on or after since
func (p *Pipeline) BuildFeatures(ctx context.Context, m models.Market, since time.Time) (Summary, error) {
	start := time.Now()
	s := p.summary(StageBuildFeatures, m.Key())

	prof, err := p.profile(m)
	if err != nil {
		return p.finish(s, start, err)
	}

	games, err := p.source.PlayerGames(ctx, m.Sport)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.In = len(games)

	b := p.builder(prof)
	h := b.Index(games)
	res, err := b.Build(ctx, h, features.HistoricalTargets(m, h, since))
	if err != nil {
		return p.finish(s, start, err)
	}
	for reason, n := range res.Dropped {
		s.Dropped[reason] += n
		log.Warn().Str("market", m.Key()).Str("reason", reason).Int("count", n).Msg("Dropped subjects")
	}
	s.Out = len(res.Rows)

	if len(res.Rows) == 0 {
		return p.finish(s, start, apperr.Empty("build features", "feature rows"))
	}
	if err := tables.WriteFeatures(p.featuresPath(m), res.Rows); err != nil {
		return p.finish(s, start, err)
	}
	return p.finish(s, start, nil)
}

package pipeline

import (
	"context"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/metrics"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"
	"github.com/greenbier/propedge/internal/trainer"

	"github.com/rs/zerolog/log"
)

// Train fits the market's model on feature rows dated before trainEnd and publishes a version
func (p *Pipeline) Train(ctx context.Context, m models.Market, trainEnd time.Time) (Summary, error) {
	s, _, err := p.train(ctx, m, trainEnd)
	return s, err
}

func (p *Pipeline) train(ctx context.Context, m models.Market, trainEnd time.Time) (Summary, *trainer.Result, error) {
	start := time.Now()
	s := p.summary(StageTrain, m.Key())
	trainEnd = day(trainEnd)

	finish := func(res *trainer.Result, err error) (Summary, *trainer.Result, error) {
		sum, err := p.finish(s, start, err)
		return sum, res, err
	}

	prof, err := p.profile(m)
	if err != nil {
		return finish(nil, err)
	}

	rows, err := tables.ReadFeatures(p.featuresPath(m))
	if err != nil {
		return finish(nil, readErr("train", err))
	}
	s.In = len(rows)

	games, err := p.source.PlayerGames(ctx, m.Sport)
	if err != nil {
		return finish(nil, err)
	}
	prior := games[:0:0]
	for _, g := range games {
		if g.GameDate.Before(trainEnd) {
			prior = append(prior, g)
		}
	}
	b := p.builder(prof)
	lookup := b.Snapshot(b.Index(prior))

	opts := trainer.DefaultOptions(trainEnd)
	opts.Now = p.now
	res, err := trainer.Train(rows, prof, lookup, opts)
	if err != nil {
		return finish(nil, err)
	}
	for reason, n := range res.Dropped {
		s.Dropped[reason] += n
	}
	meta := res.Artifact.Meta
	s.Out = meta.TrainRows + meta.ValidationRows
	if meta.Degraded {
		metrics.RecordDegraded(m.Key())
	}

	version, err := p.store.Save(res.Artifact)
	if err != nil {
		return finish(nil, err)
	}
	s.Version = version

	if p.cache != nil {
		if err := p.cache.Write(ctx, version, lookup); err != nil {
			log.Warn().Err(err).Str("market", m.Key()).Str("version", version).Msg("Failed to mirror lookup to redis")
			metrics.RecordError("cache", apperr.KindOf(err).String())
		}
	}
	return finish(res, nil)
}

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/artifact"
	"github.com/greenbier/propedge/internal/config"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/metrics"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/probability"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// Project scores every scheduled player for date with the configured artifact version
func (p *Pipeline) Project(ctx context.Context, m models.Market, date time.Time) (Summary, error) {
	return p.project(ctx, m, date, p.cfg.Version())
}

func (p *Pipeline) project(ctx context.Context, m models.Market, date time.Time, version string) (Summary, error) {
	start := time.Now()
	s := p.summary(StageProject, m.Key())
	date = day(date)

	prof, err := p.profile(m)
	if err != nil {
		return p.finish(s, start, err)
	}

	a, err := p.store.Load(m.Key(), version, models.FeatureOrder)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.Version = a.Version()

	schedule, err := p.scheduleFor(ctx, m.Sport, date)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.In = len(schedule)

	res, err := p.rowsFor(ctx, prof, a, schedule, date)
	if err != nil {
		return p.finish(s, start, err)
	}
	for reason, n := range res.Dropped {
		s.Dropped[reason] += n
	}

	projections := make([]models.Projection, 0, len(res.Rows))
	for _, row := range res.Rows {
		proj, err := ProjectRow(a, row)
		if err != nil {
			return p.finish(s, start, err)
		}
		projections = append(projections, proj)
	}
	s.Out = len(projections)

	if len(projections) == 0 {
		return p.finish(s, start, apperr.Empty("project", "projections"))
	}
	if err := tables.WriteProjections(p.projectionsPath(m, date), a.Meta.LineGrid, projections); err != nil {
		return p.finish(s, start, err)
	}
	return p.finish(s, start, nil)
}

// scheduleFor reads REX, falling back to the schedule feed when REX has nothing for the date
func (p *Pipeline) scheduleFor(ctx context.Context, sport models.Sport, date time.Time) ([]models.ScheduledGame, error) {
	games, err := p.source.Schedule(ctx, sport, date, date)
	if err != nil {
		return nil, err
	}
	if len(games) > 0 || p.schedule == nil {
		return games, nil
	}

	log.Info().Str("sport", string(sport)).Str("date", date.Format(models.DateLayout)).Msg("No REX schedule, using schedule feed")
	games, err = p.schedule.Schedule(ctx, sport, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	return games, nil
}

// rowsFor builds upcoming feature rows from the serving lookup when it covers date,
// otherwise recomputes from REX history
func (p *Pipeline) rowsFor(ctx context.Context, prof config.Profile, a *artifact.Artifact, schedule []models.ScheduledGame, date time.Time) (features.Result, error) {
	b := p.builder(prof)
	lookup := p.lookupFor(ctx, a)

	if lookup.Covers(date) {
		known := make([]string, 0, len(lookup.Teams))
		for team := range lookup.Teams {
			known = append(known, team)
		}
		sort.Strings(known)
		r := features.NewResolver(known, prof.TeamAliases)

		targets, drops := lookup.Targets(schedule, date, r)
		res := b.FromLookup(lookup, targets)
		for reason, n := range drops {
			res.Dropped[reason] += n
		}
		log.Debug().Str("market", prof.Market.Key()).Time("as_of", lookup.AsOf).Msg("Projecting from serving lookup")
		return res, nil
	}

	games, err := p.source.PlayerGames(ctx, prof.Market.Sport)
	if err != nil {
		return features.Result{}, err
	}
	h := b.Index(games)
	r := features.NewResolver(h.KnownTeams(), prof.TeamAliases)
	targets, drops := features.UpcomingTargets(h, schedule, date, r)
	res, err := b.Build(ctx, h, targets)
	if err != nil {
		return features.Result{}, err
	}
	for reason, n := range drops {
		res.Dropped[reason] += n
	}
	return res, nil
}

// lookupFor prefers the Redis mirror and falls back to the artifact's lookup.json
func (p *Pipeline) lookupFor(ctx context.Context, a *artifact.Artifact) features.Lookup {
	if p.cache == nil {
		return a.Lookup
	}
	l, ok, err := p.cache.Read(ctx, a.Meta.Market, a.Version())
	switch {
	case err != nil:
		log.Warn().Err(err).Str("version", a.Version()).Msg("Failed to read lookup from redis")
		metrics.RecordCacheMiss()
	case !ok:
		metrics.RecordCacheMiss()
	default:
		metrics.RecordCacheHit()
		return l
	}
	return a.Lookup
}

// ProjectRow scores one feature row: served mean, regime alpha, tails and over-grid
func ProjectRow(a *artifact.Artifact, row models.FeatureRow) (models.Projection, error) {
	x, err := row.Vector(a.Meta.FeatureOrder)
	if err != nil {
		return models.Projection{}, apperr.Validation("project", err)
	}
	mu := a.PredictMu(x)
	regime, alpha, fallback := a.ResolveRegime(row.VolumeL10)

	d := probability.New(mu, alpha)
	proj := models.Projection{
		PlayerID:        row.PlayerID,
		PlayerName:      row.PlayerName,
		Team:            row.Team,
		Opponent:        row.Opponent,
		GameDate:        row.GameDate,
		Stat:            row.Stat,
		Mu:              mu,
		MuShifted:       probability.ShiftMu(mu, a.Meta.Rules.MuShift),
		RegimeKey:       regime,
		AlphaUsed:       alpha,
		AlphaFallback:   fallback,
		VolumeL10:       row.VolumeL10,
		ArtifactVersion: a.Version(),
		Over:            make(map[float64]float64, len(a.Meta.LineGrid)),
	}
	copy(proj.AtLeast[:], d.Tails(models.MaxThreshold))
	for _, line := range a.Meta.LineGrid {
		proj.Over[line] = d.Over(line)
	}

	if err := proj.Validate(); err != nil {
		return models.Projection{}, apperr.Validation("project", fmt.Errorf("%s: %w", proj.Key(), err))
	}
	return proj, nil
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/metrics"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// Drop reasons recorded by evaluate
const (
	DropInvalidOffer = "invalid_offer"
	DropOtherMarket  = "other_market"
)

// Evaluate prices the date's projections against captured offers. An empty linesPath
// reads the offers fetch-lines wrote for the date, then the line archive when that file is missing.
func (p *Pipeline) Evaluate(ctx context.Context, m models.Market, date time.Time, linesPath string) (Summary, error) {
	return p.evaluate(ctx, m, date, linesPath, p.cfg.Version())
}

func (p *Pipeline) evaluate(ctx context.Context, m models.Market, date time.Time, linesPath, version string) (Summary, error) {
	start := time.Now()
	s := p.summary(StageEvaluate, m.Key())
	date = day(date)

	a, err := p.store.Load(m.Key(), version, models.FeatureOrder)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.Version = a.Version()

	projections, err := tables.ReadProjections(p.projectionsPath(m, date))
	if err != nil {
		return p.finish(s, start, readErr("evaluate", err))
	}
	offers, err := p.offersFor(ctx, m, date, linesPath)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.In = len(offers)

	var valid []models.LineOffer
	for _, o := range offers {
		if o.Stat != m.Stat || !day(o.GameDate).Equal(date) {
			s.Dropped[DropOtherMarket]++
			continue
		}
		if err := o.Validate(); err != nil {
			s.Dropped[DropInvalidOffer]++
			log.Warn().Err(err).Str("player", o.PlayerName).Str("book", o.Book).Str("reason", DropInvalidOffer).Msg("Dropped offer")
			continue
		}
		valid = append(valid, o)
	}

	find := projectionIndex(projections)
	ev := edge.NewEvaluator(a.Meta.Rules, p.staking())
	recs := edge.EvaluateAll(ev, edge.PairOffers(valid), find)
	for _, r := range recs {
		metrics.RecordRecommendation(string(r.Action), string(r.ReasonCode))
	}
	s.Out = len(recs)

	if len(recs) == 0 {
		return p.finish(s, start, apperr.Empty("evaluate", "recommendations"))
	}
	if err := tables.WriteRecommendations(p.recsPath(m, date), recs); err != nil {
		return p.finish(s, start, err)
	}

	bets := 0
	for _, r := range recs {
		if r.IsBet() {
			bets++
		}
	}
	log.Info().Str("market", m.Key()).Int("quotes", len(recs)).Int("bets", bets).Msg("Offers evaluated")
	return p.finish(s, start, nil)
}

func (p *Pipeline) offersFor(ctx context.Context, m models.Market, date time.Time, linesPath string) ([]models.LineOffer, error) {
	if linesPath != "" {
		offers, err := tables.ReadLineOffers(linesPath)
		return offers, readErr("evaluate", err)
	}
	offers, err := tables.ReadLineOffers(p.LinesPath(m, date))
	if err == nil || !errors.Is(err, os.ErrNotExist) || p.sink == nil {
		return offers, readErr("evaluate", err)
	}

	archived, err := p.sink.ForDate(ctx, m.Stat, date)
	if err != nil {
		return nil, apperr.DataSource("evaluate", err)
	}
	log.Info().Str("market", m.Key()).Int("offers", len(archived)).Msg("Read offers from line archive")
	return archived, nil
}

// projectionIndex resolves a quote to its projection by player id, then by normalized name
func projectionIndex(projections []models.Projection) func(edge.Quote) *models.Projection {
	byID := make(map[string]*models.Projection, len(projections))
	byName := make(map[string]*models.Projection, len(projections))
	for i := range projections {
		pr := &projections[i]
		date := pr.GameDate.Format(models.DateLayout)
		byID[pr.PlayerID+"|"+date] = pr
		if name := models.NormalizeName(pr.PlayerName); name != "" {
			byName[name+"|"+date] = pr
		}
	}
	return func(q edge.Quote) *models.Projection {
		date := q.GameDate.Format(models.DateLayout)
		if q.PlayerID != "" {
			if pr, ok := byID[q.PlayerID+"|"+date]; ok {
				return pr
			}
		}
		return byName[models.NormalizeName(q.PlayerName)+"|"+date]
	}
}

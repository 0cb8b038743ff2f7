package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// DropEventFailed counts events whose props could not be fetched
const DropEventFailed = "event_failed"

// FetchLines captures the date's player-prop offers. A failing event is dropped;
// the stage fails only when every event fails.
func (p *Pipeline) FetchLines(ctx context.Context, m models.Market, date time.Time) (Summary, error) {
	start := time.Now()
	s := p.summary(StageFetchLines, m.Key())
	date = day(date)

	if p.lines == nil {
		return p.finish(s, start, apperr.Configuration("fetch lines", errors.New("no line feed configured")))
	}

	events, err := p.lines.Events(ctx, m.Sport, date)
	if err != nil {
		return p.finish(s, start, err)
	}
	s.In = len(events)

	var offers []models.LineOffer
	var lastErr error
	for _, ev := range events {
		got, err := p.lines.PlayerProps(ctx, m, ev.ID)
		if err != nil {
			lastErr = err
			s.Dropped[DropEventFailed]++
			log.Warn().Err(err).Str("event_id", ev.ID).Str("reason", DropEventFailed).Msg("Dropped event")
			continue
		}
		offers = append(offers, got...)
	}
	s.Out = len(offers)

	if len(events) > 0 && s.Dropped[DropEventFailed] == len(events) {
		return p.finish(s, start, apperr.DataSource("fetch lines", fmt.Errorf("all %d events failed: %w", len(events), lastErr)))
	}
	if len(offers) == 0 {
		return p.finish(s, start, apperr.Empty("fetch lines", "line offers"))
	}

	if err := tables.WriteLineOffers(p.LinesPath(m, date), offers); err != nil {
		return p.finish(s, start, err)
	}
	if p.sink != nil {
		if err := p.sink.InsertBatch(ctx, offers); err != nil {
			log.Warn().Err(err).Str("market", m.Key()).Msg("Failed to archive line offers")
		}
	}
	return p.finish(s, start, nil)
}

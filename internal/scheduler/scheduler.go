package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/greenbier/propedge/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunFunc runs the full pipeline for one market and slate date
type RunFunc func(ctx context.Context, m models.Market, date time.Time) error

// Scheduler fires the nightly pipeline for each configured market.
// Markets run one after another; a failing market does not stop the rest.
type Scheduler struct {
	spec    string
	markets []models.Market
	run     RunFunc
	now     func() time.Time
	cron    *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance
func NewScheduler(spec string, markets []models.Market, run RunFunc) *Scheduler {
	return &Scheduler{
		spec:    spec,
		markets: markets,
		run:     run,
		now:     time.Now,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the nightly job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.spec, func() {
		log.Info().Msg("Running nightly pipeline...")
		if failed := s.RunOnce(ctx); failed > 0 {
			log.Error().Int("failed", failed).Msg("Nightly pipeline finished with failures")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule nightly run: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Int("markets", len(s.markets)).
		Msg("Nightly pipeline scheduled")

	return nil
}

// RunOnce runs every market for today's slate and returns the number that failed
func (s *Scheduler) RunOnce(ctx context.Context) int {
	date := s.now().UTC().Truncate(24 * time.Hour)
	failed := 0
	for _, m := range s.markets {
		if ctx.Err() != nil {
			log.Warn().Str("market", m.Key()).Msg("Context cancelled, skipping remaining markets")
			return failed + 1
		}
		start := time.Now()
		if err := s.run(ctx, m, date); err != nil {
			failed++
			log.Error().Err(err).Str("market", m.Key()).Msg("Pipeline run failed")
			continue
		}
		log.Info().
			Str("market", m.Key()).
			Str("date", date.Format(models.DateLayout)).
			Dur("duration", time.Since(start)).
			Msg("Pipeline run complete")
	}
	return failed
}

// Stop stops the cron loop and waits for a running job to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// Package rex reads the read-only event store of historical player activity.
package rex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/rs/zerolog/log"
)

// Source is the read interface over REX
type Source interface {
	PlayerGames(ctx context.Context, sport models.Sport) ([]models.PlayerGame, error)
	Schedule(ctx context.Context, sport models.Sport, from, to time.Time) ([]models.ScheduledGame, error)
	RawEvents(ctx context.Context, sport models.Sport) ([]models.RawEvent, error)
}

// File names under <root>/raw/<sport>/
const (
	PlayerGamesFile = "player_games.csv"
	ScheduleFile    = "schedule.csv"
	EventsFile      = "events.csv"
)

// FileSource reads REX exports from <root>/raw/<sport>/
type FileSource struct {
	root string
	now  func() time.Time
}

// NewFileSource creates a file source rooted at dataRoot
func NewFileSource(dataRoot string) *FileSource {
	return &FileSource{root: dataRoot, now: time.Now}
}

func (s *FileSource) path(sport models.Sport, name string) string {
	return filepath.Join(s.root, "raw", string(sport), name)
}

// PlayerGames reads player_games.csv, or rolls up events.csv when only events are exported
func (s *FileSource) PlayerGames(ctx context.Context, sport models.Sport) ([]models.PlayerGame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.path(sport, PlayerGamesFile)
	games, err := tables.ReadPlayerGames(path)
	switch {
	case err == nil:
		return Dedup(games), nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, classify("rex player games", err)
	}

	events, err := s.RawEvents(ctx, sport)
	if err != nil {
		return nil, err
	}
	games, dropped := RollUp(events, s.now())
	log.Info().
		Str("sport", string(sport)).
		Int("events", len(events)).
		Int("games", len(games)).
		Int("dropped", dropped).
		Msg("Rolled up raw events")
	return Dedup(games), nil
}

// Schedule reads schedule.csv and keeps games dated in [from, to]
func (s *FileSource) Schedule(ctx context.Context, sport models.Sport, from, to time.Time) ([]models.ScheduledGame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	games, err := tables.ReadSchedule(s.path(sport, ScheduleFile))
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("sport", string(sport)).Msg("No schedule export")
		return nil, nil
	}
	if err != nil {
		return nil, classify("rex schedule", err)
	}
	var out []models.ScheduledGame
	for _, g := range games {
		if g.GameDate.Before(from) || g.GameDate.After(to) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// RawEvents reads events.csv
func (s *FileSource) RawEvents(ctx context.Context, sport models.Sport) ([]models.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events, err := tables.ReadEvents(s.path(sport, EventsFile))
	if err != nil {
		return nil, classify("rex raw events", err)
	}
	for i := range events {
		if events[i].Sport == "" {
			events[i].Sport = sport
		}
	}
	return events, nil
}

// classify keeps malformed exports as validation errors; anything else is a data source failure
func classify(op string, err error) error {
	if apperr.Is(err, apperr.KindValidation) {
		return err
	}
	return apperr.DataSource(op, fmt.Errorf("read failed: %w", err))
}

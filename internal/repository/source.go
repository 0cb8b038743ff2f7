package repository

import (
	"context"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/rex"
)

var _ rex.Source = (*Source)(nil)

// Source reads REX history from Postgres
type Source struct {
	db *Database
}

// Source returns the read adapter over the REX tables
func (db *Database) Source() *Source {
	return &Source{db: db}
}

// PlayerGames returns the sport's game lines
func (s *Source) PlayerGames(ctx context.Context, sport models.Sport) ([]models.PlayerGame, error) {
	games, err := s.db.PlayerGames.ForSport(ctx, sport)
	return games, apperr.DataSource("rex player games", err)
}

// Schedule returns the sport's scheduled games dated in [from, to]
func (s *Source) Schedule(ctx context.Context, sport models.Sport, from, to time.Time) ([]models.ScheduledGame, error) {
	games, err := s.db.Schedule.Between(ctx, sport, from, to)
	return games, apperr.DataSource("rex schedule", err)
}

// RawEvents returns the sport's raw events
func (s *Source) RawEvents(ctx context.Context, sport models.Sport) ([]models.RawEvent, error) {
	events, err := s.db.Events.ForSport(ctx, sport)
	return events, apperr.DataSource("rex raw events", err)
}

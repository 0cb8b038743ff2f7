//go:build integration

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/models"

	"github.com/jackc/pgx/v5"
)

// Seeding helpers; production code only reads these tables.

// Insert appends an event; an existing event id is left untouched
func (r *EventRepository) Insert(ctx context.Context, e models.RawEvent) error {
	query := `
		INSERT INTO raw_events (
			event_id, sport, subject_id, subject_name, game_id, team_id, opponent_id,
			event_ts, is_home, count_type, outcome_flags, value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING
	`

	flags := e.OutcomeFlags
	if flags == nil {
		flags = []string{}
	}
	_, err := r.db.Pool.Exec(
		ctx, query,
		e.EventID, string(e.Sport), e.SubjectID, e.SubjectName, e.GameID, e.TeamID, e.OpponentID,
		e.Timestamp, e.IsHome, string(e.CountType), flags, e.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.EventID, err)
	}

	return nil
}

// Upsert inserts or replaces a player game line
func (r *PlayerGameRepository) Upsert(ctx context.Context, sport models.Sport, pg models.PlayerGame) error {
	query := `
		INSERT INTO player_game_lines (
			sport, player_id, player_name, team, opponent, game_date, is_home,
			minutes, pitches, shots, goals, assists, strikeouts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (sport, player_id, game_date) DO UPDATE SET
			player_name = EXCLUDED.player_name,
			team = EXCLUDED.team,
			opponent = EXCLUDED.opponent,
			is_home = EXCLUDED.is_home,
			minutes = EXCLUDED.minutes,
			pitches = EXCLUDED.pitches,
			shots = EXCLUDED.shots,
			goals = EXCLUDED.goals,
			assists = EXCLUDED.assists,
			strikeouts = EXCLUDED.strikeouts
	`

	_, err := r.db.Pool.Exec(
		ctx, query,
		string(sport), pg.PlayerID, pg.PlayerName, pg.Team, pg.Opponent, pg.GameDate, pg.IsHome,
		pg.Minutes, pg.Pitches, pg.Shots, pg.Goals, pg.Assists, pg.Strikeouts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert player game %s: %w", pg.Key(), err)
	}

	return nil
}

// Get retrieves one player's line for one date; nil when absent
func (r *PlayerGameRepository) Get(ctx context.Context, sport models.Sport, playerID string, gameDate time.Time) (*models.PlayerGame, error) {
	query := `
		SELECT player_id, player_name, team, opponent, game_date, is_home,
		       minutes, pitches, shots, goals, assists, strikeouts
		FROM player_game_lines
		WHERE sport = $1 AND player_id = $2 AND game_date = $3
	`

	var pg models.PlayerGame
	err := r.db.Pool.QueryRow(ctx, query, string(sport), playerID, gameDate).Scan(
		&pg.PlayerID, &pg.PlayerName, &pg.Team, &pg.Opponent, &pg.GameDate, &pg.IsHome,
		&pg.Minutes, &pg.Pitches, &pg.Shots, &pg.Goals, &pg.Assists, &pg.Strikeouts,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player game: %w", err)
	}

	return &pg, nil
}

// Upsert inserts or updates one team's view of a game
func (r *ScheduleRepository) Upsert(ctx context.Context, sport models.Sport, g models.ScheduledGame) error {
	query := `
		INSERT INTO schedule (sport, game_id, team, opponent, game_date, is_home, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sport, game_id, team) DO UPDATE SET
			opponent = EXCLUDED.opponent,
			game_date = EXCLUDED.game_date,
			is_home = EXCLUDED.is_home,
			start_time = EXCLUDED.start_time
	`

	var start *time.Time
	if !g.StartTime.IsZero() {
		start = &g.StartTime
	}
	_, err := r.db.Pool.Exec(ctx, query, string(sport), g.GameID, g.Team, g.Opponent, g.GameDate, g.IsHome, start)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule %s/%s: %w", g.GameID, g.Team, err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/models"
)

// ScheduleRepository reads scheduled games
type ScheduleRepository struct {
	db *Database
}

// Between retrieves games dated in [from, to]
func (r *ScheduleRepository) Between(ctx context.Context, sport models.Sport, from, to time.Time) ([]models.ScheduledGame, error) {
	query := `
		SELECT game_id, team, opponent, game_date, is_home, start_time
		FROM schedule
		WHERE sport = $1 AND game_date BETWEEN $2 AND $3
		ORDER BY game_date, game_id, team
	`

	rows, err := r.db.Pool.Query(ctx, query, string(sport), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	defer rows.Close()

	var games []models.ScheduledGame
	for rows.Next() {
		var g models.ScheduledGame
		var start *time.Time
		if err := rows.Scan(&g.GameID, &g.Team, &g.Opponent, &g.GameDate, &g.IsHome, &start); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		if start != nil {
			g.StartTime = start.UTC()
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}

	return games, nil
}

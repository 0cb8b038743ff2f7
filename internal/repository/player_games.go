package repository

import (
	"context"
	"fmt"

	"github.com/greenbier/propedge/internal/models"

	"github.com/rs/zerolog/log"
)

// PlayerGameRepository reads per-player game lines
type PlayerGameRepository struct {
	db *Database
}

// ForSport retrieves every game line for a sport ordered by player and date
func (r *PlayerGameRepository) ForSport(ctx context.Context, sport models.Sport) ([]models.PlayerGame, error) {
	query := `
		SELECT player_id, player_name, team, opponent, game_date, is_home,
		       minutes, pitches, shots, goals, assists, strikeouts
		FROM player_game_lines
		WHERE sport = $1
		ORDER BY player_id, game_date
	`

	rows, err := r.db.Pool.Query(ctx, query, string(sport))
	if err != nil {
		return nil, fmt.Errorf("failed to get player games: %w", err)
	}
	defer rows.Close()

	var games []models.PlayerGame
	for rows.Next() {
		var pg models.PlayerGame
		err := rows.Scan(
			&pg.PlayerID, &pg.PlayerName, &pg.Team, &pg.Opponent, &pg.GameDate, &pg.IsHome,
			&pg.Minutes, &pg.Pitches, &pg.Shots, &pg.Goals, &pg.Assists, &pg.Strikeouts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player game: %w", err)
		}
		games = append(games, pg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read player games: %w", err)
	}

	log.Debug().Str("sport", string(sport)).Int("rows", len(games)).Msg("Loaded player games")

	return games, nil
}

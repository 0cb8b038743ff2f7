package repository

import (
	"context"
	"fmt"

	"github.com/greenbier/propedge/internal/models"

	"github.com/rs/zerolog/log"
)

// EventRepository reads the immutable raw event store
type EventRepository struct {
	db *Database
}

// ForSport retrieves all events for a sport in storage order (game, subject, timestamp, id)
func (r *EventRepository) ForSport(ctx context.Context, sport models.Sport) ([]models.RawEvent, error) {
	query := `
		SELECT event_id, sport, subject_id, subject_name, game_id, team_id, opponent_id,
		       event_ts, is_home, count_type, outcome_flags, value
		FROM raw_events
		WHERE sport = $1
		ORDER BY game_id, subject_id, event_ts, event_id
	`

	rows, err := r.db.Pool.Query(ctx, query, string(sport))
	if err != nil {
		return nil, fmt.Errorf("failed to get raw events: %w", err)
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var e models.RawEvent
		var sportCol, countType string
		err := rows.Scan(
			&e.EventID, &sportCol, &e.SubjectID, &e.SubjectName, &e.GameID, &e.TeamID, &e.OpponentID,
			&e.Timestamp, &e.IsHome, &countType, &e.OutcomeFlags, &e.Value,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw event: %w", err)
		}
		e.Sport = models.Sport(sportCol)
		e.CountType = models.CountType(countType)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raw events: %w", err)
	}

	log.Debug().Str("sport", string(sport)).Int("rows", len(events)).Msg("Loaded raw events")

	return events, nil
}

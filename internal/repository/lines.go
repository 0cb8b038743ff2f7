package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// LineOfferRepository archives captured book prices. Offers are append-only.
type LineOfferRepository struct {
	db *Database
}

// InsertBatch appends captured offers in one round trip
func (r *LineOfferRepository) InsertBatch(ctx context.Context, offers []models.LineOffer) error {
	if len(offers) == 0 {
		return nil
	}

	query := `
		INSERT INTO line_offers (
			player_id, player_name, game_date, stat, side, line, decimal_price, book, fetched_at, game_start
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, o := range offers {
		var start *time.Time
		if !o.GameStart.IsZero() {
			start = &o.GameStart
		}
		batch.Queue(query,
			o.PlayerID, o.PlayerName, o.GameDate, string(o.Stat), string(o.Side),
			o.Line, o.DecimalPrice, o.Book, o.FetchedAt, start,
		)
	}

	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert line offers: %w", err)
	}

	log.Debug().Int("offers", len(offers)).Msg("Archived line offers")

	return nil
}

// ForDate retrieves offers for a stat and date in capture order
func (r *LineOfferRepository) ForDate(ctx context.Context, stat models.Stat, date time.Time) ([]models.LineOffer, error) {
	query := `
		SELECT player_id, player_name, game_date, stat, side, line, decimal_price, book, fetched_at, game_start
		FROM line_offers
		WHERE stat = $1 AND game_date = $2
		ORDER BY fetched_at, id
	`

	rows, err := r.db.Pool.Query(ctx, query, string(stat), date)
	if err != nil {
		return nil, fmt.Errorf("failed to get line offers: %w", err)
	}
	defer rows.Close()

	var offers []models.LineOffer
	for rows.Next() {
		var o models.LineOffer
		var statCol, side string
		var start *time.Time
		err := rows.Scan(
			&o.PlayerID, &o.PlayerName, &o.GameDate, &statCol, &side,
			&o.Line, &o.DecimalPrice, &o.Book, &o.FetchedAt, &start,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line offer: %w", err)
		}
		o.Stat = models.Stat(statCol)
		o.Side = models.Side(side)
		o.FetchedAt = o.FetchedAt.UTC()
		if start != nil {
			o.GameStart = start.UTC()
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line offers: %w", err)
	}

	return offers, nil
}

package tables

import (
	"github.com/greenbier/propedge/internal/models"
)

var offerHeader = []string{
	"player_id", "player_name", "game_date", "stat", "side", "line", "decimal_price", "book", "fetched_at", "game_start",
}

// ReadLineOffers reads a line offer table. Rows are returned as captured; validation happens at evaluation.
func ReadLineOffers(path string) ([]models.LineOffer, error) {
	var out []models.LineOffer
	required := []string{"game_date", "stat", "side", "line", "decimal_price", "book", "fetched_at"}
	err := readFile(path, required, func(r *record) error {
		side, err := models.ParseSide(r.str("side"))
		if err != nil {
			r.fail("side", err)
		}
		out = append(out, models.LineOffer{
			PlayerID:     r.str("player_id"),
			PlayerName:   r.str("player_name"),
			GameDate:     r.date("game_date"),
			Stat:         models.Stat(r.str("stat")),
			Side:         side,
			Line:         r.num("line"),
			DecimalPrice: r.num("decimal_price"),
			Book:         r.str("book"),
			FetchedAt:    r.timestamp("fetched_at"),
			GameStart:    r.timestamp("game_start"),
		})
		return nil
	})
	return out, err
}

// WriteLineOffers writes a line offer table
func WriteLineOffers(path string, offers []models.LineOffer) error {
	return writeFile(path, offerHeader, func(emit func([]string) error) error {
		for _, o := range offers {
			err := emit([]string{
				o.PlayerID, o.PlayerName, fd(o.GameDate), string(o.Stat), string(o.Side),
				ff(o.Line), ff(o.DecimalPrice), o.Book, fts(o.FetchedAt), fts(o.GameStart),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

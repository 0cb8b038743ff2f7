package edge

import (
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/models"
	"github.com/rs/zerolog/log"
)

// Quote pairs the over and under prices one book offers on one prop
type Quote struct {
	Key        string
	PlayerID   string
	PlayerName string
	GameDate   time.Time
	Stat       models.Stat
	Line       float64
	Book       string
	Over       *models.LineOffer
	Under      *models.LineOffer
}

// PairOffers groups offers by (player, date, stat, line, book). When a side is quoted
// more than once the earliest capture is kept. Output is sorted by key.
func PairOffers(offers []models.LineOffer) []Quote {
	byKey := make(map[string]*Quote)
	for i := range offers {
		o := offers[i]
		key := o.QuoteKey()
		q, ok := byKey[key]
		if !ok {
			q = &Quote{
				Key:        key,
				PlayerID:   o.PlayerID,
				PlayerName: o.PlayerName,
				GameDate:   o.GameDate,
				Stat:       o.Stat,
				Line:       o.Line,
				Book:       o.Book,
			}
			byKey[key] = q
		}

		slot := &q.Over
		if o.Side == models.SideUnder {
			slot = &q.Under
		}
		if *slot != nil {
			if !o.FetchedAt.Before((*slot).FetchedAt) {
				log.Debug().Str("quote", key).Str("side", string(o.Side)).Msg("Duplicate offer ignored")
				continue
			}
		}
		*slot = &o
	}

	quotes := make([]Quote, 0, len(byKey))
	for _, q := range byKey {
		quotes = append(quotes, *q)
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Key < quotes[j].Key })
	return quotes
}

// late reports whether any quoted side was captured at or after game start
func (q Quote) late() bool {
	for _, o := range []*models.LineOffer{q.Over, q.Under} {
		if o == nil {
			continue
		}
		if o.GameStart.IsZero() || !o.FetchedAt.Before(o.GameStart) {
			return true
		}
	}
	return false
}

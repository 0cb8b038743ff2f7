package rex

import (
	"sort"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/models"

	"github.com/rs/zerolog/log"
)

type gameKey struct {
	subject string
	game    string
}

// RollUp aggregates raw events into one PlayerGame per subject and game.
// Events after now are discarded. A subject-game whose timestamps go backwards in
// storage order is dropped. The second return is the number of dropped subject-games.
func RollUp(events []models.RawEvent, now time.Time) ([]models.PlayerGame, int) {
	var order []gameKey
	groups := make(map[gameKey][]models.RawEvent)
	future := 0

	for _, e := range events {
		if e.Timestamp.After(now) {
			future++
			continue
		}
		k := gameKey{subject: e.SubjectID, game: e.GameID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}
	if future > 0 {
		log.Warn().Int("events", future).Str("reason", "future_dated").Msg("Discarded raw events")
	}

	dropped := 0
	games := make([]models.PlayerGame, 0, len(order))
	for _, k := range order {
		evs := groups[k]
		if !monotonic(evs) {
			dropped++
			log.Warn().
				Str("subject_id", k.subject).
				Str("game_id", k.game).
				Str("reason", "non_monotonic").
				Msg("Dropped subject-game")
			continue
		}
		games = append(games, aggregate(evs))
	}

	sort.SliceStable(games, func(i, j int) bool {
		if games[i].PlayerID != games[j].PlayerID {
			return games[i].PlayerID < games[j].PlayerID
		}
		return games[i].GameDate.Before(games[j].GameDate)
	})
	return games, dropped
}

func monotonic(evs []models.RawEvent) bool {
	for i := 1; i < len(evs); i++ {
		if evs[i].Timestamp.Before(evs[i-1].Timestamp) {
			return false
		}
	}
	return true
}

func aggregate(evs []models.RawEvent) models.PlayerGame {
	first := evs[0]
	y, m, d := first.Timestamp.UTC().Date()
	pg := models.PlayerGame{
		PlayerID:   first.SubjectID,
		PlayerName: first.SubjectName,
		Team:       first.TeamID,
		Opponent:   first.OpponentID,
		GameDate:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		IsHome:     first.IsHome,
	}

	for _, e := range evs {
		switch models.CountType(strings.ToLower(string(e.CountType))) {
		case models.CountPitch:
			pg.Pitches++
			if e.HasFlag(models.FlagStrikeout) {
				pg.Strikeouts++
			}
		case models.CountShot:
			goal := e.HasFlag(models.FlagGoal)
			if goal || e.HasFlag(models.FlagOnGoal) {
				pg.Shots++
			}
			if goal {
				pg.Goals++
			}
		case models.CountAssist:
			pg.Assists++
		case models.CountShift:
			pg.Minutes += e.Value / 60
		}
	}
	return pg
}

// Dedup keeps the first row per (player, game_date)
func Dedup(games []models.PlayerGame) []models.PlayerGame {
	seen := make(map[string]bool, len(games))
	out := make([]models.PlayerGame, 0, len(games))
	for _, pg := range games {
		if seen[pg.Key()] {
			log.Warn().Str("key", pg.Key()).Str("reason", "duplicate").Msg("Dropped duplicate player game")
			continue
		}
		seen[pg.Key()] = true
		out = append(out, pg)
	}
	return out
}

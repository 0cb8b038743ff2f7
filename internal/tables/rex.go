package tables

import (
	"strings"

	"github.com/greenbier/propedge/internal/models"
)

var playerGameHeader = []string{
	"player_id", "player_name", "team", "opponent", "game_date", "is_home",
	"minutes", "pitches", "shots", "goals", "assists", "strikeouts",
}

// ReadPlayerGames reads a player_games table
func ReadPlayerGames(path string) ([]models.PlayerGame, error) {
	var out []models.PlayerGame
	err := readFile(path, []string{"player_id", "game_date", "opponent"}, func(r *record) error {
		out = append(out, models.PlayerGame{
			PlayerID:   r.str("player_id"),
			PlayerName: r.str("player_name"),
			Team:       r.str("team"),
			Opponent:   r.str("opponent"),
			GameDate:   r.date("game_date"),
			IsHome:     r.flag("is_home"),
			Minutes:    r.optNum("minutes"),
			Pitches:    r.optNum("pitches"),
			Shots:      r.count("shots"),
			Goals:      r.count("goals"),
			Assists:    r.count("assists"),
			Strikeouts: r.count("strikeouts"),
		})
		return nil
	})
	return out, err
}

// WritePlayerGames writes a player_games table
func WritePlayerGames(path string, games []models.PlayerGame) error {
	return writeFile(path, playerGameHeader, func(emit func([]string) error) error {
		for _, pg := range games {
			err := emit([]string{
				pg.PlayerID, pg.PlayerName, pg.Team, pg.Opponent, fd(pg.GameDate), fb(pg.IsHome),
				ff(pg.Minutes), ff(pg.Pitches),
				itoa(pg.Shots), itoa(pg.Goals), itoa(pg.Assists), itoa(pg.Strikeouts),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

var scheduleHeader = []string{"game_id", "team", "opponent", "game_date", "is_home", "start_time"}

// ReadSchedule reads a schedule table
func ReadSchedule(path string) ([]models.ScheduledGame, error) {
	var out []models.ScheduledGame
	err := readFile(path, []string{"team", "opponent", "game_date"}, func(r *record) error {
		out = append(out, models.ScheduledGame{
			GameID:    r.str("game_id"),
			Team:      r.str("team"),
			Opponent:  r.str("opponent"),
			GameDate:  r.date("game_date"),
			IsHome:    r.flag("is_home"),
			StartTime: r.timestamp("start_time"),
		})
		return nil
	})
	return out, err
}

// WriteSchedule writes a schedule table
func WriteSchedule(path string, games []models.ScheduledGame) error {
	return writeFile(path, scheduleHeader, func(emit func([]string) error) error {
		for _, g := range games {
			if err := emit([]string{g.GameID, g.Team, g.Opponent, fd(g.GameDate), fb(g.IsHome), fts(g.StartTime)}); err != nil {
				return err
			}
		}
		return nil
	})
}

var eventHeader = []string{
	"event_id", "subject_id", "subject_name", "game_id", "team_id", "opponent_id", "sport",
	"timestamp", "is_home", "count_type", "outcome_flags", "value",
}

// ReadEvents reads a raw events table; outcome_flags are separated by '|'
func ReadEvents(path string) ([]models.RawEvent, error) {
	var out []models.RawEvent
	err := readFile(path, []string{"subject_id", "game_id", "timestamp", "count_type"}, func(r *record) error {
		var flags []string
		if s := r.str("outcome_flags"); s != "" {
			flags = strings.Split(s, "|")
		}
		out = append(out, models.RawEvent{
			EventID:      r.str("event_id"),
			SubjectID:    r.str("subject_id"),
			SubjectName:  r.str("subject_name"),
			GameID:       r.str("game_id"),
			TeamID:       r.str("team_id"),
			OpponentID:   r.str("opponent_id"),
			Sport:        models.Sport(r.str("sport")),
			Timestamp:    r.timestamp("timestamp"),
			IsHome:       r.flag("is_home"),
			CountType:    models.CountType(r.str("count_type")),
			OutcomeFlags: flags,
			Value:        r.optNum("value"),
		})
		return nil
	})
	return out, err
}

// WriteEvents writes a raw events table
func WriteEvents(path string, events []models.RawEvent) error {
	return writeFile(path, eventHeader, func(emit func([]string) error) error {
		for _, e := range events {
			err := emit([]string{
				e.EventID, e.SubjectID, e.SubjectName, e.GameID, e.TeamID, e.OpponentID, string(e.Sport),
				fts(e.Timestamp), fb(e.IsHome), string(e.CountType), strings.Join(e.OutcomeFlags, "|"), ff(e.Value),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

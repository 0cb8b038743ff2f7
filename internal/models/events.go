package models

import "time"

// CountType classifies a raw event
type CountType string

const (
	CountPitch  CountType = "pitch"
	CountShot   CountType = "shot"
	CountAssist CountType = "assist"
	CountShift  CountType = "shift"
)

// Outcome flags carried on raw events
const (
	FlagStrikeout = "strikeout"
	FlagOnGoal    = "on_goal"
	FlagGoal      = "goal"
)

// RawEvent is one immutable row of the raw event store
type RawEvent struct {
	EventID      string    `db:"event_id" json:"event_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	SubjectName  string    `db:"subject_name" json:"subject_name"`
	GameID       string    `db:"game_id" json:"game_id"`
	TeamID       string    `db:"team_id" json:"team_id"`
	OpponentID   string    `db:"opponent_id" json:"opponent_id"`
	Sport        Sport     `db:"sport" json:"sport"`
	Timestamp    time.Time `db:"event_ts" json:"timestamp"`
	IsHome       bool      `db:"is_home" json:"is_home"`
	CountType    CountType `db:"count_type" json:"count_type"`
	OutcomeFlags []string  `db:"outcome_flags" json:"outcome_flags"`
	// Value carries shift length in seconds for shift events
	Value float64 `db:"value" json:"value"`
}

// HasFlag reports whether the event carries the outcome flag
func (e RawEvent) HasFlag(flag string) bool {
	for _, f := range e.OutcomeFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// PlayerGame is one player's line for one game
type PlayerGame struct {
	PlayerID   string    `db:"player_id" json:"player_id"`
	PlayerName string    `db:"player_name" json:"player_name"`
	Team       string    `db:"team" json:"team"`
	Opponent   string    `db:"opponent" json:"opponent"`
	GameDate   time.Time `db:"game_date" json:"game_date"`
	IsHome     bool      `db:"is_home" json:"is_home"`
	Minutes    float64   `db:"minutes" json:"minutes"`
	Pitches    float64   `db:"pitches" json:"pitches"`
	Shots      int       `db:"shots" json:"shots"`
	Goals      int       `db:"goals" json:"goals"`
	Assists    int       `db:"assists" json:"assists"`
	Strikeouts int       `db:"strikeouts" json:"strikeouts"`
}

// Key identifies the row as player|date
func (pg PlayerGame) Key() string {
	return pg.PlayerID + "|" + pg.GameDate.Format(DateLayout)
}

// StatCount returns the count of the given stat
func (pg PlayerGame) StatCount(stat Stat) int {
	switch stat {
	case StatStrikeouts:
		return pg.Strikeouts
	case StatShots:
		return pg.Shots
	case StatGoals:
		return pg.Goals
	case StatAssists:
		return pg.Assists
	}
	return 0
}

// Volume returns pitches for pitchers and time on ice for skaters
func (pg PlayerGame) Volume(m Market) float64 {
	if m.IsPitching() {
		return pg.Pitches
	}
	return pg.Minutes
}

// Validate checks the row-level invariants
func (pg PlayerGame) Validate() error {
	if pg.PlayerID == "" {
		return errInvalid("player_id is required")
	}
	if pg.GameDate.IsZero() {
		return errInvalid("game_date is required")
	}
	if pg.Minutes < 0 || pg.Pitches < 0 {
		return errInvalid("volume must be non-negative")
	}
	if pg.Shots < 0 || pg.Goals < 0 || pg.Assists < 0 || pg.Strikeouts < 0 {
		return errInvalid("stat counts must be non-negative")
	}
	return nil
}

// ScheduledGame is one team's view of a scheduled game
type ScheduledGame struct {
	GameID    string    `db:"game_id" json:"game_id"`
	Team      string    `db:"team" json:"team"`
	Opponent  string    `db:"opponent" json:"opponent"`
	GameDate  time.Time `db:"game_date" json:"game_date"`
	IsHome    bool      `db:"is_home" json:"is_home"`
	StartTime time.Time `db:"start_time" json:"start_time"`
}

// TeamDay is a team's defensive profile computed from games strictly before AsOf
type TeamDay struct {
	Team           string    `json:"team"`
	AsOf           time.Time `json:"as_of"`
	Games          int       `json:"games"`
	AllowedPerGame float64   `json:"allowed_per_game"`
	Pace           float64   `json:"pace"`
}

// PlayerSnapshot is a player's rolling window as of the latest known date, used for serving
type PlayerSnapshot struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Team       string    `json:"team"`
	AsOf       time.Time `json:"as_of"`
	Games      int       `json:"games"`
	RateL10    float64   `json:"rate_L10"`
	VolumeL10  float64   `json:"volume_L10"`
}

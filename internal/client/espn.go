package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
)

// ESPNBaseURL is the public ESPN site API
const ESPNBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

var espnSportPaths = map[models.Sport]string{
	models.SportMLB: "baseball/mlb",
	models.SportNHL: "hockey/nhl",
}

// ESPNConfig returns the source config for the ESPN scoreboard
func ESPNConfig(baseURL string, retry RetryPolicy) SourceConfig {
	if baseURL == "" {
		baseURL = ESPNBaseURL
	}
	return SourceConfig{Name: "espn", BaseURL: baseURL, Retry: retry}
}

type scoreboard struct {
	Events []struct {
		ID           string `json:"id"`
		Date         string `json:"date"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Team     struct {
					DisplayName  string `json:"displayName"`
					Abbreviation string `json:"abbreviation"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

// ESPN fetches schedules from the ESPN scoreboard
type ESPN struct {
	client *Client
}

// NewESPN creates the ESPN adapter
func NewESPN(c *Client) *ESPN {
	return &ESPN{client: c}
}

// parseESPNTime accepts the minute-precision timestamps the scoreboard returns
func parseESPNTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Schedule returns one ScheduledGame per team for each game on the date
func (e *ESPN) Schedule(ctx context.Context, sport models.Sport, date time.Time) ([]models.ScheduledGame, error) {
	path, ok := espnSportPaths[sport]
	if !ok {
		return nil, apperr.Configuration("espn", fmt.Errorf("no schedule feed for sport %q", sport))
	}

	body, err := e.client.get(ctx, path+"/scoreboard", map[string]string{"dates": date.Format("20060102")})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scoreboard: %w", err)
	}

	var sb scoreboard
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, apperr.DataSource("espn scoreboard", fmt.Errorf("failed to unmarshal scoreboard: %w", err))
	}

	var games []models.ScheduledGame
	for _, ev := range sb.Events {
		start, err := parseESPNTime(ev.Date)
		if err != nil || len(ev.Competitions) == 0 {
			continue
		}
		var home, away string
		for _, c := range ev.Competitions[0].Competitors {
			switch c.HomeAway {
			case "home":
				home = c.Team.DisplayName
			case "away":
				away = c.Team.DisplayName
			}
		}
		if home == "" || away == "" {
			continue
		}
		day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		games = append(games,
			models.ScheduledGame{GameID: ev.ID, Team: home, Opponent: away, GameDate: day, IsHome: true, StartTime: start},
			models.ScheduledGame{GameID: ev.ID, Team: away, Opponent: home, GameDate: day, IsHome: false, StartTime: start},
		)
	}
	return games, nil
}

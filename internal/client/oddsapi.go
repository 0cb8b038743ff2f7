package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"

	"github.com/rs/zerolog/log"
)

// OddsAPIBaseURL is The Odds API v4 host
const OddsAPIBaseURL = "https://api.the-odds-api.com"

var oddsSportKeys = map[models.Sport]string{
	models.SportMLB: "baseball_mlb",
	models.SportNHL: "icehockey_nhl",
}

var oddsMarketKeys = map[models.Stat]string{
	models.StatStrikeouts: "pitcher_strikeouts",
	models.StatShots:      "player_shots_on_goal",
	models.StatGoals:      "player_goals",
	models.StatAssists:    "player_assists",
}

// OddsAPIConfig returns the source config for The Odds API
func OddsAPIConfig(baseURL, apiKey, regions string, retry RetryPolicy) SourceConfig {
	if baseURL == "" {
		baseURL = OddsAPIBaseURL
	}
	if regions == "" {
		regions = "us"
	}
	return SourceConfig{
		Name:    "odds_api",
		BaseURL: baseURL,
		RequiredParams: map[string]string{
			"regions":    regions,
			"oddsFormat": "decimal",
			"dateFormat": "iso",
		},
		AuthParam: "apiKey",
		APIKey:    apiKey,
		Retry:     retry,
	}
}

// Event is a scheduled game as listed by The Odds API
type Event struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

type eventOdds struct {
	Event
	Bookmakers []struct {
		Key     string `json:"key"`
		Title   string `json:"title"`
		Markets []struct {
			Key        string    `json:"key"`
			LastUpdate time.Time `json:"last_update"`
			Outcomes   []struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Price       float64  `json:"price"`
				Point       *float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// OddsAPI fetches player-prop prices
type OddsAPI struct {
	client *Client
	now    func() time.Time
}

// NewOddsAPI creates The Odds API adapter
func NewOddsAPI(c *Client) *OddsAPI {
	return &OddsAPI{client: c, now: time.Now}
}

func sportKey(sport models.Sport) (string, error) {
	key, ok := oddsSportKeys[sport]
	if !ok {
		return "", apperr.Configuration("odds api", fmt.Errorf("no odds feed for sport %q", sport))
	}
	return key, nil
}

// Events lists the events commencing on the given UTC date
func (o *OddsAPI) Events(ctx context.Context, sport models.Sport, date time.Time) ([]Event, error) {
	key, err := sportKey(sport)
	if err != nil {
		return nil, err
	}

	day := date.UTC().Truncate(24 * time.Hour)
	body, err := o.client.get(ctx, fmt.Sprintf("v4/sports/%s/events", key), map[string]string{
		"commenceTimeFrom": day.Format(time.RFC3339),
		"commenceTimeTo":   day.Add(24 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, apperr.DataSource("odds api events", fmt.Errorf("failed to unmarshal events: %w", err))
	}

	out := events[:0]
	for _, e := range events {
		if e.CommenceTime.UTC().Truncate(24 * time.Hour).Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

// PlayerProps returns every quoted player-prop price for one event
func (o *OddsAPI) PlayerProps(ctx context.Context, m models.Market, eventID string) ([]models.LineOffer, error) {
	key, err := sportKey(m.Sport)
	if err != nil {
		return nil, err
	}
	market, ok := oddsMarketKeys[m.Stat]
	if !ok {
		return nil, apperr.Configuration("odds api", fmt.Errorf("no odds market for stat %q", m.Stat))
	}

	body, err := o.client.get(ctx, fmt.Sprintf("v4/sports/%s/events/%s/odds", key, eventID), map[string]string{
		"markets": market,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch props for event %s: %w", eventID, err)
	}
	fetchedAt := o.now().UTC()

	var ev eventOdds
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, apperr.DataSource("odds api props", fmt.Errorf("failed to unmarshal props: %w", err))
	}

	gameDate := ev.CommenceTime.UTC().Truncate(24 * time.Hour)
	var offers []models.LineOffer
	skipped := 0
	for _, book := range ev.Bookmakers {
		for _, mk := range book.Markets {
			if mk.Key != market {
				continue
			}
			for _, out := range mk.Outcomes {
				side, err := models.ParseSide(out.Name)
				if err != nil || out.Point == nil || strings.TrimSpace(out.Description) == "" {
					skipped++
					continue
				}
				offer := models.LineOffer{
					PlayerName:   strings.TrimSpace(out.Description),
					GameDate:     gameDate,
					Stat:         m.Stat,
					Side:         side,
					Line:         *out.Point,
					DecimalPrice: out.Price,
					Book:         book.Key,
					FetchedAt:    fetchedAt,
					GameStart:    ev.CommenceTime.UTC(),
				}
				if err := offer.Validate(); err != nil {
					skipped++
					continue
				}
				offers = append(offers, offer)
			}
		}
	}

	if skipped > 0 {
		log.Debug().Str("event_id", eventID).Int("skipped", skipped).Msg("Skipped malformed prop outcomes")
	}
	return offers, nil
}

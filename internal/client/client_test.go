package client

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func testClient(t *testing.T, h http.HandlerFunc, cfg SourceConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	return NewClient(cfg, 2*time.Second, 0)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	rnd := rand.New(rand.NewSource(1))

	for attempt, base := range map[int]time.Duration{1: 2 * time.Second, 2: 4 * time.Second, 3: 8 * time.Second} {
		d := p.Delay(attempt, rnd)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+time.Second)
	}
	assert.Equal(t, 10*time.Second, p.Delay(5, rnd))
}

func TestGet_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`ok`))
	}, SourceConfig{Retry: fastRetry()})

	body, err := c.get(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_ExhaustsRetries(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}, SourceConfig{Retry: fastRetry()})

	_, err := c.get(context.Background(), "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesSpent)
	assert.Equal(t, apperr.KindDataSource, apperr.KindOf(err))
	assert.Equal(t, 3, apperr.ExitCode(err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestGet_FailsFast(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		var calls int32
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}, SourceConfig{Retry: fastRetry()})

		_, err := c.get(context.Background(), "x", nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindDataSource, apperr.KindOf(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
	}
}

func TestGet_AuthAndRequiredParams(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "decimal", r.URL.Query().Get("oddsFormat"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "secret", r.Header.Get("X-Key"))
		assert.Equal(t, "/v4/thing", r.URL.Path)
		w.Write([]byte(`[]`))
	}, SourceConfig{
		RequiredParams: map[string]string{"oddsFormat": "decimal"},
		AuthParam:      "apiKey",
		AuthHeader:     "X-Key",
		APIKey:         "secret",
	})

	body, err := c.get(context.Background(), "/v4/thing", map[string]string{"page": "2"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	_, ok := retryAfter(h)
	assert.False(t, ok)

	h.Set("Retry-After", "7")
	d, ok := retryAfter(h)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)

	h.Set("Retry-After", "soon")
	_, ok = retryAfter(h)
	assert.False(t, ok)
}

func TestGet_ContextCancelled(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, SourceConfig{Retry: RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.get(ctx, "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

const propsPayload = `{
  "id": "ev1",
  "sport_key": "baseball_mlb",
  "commence_time": "2026-07-04T23:05:00Z",
  "home_team": "New York Yankees",
  "away_team": "Boston Red Sox",
  "bookmakers": [{
    "key": "draftkings",
    "title": "DraftKings",
    "markets": [{
      "key": "pitcher_strikeouts",
      "last_update": "2026-07-04T15:00:00Z",
      "outcomes": [
        {"name": "Over", "description": "Gerrit Cole", "price": 1.91, "point": 6.5},
        {"name": "Under", "description": "Gerrit Cole", "price": 1.95, "point": 6.5},
        {"name": "Over", "description": "", "price": 1.80, "point": 5.5},
        {"name": "Over", "description": "Brayan Bello", "price": 1.0, "point": 4.5}
      ]
    }]
  }]
}`

func TestOddsAPI_PlayerProps(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/sports/baseball_mlb/events/ev1/odds", r.URL.Path)
		assert.Equal(t, "pitcher_strikeouts", r.URL.Query().Get("markets"))
		assert.Equal(t, "k", r.URL.Query().Get("apiKey"))
		w.Write([]byte(propsPayload))
	}, OddsAPIConfig("", "k", "us", fastRetry()))

	api := NewOddsAPI(c)
	fetched := time.Date(2026, 7, 4, 16, 0, 0, 0, time.UTC)
	api.now = func() time.Time { return fetched }

	offers, err := api.PlayerProps(context.Background(), models.Market{Sport: models.SportMLB, Stat: models.StatStrikeouts}, "ev1")
	require.NoError(t, err)
	require.Len(t, offers, 2)

	o := offers[0]
	assert.Equal(t, "Gerrit Cole", o.PlayerName)
	assert.Equal(t, models.SideOver, o.Side)
	assert.Equal(t, 6.5, o.Line)
	assert.Equal(t, 1.91, o.DecimalPrice)
	assert.Equal(t, "draftkings", o.Book)
	assert.Equal(t, fetched, o.FetchedAt)
	assert.Equal(t, time.Date(2026, 7, 4, 23, 5, 0, 0, time.UTC), o.GameStart)
	assert.Equal(t, time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), o.GameDate)
	assert.Equal(t, models.SideUnder, offers[1].Side)
}

func TestOddsAPI_Events(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/sports/icehockey_nhl/events", r.URL.Path)
		w.Write([]byte(`[
		  {"id":"a","sport_key":"icehockey_nhl","commence_time":"2026-01-10T00:00:00Z","home_team":"h","away_team":"a"},
		  {"id":"b","sport_key":"icehockey_nhl","commence_time":"2026-01-11T00:30:00Z","home_team":"h","away_team":"a"}
		]`))
	}, OddsAPIConfig("", "k", "", fastRetry()))

	events, err := NewOddsAPI(c).Events(context.Background(), models.SportNHL, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)
}

func TestOddsAPI_MalformedPayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}, OddsAPIConfig("", "k", "", fastRetry()))

	_, err := NewOddsAPI(c).PlayerProps(context.Background(), models.Market{Sport: models.SportNHL, Stat: models.StatShots}, "x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDataSource, apperr.KindOf(err))
}

func TestESPN_Schedule(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hockey/nhl/scoreboard", r.URL.Path)
		assert.Equal(t, "20260110", r.URL.Query().Get("dates"))
		w.Write([]byte(`{"events":[{"id":"401","date":"2026-01-11T00:00Z","competitions":[{"competitors":[
		  {"homeAway":"home","team":{"displayName":"Boston Bruins","abbreviation":"BOS"}},
		  {"homeAway":"away","team":{"displayName":"Toronto Maple Leafs","abbreviation":"TOR"}}
		]}]}]}`))
	}, ESPNConfig("", fastRetry()))

	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	games, err := NewESPN(c).Schedule(context.Background(), models.SportNHL, day)
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "Boston Bruins", games[0].Team)
	assert.Equal(t, "Toronto Maple Leafs", games[0].Opponent)
	assert.True(t, games[0].IsHome)
	assert.False(t, games[1].IsHome)
	assert.Equal(t, day, games[1].GameDate)
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), games[0].StartTime)
}

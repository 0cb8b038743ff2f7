// Package cache mirrors the serving lookup into Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultTTL keeps a mirrored lookup across one nightly cycle
const DefaultTTL = 36 * time.Hour

// LookupCache stores player and team snapshots as Redis hashes
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLookupCache creates a cache over an existing client
func NewLookupCache(client *redis.Client, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LookupCache{client: client, ttl: ttl}
}

// Connect opens a client and pings it
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("Connected to redis")
	return client, nil
}

func key(market, version, part string) string {
	return fmt.Sprintf("propedge:lookup:%s:%s:%s", market, version, part)
}

type lookupHeader struct {
	Market string    `json:"market"`
	AsOf   time.Time `json:"as_of"`
}

// Write replaces the mirrored lookup for a market version
func (c *LookupCache) Write(ctx context.Context, version string, l features.Lookup) error {
	playersKey := key(l.Market, version, "players")
	teamsKey := key(l.Market, version, "teams")
	headerKey := key(l.Market, version, "meta")

	players := make(map[string]interface{}, len(l.Players))
	for id, ps := range l.Players {
		data, err := json.Marshal(ps)
		if err != nil {
			return fmt.Errorf("marshaling player %s: %w", id, err)
		}
		players[id] = data
	}
	teams := make(map[string]interface{}, len(l.Teams))
	for team, td := range l.Teams {
		data, err := json.Marshal(td)
		if err != nil {
			return fmt.Errorf("marshaling team %s: %w", team, err)
		}
		teams[team] = data
	}
	header, err := json.Marshal(lookupHeader{Market: l.Market, AsOf: l.AsOf})
	if err != nil {
		return fmt.Errorf("marshaling lookup header: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, playersKey, teamsKey, headerKey)
	if len(players) > 0 {
		pipe.HSet(ctx, playersKey, players)
		pipe.Expire(ctx, playersKey, c.ttl)
	}
	if len(teams) > 0 {
		pipe.HSet(ctx, teamsKey, teams)
		pipe.Expire(ctx, teamsKey, c.ttl)
	}
	pipe.Set(ctx, headerKey, header, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror lookup %s/%s: %w", l.Market, version, err)
	}

	log.Debug().
		Str("market", l.Market).
		Str("version", version).
		Int("players", len(players)).
		Int("teams", len(teams)).
		Msg("Lookup mirrored to redis")

	return nil
}

// Read returns the mirrored lookup; ok is false on a cache miss
func (c *LookupCache) Read(ctx context.Context, market, version string) (features.Lookup, bool, error) {
	headerRaw, err := c.client.Get(ctx, key(market, version, "meta")).Bytes()
	if err == redis.Nil {
		return features.Lookup{}, false, nil
	}
	if err != nil {
		return features.Lookup{}, false, fmt.Errorf("failed to read lookup header: %w", err)
	}
	var header lookupHeader
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return features.Lookup{}, false, fmt.Errorf("unmarshaling lookup header: %w", err)
	}

	l := features.Lookup{
		Market:  header.Market,
		AsOf:    header.AsOf,
		Players: make(map[string]models.PlayerSnapshot),
		Teams:   make(map[string]models.TeamDay),
	}

	players, err := c.client.HGetAll(ctx, key(market, version, "players")).Result()
	if err != nil {
		return features.Lookup{}, false, fmt.Errorf("failed to read player snapshots: %w", err)
	}
	for id, raw := range players {
		var ps models.PlayerSnapshot
		if err := json.Unmarshal([]byte(raw), &ps); err != nil {
			return features.Lookup{}, false, fmt.Errorf("unmarshaling player %s: %w", id, err)
		}
		l.Players[id] = ps
	}

	teams, err := c.client.HGetAll(ctx, key(market, version, "teams")).Result()
	if err != nil {
		return features.Lookup{}, false, fmt.Errorf("failed to read team snapshots: %w", err)
	}
	for team, raw := range teams {
		var td models.TeamDay
		if err := json.Unmarshal([]byte(raw), &td); err != nil {
			return features.Lookup{}, false, fmt.Errorf("unmarshaling team %s: %w", team, err)
		}
		l.Teams[team] = td
	}

	return l, true, nil
}

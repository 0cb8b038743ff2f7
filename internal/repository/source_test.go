//go:build integration

package repository

import (
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerGameRepository_Upsert(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pg := models.PlayerGame{
		PlayerID: "p1", PlayerName: "Ace", Team: "boston", Opponent: "tampa",
		GameDate: date, IsHome: true, Pitches: 98, Strikeouts: 7,
	}
	require.NoError(t, db.PlayerGames.Upsert(ctx, models.SportMLB, pg))

	pg.Strikeouts = 8
	require.NoError(t, db.PlayerGames.Upsert(ctx, models.SportMLB, pg), "Should update player game")

	got, err := db.PlayerGames.Get(ctx, models.SportMLB, "p1", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.Strikeouts)
	assert.True(t, got.IsHome)

	missing, err := db.PlayerGames.Get(ctx, models.SportNHL, "p1", date)
	require.NoError(t, err)
	assert.Nil(t, missing)

	games, err := db.Source().PlayerGames(ctx, models.SportMLB)
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestScheduleRepository_Between(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	d1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 5, 1, 23, 10, 0, 0, time.UTC)
	require.NoError(t, db.Schedule.Upsert(ctx, models.SportNHL, models.ScheduledGame{
		GameID: "g1", Team: "boston", Opponent: "toronto", GameDate: d1, IsHome: true, StartTime: start,
	}))
	require.NoError(t, db.Schedule.Upsert(ctx, models.SportNHL, models.ScheduledGame{
		GameID: "g2", Team: "boston", Opponent: "ottawa", GameDate: d1.AddDate(0, 0, 3),
	}))

	games, err := db.Source().Schedule(ctx, models.SportNHL, d1, d1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, start, games[0].StartTime)
	assert.Equal(t, "toronto", games[0].Opponent)
}

func TestEventRepository_ForSport(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ts := time.Date(2024, 5, 1, 23, 15, 0, 0, time.UTC)
	for i, flags := range [][]string{nil, {models.FlagStrikeout}} {
		require.NoError(t, db.Events.Insert(ctx, models.RawEvent{
			EventID: string(rune('a' + i)), SubjectID: "p1", GameID: "g1", Sport: models.SportMLB,
			Timestamp: ts.Add(time.Duration(i) * time.Minute), CountType: models.CountPitch, OutcomeFlags: flags,
		}))
	}

	events, err := db.Source().RawEvents(ctx, models.SportMLB)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].OutcomeFlags)
	assert.True(t, events[1].HasFlag(models.FlagStrikeout))
}

func TestLineOfferRepository_InsertBatch(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fetched := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	offers := []models.LineOffer{
		{PlayerName: "Ace", GameDate: date, Stat: models.StatStrikeouts, Side: models.SideOver, Line: 5.5, DecimalPrice: 1.9, Book: "dk", FetchedAt: fetched},
		{PlayerName: "Ace", GameDate: date, Stat: models.StatStrikeouts, Side: models.SideUnder, Line: 5.5, DecimalPrice: 1.95, Book: "dk", FetchedAt: fetched},
	}
	require.NoError(t, db.Lines.InsertBatch(ctx, offers))

	got, err := db.Lines.ForDate(ctx, models.StatStrikeouts, date)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.SideOver, got[0].Side)
	assert.True(t, got[0].GameStart.IsZero())
}

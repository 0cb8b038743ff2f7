package features

import (
	"context"
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mlbK     = models.Market{Sport: models.SportMLB, Stat: models.StatStrikeouts}
	nhlGoals = models.Market{Sport: models.SportNHL, Stat: models.StatGoals}
	day0     = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func pitcher(id, team, opp string, d, k int, pitches float64) models.PlayerGame {
	return models.PlayerGame{
		PlayerID: id, PlayerName: "P " + id, Team: team, Opponent: opp,
		GameDate: day(d), Strikeouts: k, Pitches: pitches,
	}
}

func fixedClock() time.Time {
	return day(30)
}

func newMLBBuilder(window, minGames int) *Builder {
	return NewBuilder(mlbK, window, minGames, dispersion.PitchLeash(), WithClock(fixedClock), WithWorkers(2))
}

func TestBuildUsesOnlyPriorGames(t *testing.T) {
	history := []models.PlayerGame{
		pitcher("p1", "Boston", "Tampa", 1, 5, 90),
		pitcher("p1", "Boston", "Tampa", 2, 6, 90),
		pitcher("p1", "Boston", "Tampa", 3, 7, 90),
		pitcher("p1", "Boston", "Tampa", 4, 8, 90),
		pitcher("p1", "Boston", "Tampa", 5, 100, 120),
		pitcher("p1", "Boston", "Tampa", 6, 50, 120),
	}
	b := newMLBBuilder(10, 3)
	h := b.Index(history)

	res, err := b.Build(context.Background(), h, []Target{{
		PlayerID: "p1", Team: "Boston", Opponent: "Tampa", GameDate: day(5),
	}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.InDelta(t, 6.5, row.RateL10, 1e-12)
	assert.InDelta(t, 90, row.VolumeL10, 1e-12)
	assert.InDelta(t, 6.5, row.OppStrength, 1e-12)
	assert.Equal(t, "deep", row.RegimeKey)
	assert.Equal(t, models.StatStrikeouts, row.Stat)
}

func TestBuildWindowAndMinGames(t *testing.T) {
	var history []models.PlayerGame
	for d := 1; d <= 6; d++ {
		history = append(history, pitcher("p1", "Boston", "Tampa", d, d, float64(40+d)))
	}
	b := newMLBBuilder(3, 3)
	h := b.Index(history)

	targets := HistoricalTargets(mlbK, h, day(0))
	require.Len(t, targets, 6)

	res, err := b.Build(context.Background(), h, targets)
	require.NoError(t, err)

	// days 1-3 have fewer than three prior games
	assert.Equal(t, 3, res.Dropped[DropInsufficientHistory])
	require.Len(t, res.Rows, 3)

	// day 6 window is days 3, 4, 5
	last := res.Rows[2]
	assert.Equal(t, day(6), last.GameDate)
	assert.InDelta(t, 4.0, last.RateL10, 1e-12)
	assert.InDelta(t, 44.0, last.VolumeL10, 1e-12)
	assert.Equal(t, "short", last.RegimeKey)
	require.NotNil(t, last.Actual)
	assert.Equal(t, 6, *last.Actual)
}

func TestBuildSkaterRatePer60(t *testing.T) {
	history := []models.PlayerGame{
		{PlayerID: "s1", Team: "Boston", Opponent: "Toronto", GameDate: day(1), Goals: 1, Minutes: 20},
		{PlayerID: "s1", Team: "Boston", Opponent: "Toronto", GameDate: day(2), Goals: 0, Minutes: 15},
		{PlayerID: "s1", Team: "Boston", Opponent: "Toronto", GameDate: day(3), Goals: 1, Minutes: 25},
		{PlayerID: "s2", Team: "Boston", Opponent: "Toronto", GameDate: day(3), Goals: 0, Minutes: 10},
	}
	b := NewBuilder(nhlGoals, 10, 3, dispersion.SkaterTOI(), WithClock(fixedClock))
	h := b.Index(history)

	res, err := b.Build(context.Background(), h, []Target{{PlayerID: "s1", Opponent: "Toronto", GameDate: day(4)}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.InDelta(t, 2.0, row.RateL10, 1e-12)
	assert.InDelta(t, 20.0, row.VolumeL10, 1e-12)
	// Toronto allowed 1, 0 and 1 goals on days 1-3
	assert.InDelta(t, 2.0/3.0, row.OppStrength, 1e-12)
	assert.Equal(t, "high", row.RegimeKey)
}

func TestBuildDropsMissingOpponentAndStaleRows(t *testing.T) {
	history := []models.PlayerGame{
		pitcher("p1", "Boston", "Tampa", 1, 5, 90),
		pitcher("p1", "Boston", "Tampa", 2, 6, 90),
		pitcher("p1", "Boston", "Tampa", 3, 7, 90),
		pitcher("p1", "Boston", "Tampa", 3, 7, 90),
		pitcher("p1", "Boston", "Tampa", 45, 9, 90),
		{PlayerID: "", GameDate: day(2)},
	}
	b := newMLBBuilder(10, 3)
	h := b.Index(history)
	assert.Equal(t, 1, h.Dropped[DropDuplicate])
	assert.Equal(t, 1, h.Dropped[DropFutureDated])
	assert.Equal(t, 1, h.Dropped[DropInvalid])

	res, err := b.Build(context.Background(), h, []Target{
		{PlayerID: "p1", Opponent: "New York", GameDate: day(4)},
		{PlayerID: "p1", Opponent: "", GameDate: day(4)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 2, res.Dropped[DropMissingOpponent])
	assert.Equal(t, 5, res.DroppedTotal())
}

func TestBuildCancelled(t *testing.T) {
	b := newMLBBuilder(10, 3)
	h := b.Index([]models.PlayerGame{pitcher("p1", "Boston", "Tampa", 1, 5, 90)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx, h, []Target{{PlayerID: "p1", Opponent: "Tampa", GameDate: day(2)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTeamIndexStrictlyPast(t *testing.T) {
	history := []models.PlayerGame{
		pitcher("p1", "Boston", "Tampa", 1, 4, 90),
		pitcher("p2", "Boston", "Tampa", 1, 2, 30),
		pitcher("p3", "Toronto", "Tampa", 2, 9, 100),
	}
	idx := NewTeamIndex(mlbK, history)

	_, ok := idx.AsOf("Tampa", day(1))
	assert.False(t, ok)

	td, ok := idx.AsOf("tampa", day(2))
	require.True(t, ok)
	assert.Equal(t, 1, td.Games)
	assert.InDelta(t, 6, td.AllowedPerGame, 1e-12)
	assert.InDelta(t, 120, td.Pace, 1e-12)

	td, ok = idx.AsOf("Tampa", day(3))
	require.True(t, ok)
	assert.Equal(t, 2, td.Games)
	assert.InDelta(t, 7.5, td.AllowedPerGame, 1e-12)
	assert.Equal(t, []string{"tampa"}, idx.Teams())
}

func TestSnapshotMatchesFullBuild(t *testing.T) {
	var history []models.PlayerGame
	for d := 1; d <= 12; d++ {
		history = append(history,
			pitcher("p1", "Boston", "Tampa", d, d%5+3, float64(60+d)),
			pitcher("p2", "Tampa", "Boston", d, d%3+4, float64(80+d)),
		)
	}
	b := newMLBBuilder(10, 3)
	h := b.Index(history)
	lookup := b.Snapshot(h)
	assert.Equal(t, day(13), lookup.AsOf)
	assert.Len(t, lookup.Players, 2)
	assert.Len(t, lookup.Teams, 2)

	schedule := []models.ScheduledGame{
		{GameID: "g1", Team: "Boston Red Sox", Opponent: "Tampa", GameDate: day(14), IsHome: true},
		{GameID: "g1", Team: "Tampa", Opponent: "Boston", GameDate: day(14)},
	}
	r := NewResolver(h.KnownTeams(), nil)

	full, drops := UpcomingTargets(h, schedule, day(14), r)
	require.Empty(t, drops)
	require.Len(t, full, 2)
	want, err := b.Build(context.Background(), h, full)
	require.NoError(t, err)

	served, drops := lookup.Targets(schedule, day(14), r)
	require.Empty(t, drops)
	got := b.FromLookup(lookup, served)

	require.Len(t, got.Rows, 2)
	assert.Equal(t, want.Rows, got.Rows)
	assert.True(t, got.Rows[0].IsHome)

	stale := b.FromLookup(lookup, []Target{{PlayerID: "p1", Opponent: "Tampa", GameDate: day(5)}})
	assert.Empty(t, stale.Rows)
	assert.Equal(t, 1, stale.Dropped[DropFutureDated])
}

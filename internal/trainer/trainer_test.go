package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/config"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/probability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mlbK  = models.Market{Sport: models.SportMLB, Stat: models.StatStrikeouts}
	epoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	trainDays = 400
	valDays   = 100
)

func trueMu(leash, opp float64) float64 {
	bucket := leash/30 - 1
	return math.Exp(0.2 + 0.05*bucket + 0.3*opp)
}

// synthPitchers places rows in each (leash, opp) cell of the train and validation windows and
// draws counts by stratified inverse CDF so moments match the generating distribution.
// Dates come from a shuffled index offset by cell, so counts are independent of date and the
// cells together cover every day of a window once 9*n reaches its span.
func synthPitchers(rng *rand.Rand, perCellTrain, perCellVal int, alphaFor func(leash float64) float64) []models.FeatureRow {
	var rows []models.FeatureRow
	id, cell := 0, 0
	for _, leash := range []float64{30, 60, 90} {
		for _, opp := range []float64{-1, 0, 1} {
			d := probability.New(trueMu(leash, opp), alphaFor(leash))
			windows := []struct{ start, span, n int }{{0, trainDays, perCellTrain}, {trainDays, valDays, perCellVal}}
			for _, w := range windows {
				slots := rng.Perm(w.n)
				for j := 0; j < w.n; j++ {
					y := quantile(d, (float64(j)+0.5)/float64(w.n))
					id++
					rows = append(rows, models.FeatureRow{
						PlayerID:    fmt.Sprintf("p%d", id),
						GameDate:    epoch.AddDate(0, 0, w.start+(cell*w.n+slots[j])%w.span),
						Stat:        models.StatStrikeouts,
						RateL10:     rng.Float64() * 8,
						VolumeL10:   leash,
						OppStrength: opp,
						IsHome:      rng.Intn(2) == 1,
						RegimeKey:   "",
						Actual:      &y,
					})
				}
			}
			cell++
		}
	}
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	return rows
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

func testOptions() Options {
	opts := DefaultOptions(epoch.AddDate(0, 0, trainDays+valDays))
	opts.Now = fixedNow
	return opts
}

func TestTrain_SyntheticPoissonPitchers(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rows := synthPitchers(rng, 889, 222, func(float64) float64 { return 0 })

	res, err := Train(rows, config.DefaultProfile(mlbK), features.Lookup{}, testOptions())
	require.NoError(t, err)

	meta := res.Artifact.Meta
	assert.Equal(t, epoch.AddDate(0, 0, trainDays), res.SplitDate)
	assert.LessOrEqual(t, meta.AlphaGlobal, 0.02)
	assert.False(t, meta.Degraded)
	assert.Equal(t, "20240601T090000Z", meta.TrainedAt.Format("20060102T150405Z"))
	assert.Equal(t, 0.0, meta.MarketWeight)

	var modelErr, oracleErr float64
	n := 0
	for _, r := range rows {
		if r.GameDate.Before(res.SplitDate) {
			continue
		}
		y := float64(*r.Actual)
		modelErr += math.Abs(y - res.InSample[r.Key()])
		oracleErr += math.Abs(y - trueMu(r.VolumeL10, r.OppStrength))
		n++
	}
	require.Equal(t, 9*222, n)
	assert.LessOrEqual(t, modelErr/float64(n), 1.1*oracleErr/float64(n))
}

func TestTrain_RegimeDispersionDetection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphaTrue := map[float64]float64{30: 0.20, 60: 0.08, 90: 0.02}
	rows := synthPitchers(rng, 5333, 1333, func(leash float64) float64 { return alphaTrue[leash] })

	profile := config.DefaultProfile(mlbK)
	profile.Dispersion.Floor = 0.05

	res, err := Train(rows, profile, features.Lookup{}, testOptions())
	require.NoError(t, err)

	table := res.Artifact.Meta.Dispersion
	want := map[string]float64{"short": 0.20, "mid": 0.08, "deep": 0.02}
	for key, alpha := range want {
		r, ok := table.Regimes[key]
		require.True(t, ok, key)
		assert.False(t, r.Fallback, key)
		assert.InDelta(t, alpha+profile.Dispersion.Bump, r.Alpha, 0.03, key)
	}
	assert.Greater(t, table.Regimes["short"].Alpha, table.Regimes["mid"].Alpha)
	assert.Greater(t, table.Regimes["mid"].Alpha, table.Regimes["deep"].Alpha)
}

func TestTrain_ThinRegimeFallsBackToGlobal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rows := synthPitchers(rng, 200, 12, func(float64) float64 { return 0.1 })

	profile := config.DefaultProfile(mlbK)
	res, err := Train(rows, profile, features.Lookup{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, epoch.AddDate(0, 0, trainDays), res.SplitDate)

	table := res.Artifact.Meta.Dispersion
	for _, key := range []string{"short", "mid", "deep"} {
		r, ok := table.Regimes[key]
		require.True(t, ok, key)
		assert.Equal(t, 3*12, r.N, key)
		assert.Less(t, r.N, profile.Dispersion.NMin, key)

		alpha, fallback := table.Lookup(key)
		assert.True(t, fallback, key)
		assert.Equal(t, table.AlphaGlobal, alpha, key)
	}
}

func TestTrain_Errors(t *testing.T) {
	y := 3
	oneDate := []models.FeatureRow{
		{PlayerID: "a", GameDate: epoch, Actual: &y},
		{PlayerID: "b", GameDate: epoch, Actual: &y},
	}
	_, err := Train(oneDate, config.DefaultProfile(mlbK), features.Lookup{}, DefaultOptions(time.Time{}))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	unlabeled := []models.FeatureRow{{PlayerID: "a", GameDate: epoch}}
	_, err = Train(unlabeled, config.DefaultProfile(mlbK), features.Lookup{}, DefaultOptions(time.Time{}))
	assert.Equal(t, apperr.KindEmpty, apperr.KindOf(err))

	late := []models.FeatureRow{{PlayerID: "a", GameDate: epoch, Actual: &y}}
	_, err = Train(late, config.DefaultProfile(mlbK), features.Lookup{}, DefaultOptions(epoch))
	assert.Equal(t, 4, apperr.ExitCode(err))

	nan := []models.FeatureRow{
		{PlayerID: "a", GameDate: epoch, Actual: &y, RateL10: math.NaN()},
		{PlayerID: "b", GameDate: epoch.AddDate(0, 0, 1), Actual: &y},
	}
	_, err = Train(nan, config.DefaultProfile(mlbK), features.Lookup{}, DefaultOptions(time.Time{}))
	assert.Equal(t, 2, apperr.ExitCode(err))
}

func TestSplitDate(t *testing.T) {
	var rows []models.FeatureRow
	for d := 0; d < 10; d++ {
		rows = append(rows, models.FeatureRow{GameDate: epoch.AddDate(0, 0, d)}, models.FeatureRow{GameDate: epoch.AddDate(0, 0, d)})
	}
	split, err := splitDate(rows, 0.2)
	require.NoError(t, err)
	assert.Equal(t, epoch.AddDate(0, 0, 8), split)
}

// quantile returns the smallest k with P(X <= k) >= u
func quantile(d probability.Dist, u float64) int {
	k := 0
	for k < 1000 && d.CDF(k) < u {
		k++
	}
	return k
}

package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/countmodel"
	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const market = "mlb_strikeouts"

var trainedAt = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func testArtifact() *Artifact {
	model := &countmodel.Model{
		FeatureOrder: models.FeatureOrder,
		Beta:         []float64{0.1, 0.05, 0.002, 0.08, 0.03},
		Alpha:        0.12,
		Bias:         -0.04,
		Family:       countmodel.FamilyNegBin,
		Converged:    true,
		Iterations:   7,
		LogLik:       -1234.5,
	}
	table := &dispersion.Table{
		Definition:  dispersion.PitchLeash(),
		Params:      dispersion.DefaultParams(),
		AlphaGlobal: 0.12,
		Regimes: map[string]dispersion.Regime{
			"short": {Key: "short", Alpha: 0.35, N: 400},
			"mid":   {Key: "mid", Alpha: 0.22, N: 800},
			"deep":  {Key: "deep", Alpha: 0.12, N: 10, Fallback: true},
		},
	}
	lookup := features.Lookup{
		Market: market,
		AsOf:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Players: map[string]models.PlayerSnapshot{
			"p1": {PlayerID: "p1", Team: "boston", Games: 10, RateL10: 6.1, VolumeL10: 92},
		},
		Teams: map[string]models.TeamDay{"tampa": {Team: "tampa", Games: 20, AllowedPerGame: 8.4}},
	}
	meta := Meta{
		Market:    market,
		TrainedAt: trainedAt,
		TrainEnd:  "2024-06-01",
		Rules:     edge.DefaultRules(),
		LineGrid:  []float64{4.5, 5.5},
		Window:    10,
		MinGames:  3,
	}
	return New(meta, model, table, lookup)
}

func TestSaveAndLoadLatest(t *testing.T) {
	store := NewStore(t.TempDir())
	a := testArtifact()

	version, err := store.Save(a)
	require.NoError(t, err)
	assert.Equal(t, "20240601T083000Z", version)

	got, err := store.Load(market, Latest, models.FeatureOrder)
	require.NoError(t, err)
	assert.Equal(t, version, got.Version())
	assert.Equal(t, a.Model.Beta, got.Model.Beta)
	assert.Equal(t, -0.04, got.Model.Bias)
	assert.Equal(t, countmodel.FamilyNegBin, got.Model.Family)
	assert.Equal(t, 0.0, got.Meta.MarketWeight)
	assert.Nil(t, got.Meta.Scaler)
	assert.Equal(t, a.Lookup.Players["p1"].RateL10, got.Lookup.Players["p1"].RateL10)
	assert.True(t, got.Lookup.AsOf.Equal(a.Lookup.AsOf))

	// the loaded artifact serves the same mean as the fitted model
	x := []float64{6.1, 92, 8.4, 1}
	assert.Equal(t, a.Model.PredictMu(x), got.PredictMu(x))

	alpha, fallback := got.Meta.Dispersion.Lookup("deep")
	assert.Equal(t, 0.12, alpha)
	assert.True(t, fallback)

	// 75 sits on the mid/deep cut; deep has the lower alpha
	key, alpha, _ := got.ResolveRegime(75)
	assert.Equal(t, "deep", key)
	assert.Equal(t, 0.12, alpha)
}

func TestSaveNeverOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	v1, err := store.Save(testArtifact())
	require.NoError(t, err)
	v2, err := store.Save(testArtifact())
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	versions, err := store.Versions(market)
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2}, versions)

	latest, err := store.Resolve(market, "")
	require.NoError(t, err)
	assert.Equal(t, v2, latest)

	pinned, err := store.Load(market, v1, models.FeatureOrder)
	require.NoError(t, err)
	assert.Equal(t, v1, pinned.Version())
}

func TestLoadRejectsFeatureOrderMismatch(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Save(testArtifact())
	require.NoError(t, err)

	swapped := []string{models.FeatureVolume, models.FeatureRate, models.FeatureOppStrength, models.FeatureIsHome}
	_, err = store.Load(market, Latest, swapped)
	assert.ErrorIs(t, err, ErrFeatureOrder)
	assert.Equal(t, 2, apperr.ExitCode(err))
}

func TestLoadRejectsCorruptCoefficients(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	version, err := store.Save(testArtifact())
	require.NoError(t, err)

	path := filepath.Join(root, "artifacts", market, version, CoefficientsFile)
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err = store.Load(market, version, models.FeatureOrder)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load(market, Latest, models.FeatureOrder)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(market, "20990101T000000Z", models.FeatureOrder)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLocked(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "artifacts", market), 0o755))

	unlock, err := store.lock(market)
	require.NoError(t, err)

	_, err = store.Save(testArtifact())
	assert.ErrorIs(t, err, ErrLocked)

	versions, err := store.Versions(market)
	require.NoError(t, err)
	assert.Empty(t, versions)

	unlock()
	_, err = store.Save(testArtifact())
	assert.NoError(t, err, "Should save once the writer releases the lock")
}

func TestSaveReclaimsStaleLockFile(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	dir := filepath.Join(root, "artifacts", market)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := fmt.Sprintf("999999 %s\n", time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFile), []byte(stale), 0o644))

	version, err := store.Save(testArtifact())
	require.NoError(t, err)

	got, err := store.Load(market, Latest, models.FeatureOrder)
	require.NoError(t, err)
	assert.Equal(t, version, got.Version())

	data, err := os.ReadFile(filepath.Join(dir, lockFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), fmt.Sprintf("%d ", os.Getpid())))
}

func TestCoefficientsCodec(t *testing.T) {
	var buf bytes.Buffer
	beta := []float64{1.5, -2.25, 0}
	require.NoError(t, encodeCoefficients(&buf, beta))
	assert.Equal(t, 8+8*len(beta), buf.Len())

	got, err := decodeCoefficients(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, beta, got)

	_, err = decodeCoefficients(buf.Bytes()[:buf.Len()-1])
	assert.ErrorIs(t, err, ErrCorrupt)
}

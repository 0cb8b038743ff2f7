// Package trainer fits the count model and dispersion regimes for one market.
package trainer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/artifact"
	"github.com/greenbier/propedge/internal/config"
	"github.com/greenbier/propedge/internal/countmodel"
	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/probability"

	"github.com/rs/zerolog/log"
)

// DefaultValidationFraction is the share of unique dates held out for bias and dispersion
const DefaultValidationFraction = 0.2

// Options configures a training pass
type Options struct {
	// TrainEnd excludes rows dated on or after it
	TrainEnd           time.Time
	ValidationFraction float64
	Solver             countmodel.Options
	Now                func() time.Time
}

// DefaultOptions returns a 20% validation window and default solver settings
func DefaultOptions(trainEnd time.Time) Options {
	return Options{
		TrainEnd:           trainEnd,
		ValidationFraction: DefaultValidationFraction,
		Solver:             countmodel.DefaultOptions(),
		Now:                time.Now,
	}
}

// Result is a trained artifact plus diagnostics
type Result struct {
	Artifact  *artifact.Artifact
	SplitDate time.Time
	// InSample holds the served mean for every labeled row used, keyed by row key
	InSample map[string]float64
	Dropped  map[string]int
}

// Train splits labeled rows chronologically, fits the count model on the earlier window,
// calibrates bias and regime dispersion on the later window, and assembles an artifact
func Train(rows []models.FeatureRow, p config.Profile, lookup features.Lookup, opts Options) (*Result, error) {
	if opts.ValidationFraction <= 0 || opts.ValidationFraction >= 1 {
		opts.ValidationFraction = DefaultValidationFraction
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	order := models.FeatureOrder
	res := &Result{InSample: make(map[string]float64), Dropped: make(map[string]int)}

	labeled := make([]models.FeatureRow, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.Actual == nil:
			res.Dropped["unlabeled"]++
		case !opts.TrainEnd.IsZero() && !r.GameDate.Before(opts.TrainEnd):
			res.Dropped["after_train_end"]++
		default:
			labeled = append(labeled, r)
		}
	}
	if len(labeled) == 0 {
		return nil, apperr.Empty("train", "labeled feature rows")
	}

	split, err := splitDate(labeled, opts.ValidationFraction)
	if err != nil {
		return nil, apperr.Validation("train", err)
	}
	res.SplitDate = split

	var fitX, valX [][]float64
	var fitY, valY []float64
	var valRows []models.FeatureRow
	for _, r := range labeled {
		x, err := r.Vector(order)
		if err != nil {
			return nil, apperr.Validation("train", err)
		}
		if r.GameDate.Before(split) {
			fitX = append(fitX, x)
			fitY = append(fitY, float64(*r.Actual))
			continue
		}
		valX = append(valX, x)
		valY = append(valY, float64(*r.Actual))
		valRows = append(valRows, r)
	}

	model, err := countmodel.Fit(fitX, fitY, order, opts.Solver)
	if errors.Is(err, countmodel.ErrBadInput) {
		return nil, apperr.Validation("train", err)
	}
	if err != nil {
		return nil, apperr.Model("train", err)
	}
	if model.Degraded {
		log.Warn().Str("market", p.Market.Key()).Str("reason", model.DegradedReason).Msg("Count model degraded to Poisson")
	}

	if err := model.CalibrateBias(valX, valY); err != nil {
		return nil, apperr.Validation("train", err)
	}

	obs := make([]dispersion.Observation, len(valX))
	for i, x := range valX {
		obs[i] = dispersion.Observation{Volume: valRows[i].VolumeL10, Mu: model.PredictMu(x), Y: valY[i]}
	}
	alphaGlobal := math.Max(model.Alpha, opts.Solver.AlphaMin)
	table, err := dispersion.Estimate(p.Regimes, obs, p.Dispersion, alphaGlobal)
	if err != nil {
		return nil, apperr.Validation("train", err)
	}

	alphas := make([]float64, 0, len(table.Regimes)+1)
	for _, r := range table.Regimes {
		alphas = append(alphas, r.Alpha)
	}
	alphas = append(alphas, alphaGlobal)
	grid := probability.Grid{Mus: probability.DefaultMuGrid(), Alphas: alphas, Lines: p.LineGrid, MaxK: 10}
	if err := probability.CheckMonotone(grid); err != nil {
		return nil, apperr.Validation("train", fmt.Errorf("probability grid check failed: %w", err))
	}

	for _, r := range labeled {
		x, _ := r.Vector(order)
		res.InSample[r.Key()] = model.PredictMu(x)
	}

	trainedAt := opts.Now().UTC()
	meta := artifact.Meta{
		Market:         p.Market.Key(),
		TrainedAt:      trainedAt,
		TrainEnd:       opts.TrainEnd.Format(models.DateLayout),
		TrainRows:      len(fitX),
		ValidationRows: len(valX),
		Rules:          p.Rules,
		LineGrid:       append([]float64(nil), p.LineGrid...),
		Window:         p.Window,
		MinGames:       p.MinGames,
	}
	res.Artifact = artifact.New(meta, model, table, lookup)

	log.Info().
		Str("market", p.Market.Key()).
		Str("split_date", split.Format(models.DateLayout)).
		Int("train_rows", len(fitX)).
		Int("validation_rows", len(valX)).
		Str("family", string(model.Family)).
		Float64("alpha_global", alphaGlobal).
		Float64("bias", model.Bias).
		Interface("alpha_by_regime", table.Alphas()).
		Msg("Model trained")

	return res, nil
}

// splitDate returns the first validation date: the earliest (1-frac) of unique dates fit the model
func splitDate(rows []models.FeatureRow, frac float64) (time.Time, error) {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, r := range rows {
		if !seen[r.GameDate] {
			seen[r.GameDate] = true
			dates = append(dates, r.GameDate)
		}
	}
	if len(dates) < 2 {
		return time.Time{}, fmt.Errorf("need at least two game dates to split, have %d", len(dates))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	idx := int(math.Floor(float64(len(dates)) * (1 - frac)))
	if idx < 1 {
		idx = 1
	}
	if idx >= len(dates) {
		idx = len(dates) - 1
	}
	return dates[idx], nil
}

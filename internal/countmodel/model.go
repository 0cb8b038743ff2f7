// Package countmodel fits Negative Binomial (NB2) regressions with a log link.
package countmodel

import (
	"errors"
	"fmt"
	"math"

	"github.com/greenbier/propedge/internal/probability"
)

// Family names the fitted likelihood
type Family string

const (
	FamilyNegBin  Family = "negbin2"
	FamilyPoisson Family = "poisson"
)

var (
	ErrNotConverged   = errors.New("solver did not converge")
	ErrIllConditioned = errors.New("ill-conditioned design")
	ErrBadInput       = errors.New("invalid training input")
)

// Options tunes the solver
type Options struct {
	MaxIter  int     // IRLS iterations per alpha
	MaxOuter int     // beta/alpha alternations
	Tol      float64 // relative change in beta
	AlphaMin float64
	AlphaMax float64
	// BoundaryLR is the likelihood-ratio statistic below which alpha is pinned to AlphaMin
	BoundaryLR float64
	MaxCond    float64
}

// DefaultOptions returns production solver settings
func DefaultOptions() Options {
	return Options{
		MaxIter:    100,
		MaxOuter:   25,
		Tol:        1e-8,
		AlphaMin:   1e-6,
		AlphaMax:   10,
		BoundaryLR: 2.71,
		MaxCond:    1e12,
	}
}

// Model is a fitted count regression. Beta[0] is the intercept; Beta[i+1] pairs with FeatureOrder[i].
type Model struct {
	FeatureOrder   []string
	Beta           []float64
	Alpha          float64
	Bias           float64
	Family         Family
	Degraded       bool
	DegradedReason string
	Converged      bool
	Iterations     int
	LogLik         float64
	Rows           int
}

// Eta returns the linear predictor
func (m *Model) Eta(x []float64) float64 {
	eta := m.Beta[0]
	for i, v := range x {
		eta += m.Beta[i+1] * v
	}
	return eta
}

// PredictRaw returns exp(eta) with no bias correction
func (m *Model) PredictRaw(x []float64) float64 {
	return math.Exp(clampEta(m.Eta(x)))
}

// PredictMu returns the served mean: max(Epsilon, exp(eta) + bias)
func (m *Model) PredictMu(x []float64) float64 {
	return math.Max(probability.Epsilon, m.PredictRaw(x)+m.Bias)
}

// Dispersion returns the global alpha
func (m *Model) Dispersion() float64 {
	return m.Alpha
}

// CalibrateBias sets Bias = mean(y - raw prediction) over a held-out window
func (m *Model) CalibrateBias(X [][]float64, y []float64) error {
	if len(X) == 0 {
		m.Bias = 0
		return nil
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrBadInput, len(X), len(y))
	}
	var sum float64
	for i, x := range X {
		if len(x) != len(m.FeatureOrder) {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrBadInput, i, len(x), len(m.FeatureOrder))
		}
		sum += y[i] - m.PredictRaw(x)
	}
	m.Bias = sum / float64(len(X))
	return nil
}

func clampEta(eta float64) float64 {
	return math.Max(-30, math.Min(30, eta))
}

package countmodel

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Fit estimates an NB2 regression of y on X by maximum likelihood.
//
// Beta is solved by IRLS for a fixed alpha; alpha is then re-estimated by maximizing the
// profile likelihood, and the two steps alternate until alpha settles. When the Negative
// Binomial fit fails the model degrades to Poisson and records why.
func Fit(X [][]float64, y []float64, order []string, opts Options) (*Model, error) {
	design, err := buildDesign(X, y, order)
	if err != nil {
		return nil, err
	}

	nb, nbErr := fitNegBin(design, y, opts)
	pois, poisErr := fitPoisson(design, y, opts)
	return choose(nb, nbErr, pois, poisErr, order, opts)
}

// choose picks between the two fits. A converged NB fit is kept even when Poisson fails.
func choose(nb *Model, nbErr error, pois *Model, poisErr error, order []string, opts Options) (*Model, error) {
	switch {
	case nbErr == nil && poisErr == nil:
		lr := 2 * (nb.LogLik - pois.LogLik)
		if lr < opts.BoundaryLR {
			// no evidence of overdispersion: keep the Poisson mean, pin alpha at the boundary
			pois.Alpha = opts.AlphaMin
			pois.FeatureOrder = order
			return pois, nil
		}
		nb.FeatureOrder = order
		return nb, nil

	case nbErr == nil:
		log.Warn().Err(poisErr).Msg("Poisson fit failed, keeping Negative Binomial fit")
		nb.FeatureOrder = order
		return nb, nil

	case poisErr == nil:
		log.Warn().Err(nbErr).Msg("Negative Binomial fit failed, falling back to Poisson")
		pois.Degraded = true
		pois.DegradedReason = nbErr.Error()
		pois.Alpha = opts.AlphaMin
		pois.FeatureOrder = order
		return pois, nil
	}

	return nil, fmt.Errorf("failed to fit count model: %w", errors.Join(nbErr, poisErr))
}

type design struct {
	x    *mat.Dense
	rows int
	cols int
}

func buildDesign(X [][]float64, y []float64, order []string) (*design, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrBadInput, len(X), len(y))
	}
	p := len(order) + 1
	if len(X) <= p {
		return nil, fmt.Errorf("%w: %d rows for %d coefficients", ErrBadInput, len(X), p)
	}

	data := make([]float64, 0, len(X)*p)
	for i, row := range X {
		if len(row) != len(order) {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrBadInput, i, len(row), len(order))
		}
		if y[i] < 0 || math.IsNaN(y[i]) {
			return nil, fmt.Errorf("%w: label %v at row %d", ErrBadInput, y[i], i)
		}
		data = append(data, 1)
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite feature at row %d", ErrBadInput, i)
			}
			data = append(data, v)
		}
	}

	return &design{x: mat.NewDense(len(X), p, data), rows: len(X), cols: p}, nil
}

func (d *design) eta(beta []float64, i int) float64 {
	row := d.x.RawRowView(i)
	var eta float64
	for j, b := range beta {
		eta += row[j] * b
	}
	return clampEta(eta)
}

func (d *design) means(beta []float64) []float64 {
	mu := make([]float64, d.rows)
	for i := range mu {
		mu[i] = math.Exp(d.eta(beta, i))
	}
	return mu
}

func initialBeta(y []float64, p int) []float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	beta := make([]float64, p)
	beta[0] = math.Log(sum/float64(len(y)) + 0.1)
	return beta
}

func fitPoisson(d *design, y []float64, opts Options) (*Model, error) {
	beta, iters, err := irls(d, y, 0, initialBeta(y, d.cols), opts)
	if err != nil {
		return nil, err
	}
	return &Model{
		Beta:       beta,
		Alpha:      0,
		Family:     FamilyPoisson,
		Converged:  true,
		Iterations: iters,
		LogLik:     logLik(y, d.means(beta), 0),
		Rows:       d.rows,
	}, nil
}

func fitNegBin(d *design, y []float64, opts Options) (*Model, error) {
	beta := initialBeta(y, d.cols)
	alpha := 0.1
	total := 0

	for outer := 0; outer < opts.MaxOuter; outer++ {
		next, iters, err := irls(d, y, alpha, beta, opts)
		total += iters
		if err != nil {
			return nil, err
		}
		beta = next

		newAlpha := maximizeAlpha(y, d.means(beta), opts)
		settled := math.Abs(math.Log(newAlpha)-math.Log(alpha)) < 1e-6
		alpha = newAlpha
		if settled {
			beta, iters, err = irls(d, y, alpha, beta, opts)
			total += iters
			if err != nil {
				return nil, err
			}
			return &Model{
				Beta:       beta,
				Alpha:      alpha,
				Family:     FamilyNegBin,
				Converged:  true,
				Iterations: total,
				LogLik:     logLik(y, d.means(beta), alpha),
				Rows:       d.rows,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: alpha did not settle after %d alternations", ErrNotConverged, opts.MaxOuter)
}

// irls runs Fisher scoring for beta with alpha held fixed (alpha 0 is Poisson)
func irls(d *design, y []float64, alpha float64, start []float64, opts Options) ([]float64, int, error) {
	p := d.cols
	beta := append([]float64(nil), start...)
	ll := logLik(y, d.means(beta), alpha)

	for iter := 1; iter <= opts.MaxIter; iter++ {
		xtwx := mat.NewSymDense(p, nil)
		xtwz := mat.NewVecDense(p, nil)

		for i := 0; i < d.rows; i++ {
			row := d.x.RawRowView(i)
			eta := d.eta(beta, i)
			mu := math.Exp(eta)
			w := mu / (1 + alpha*mu)
			z := eta + (y[i]-mu)/mu
			for a := 0; a < p; a++ {
				xtwz.SetVec(a, xtwz.AtVec(a)+w*row[a]*z)
				for b := a; b < p; b++ {
					xtwx.SetSym(a, b, xtwx.At(a, b)+w*row[a]*row[b])
				}
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(xtwx); !ok {
			return nil, iter, fmt.Errorf("%w: weighted normal equations are not positive definite", ErrIllConditioned)
		}
		if cond := chol.Cond(); cond > opts.MaxCond {
			return nil, iter, fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, cond)
		}

		var solved mat.VecDense
		if err := chol.SolveVecTo(&solved, xtwz); err != nil {
			return nil, iter, fmt.Errorf("%w: %v", ErrIllConditioned, err)
		}
		next := make([]float64, p)
		for j := range next {
			next[j] = solved.AtVec(j)
		}

		// step halving keeps the likelihood non-decreasing
		nextLL := logLik(y, d.means(next), alpha)
		for half := 0; half < 20 && (math.IsNaN(nextLL) || nextLL < ll-1e-9); half++ {
			for j := range next {
				next[j] = (next[j] + beta[j]) / 2
			}
			nextLL = logLik(y, d.means(next), alpha)
		}

		var change float64
		for j := range next {
			change = math.Max(change, math.Abs(next[j]-beta[j])/(math.Abs(beta[j])+0.1))
		}
		beta, ll = next, nextLL
		if change < opts.Tol {
			return beta, iter, nil
		}
	}
	return nil, opts.MaxIter, fmt.Errorf("%w: IRLS exceeded %d iterations", ErrNotConverged, opts.MaxIter)
}

// Package probability turns a (mu, alpha) pair into Negative Binomial tail probabilities.
//
// Parameterization is NB2 with n = 1/alpha and p = n/(n+mu), so Var = mu + alpha*mu^2.
// Alpha at or below PoissonAlpha is treated as the Poisson limit.
package probability

import (
	"math"
)

const (
	// Epsilon is the smallest mean the engine will project
	Epsilon = 1e-6

	// PoissonAlpha is the dispersion below which the Poisson pmf is used directly
	PoissonAlpha = 1e-9
)

// Dist is a Negative Binomial count distribution
type Dist struct {
	Mu    float64
	Alpha float64
}

// New returns a distribution with mu clamped at zero and alpha clamped at zero
func New(mu, alpha float64) Dist {
	if mu < 0 || math.IsNaN(mu) {
		mu = 0
	}
	if alpha < 0 || math.IsNaN(alpha) {
		alpha = 0
	}
	return Dist{Mu: mu, Alpha: alpha}
}

// Variance returns mu + alpha*mu^2
func (d Dist) Variance() float64 {
	return d.Mu + d.Alpha*d.Mu*d.Mu
}

// PMFs returns P(X = k) for k in [0, maxK]
func (d Dist) PMFs(maxK int) []float64 {
	if maxK < 0 {
		return nil
	}
	out := make([]float64, maxK+1)
	if d.Mu == 0 {
		out[0] = 1
		return out
	}

	// log-space recurrence: p(k+1) = p(k) * (k+n)/(k+1) * mu/(n+mu)
	var logP, logRatio float64
	poisson := d.Alpha <= PoissonAlpha
	if poisson {
		logP = -d.Mu
		logRatio = math.Log(d.Mu)
	} else {
		n := 1 / d.Alpha
		logP = -n * math.Log1p(d.Mu/n)
		logRatio = math.Log(d.Mu) - math.Log(n+d.Mu)
	}

	for k := 0; k <= maxK; k++ {
		out[k] = clamp01(math.Exp(logP))
		if poisson {
			logP += logRatio - math.Log(float64(k+1))
		} else {
			n := 1 / d.Alpha
			logP += math.Log(float64(k)+n) - math.Log(float64(k+1)) + logRatio
		}
	}
	return out
}

// PMF returns P(X = k)
func (d Dist) PMF(k int) float64 {
	if k < 0 {
		return 0
	}
	return d.PMFs(k)[k]
}

// CDF returns P(X <= k)
func (d Dist) CDF(k int) float64 {
	if k < 0 {
		return 0
	}
	var sum float64
	for _, p := range d.PMFs(k) {
		sum += p
	}
	return clamp01(sum)
}

// AtLeast returns P(X >= k) = 1 - CDF(k-1)
func (d Dist) AtLeast(k int) float64 {
	if k <= 0 {
		return 1
	}
	return clamp01(1 - d.CDF(k-1))
}

// Tails returns P(X >= k) for k in [1, maxK]
func (d Dist) Tails(maxK int) []float64 {
	if maxK < 1 {
		return nil
	}
	pmf := d.PMFs(maxK - 1)
	out := make([]float64, maxK)
	var cdf float64
	for k := 1; k <= maxK; k++ {
		cdf += pmf[k-1]
		out[k-1] = clamp01(1 - clamp01(cdf))
	}
	return out
}

// Over returns P(X > line)
func (d Dist) Over(line float64) float64 {
	return clamp01(1 - d.CDF(int(math.Floor(line))))
}

// Under returns P(X < line)
func (d Dist) Under(line float64) float64 {
	if IsIntegerLine(line) {
		return d.CDF(int(line) - 1)
	}
	return d.CDF(int(math.Floor(line)))
}

// Push returns P(X == line); zero on half-integer lines
func (d Dist) Push(line float64) float64 {
	if !IsIntegerLine(line) {
		return 0
	}
	return d.PMF(int(line))
}

// Sides returns over, under and push probabilities for a line
func (d Dist) Sides(line float64) (over, under, push float64) {
	over = d.Over(line)
	push = d.Push(line)
	under = clamp01(1 - over - push)
	return over, under, push
}

// IsIntegerLine reports whether a line can push
func IsIntegerLine(line float64) bool {
	return line == math.Trunc(line)
}

// ShiftMu applies the over-side shift: max(Epsilon, mu + delta)
func ShiftMu(mu, delta float64) float64 {
	return math.Max(Epsilon, mu+delta)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

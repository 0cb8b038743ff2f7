package countmodel

import "math"

const goldenRatio = 0.6180339887498949

// logLik is the NB2 log-likelihood; alpha 0 gives the Poisson log-likelihood
func logLik(y, mu []float64, alpha float64) float64 {
	var ll float64
	for i, yi := range y {
		ll += logPMF(yi, mu[i], alpha)
	}
	return ll
}

func logPMF(y, mu, alpha float64) float64 {
	lgY1, _ := math.Lgamma(y + 1)
	if alpha <= 0 {
		return y*math.Log(mu) - mu - lgY1
	}
	n := 1 / alpha
	// lgamma(y+n) - lgamma(n) as a finite sum keeps precision when n is large
	var rising float64
	for j := 0; j < int(y); j++ {
		rising += math.Log(n + float64(j))
	}
	return rising - lgY1 - n*math.Log1p(mu/n) + y*(math.Log(mu)-math.Log(n+mu))
}

// maximizeAlpha runs a golden-section search over log(alpha) for the profile likelihood
func maximizeAlpha(y, mu []float64, opts Options) float64 {
	lo, hi := math.Log(opts.AlphaMin), math.Log(opts.AlphaMax)
	f := func(t float64) float64 { return logLik(y, mu, math.Exp(t)) }

	a := hi - goldenRatio*(hi-lo)
	b := lo + goldenRatio*(hi-lo)
	fa, fb := f(a), f(b)
	for i := 0; i < 80 && hi-lo > 1e-7; i++ {
		if fa < fb {
			lo, a, fa = a, b, fb
			b = lo + goldenRatio*(hi-lo)
			fb = f(b)
		} else {
			hi, b, fb = b, a, fa
			a = hi - goldenRatio*(hi-lo)
			fa = f(a)
		}
	}

	best := math.Exp((lo + hi) / 2)
	if f(math.Log(opts.AlphaMin)) >= logLik(y, mu, best) {
		return opts.AlphaMin
	}
	return best
}

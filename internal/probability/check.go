package probability

import (
	"fmt"
	"math"
)

// Grid describes the (mu, alpha, line) space swept by CheckMonotone
type Grid struct {
	Mus    []float64
	Alphas []float64
	Lines  []float64
	MaxK   int
}

// DefaultMuGrid spans the means seen in practice for player props
func DefaultMuGrid() []float64 {
	mus := make([]float64, 0, 80)
	for mu := 0.05; mu <= 20; mu += 0.25 {
		mus = append(mus, mu)
	}
	return mus
}

// HalfLines returns lo, lo+1, ... up to hi
func HalfLines(lo, hi float64) []float64 {
	var lines []float64
	for l := lo; l <= hi+1e-9; l++ {
		lines = append(lines, l)
	}
	return lines
}

// CheckMonotone verifies that P(>=k) is non-increasing in k, probabilities stay in [0,1]
// and Over, Under and Push computed separately sum to one for every grid point
func CheckMonotone(g Grid) error {
	maxK := g.MaxK
	if maxK <= 0 {
		maxK = 10
	}
	for _, alpha := range g.Alphas {
		for _, mu := range g.Mus {
			d := New(mu, alpha)
			prev := 1.0
			for k, p := range d.Tails(maxK) {
				if math.IsNaN(p) || p < 0 || p > 1 {
					return fmt.Errorf("P(>=%d) out of range at mu=%v alpha=%v: %v", k+1, mu, alpha, p)
				}
				if p > prev+1e-12 {
					return fmt.Errorf("P(>=%d)=%v exceeds P(>=%d)=%v at mu=%v alpha=%v", k+1, p, k, prev, mu, alpha)
				}
				prev = p
			}
			for _, line := range g.Lines {
				over, under, push := d.Over(line), d.Under(line), d.Push(line)
				if math.Abs(over+under+push-1) > 1e-9 {
					return fmt.Errorf("line %v does not sum to one at mu=%v alpha=%v", line, mu, alpha)
				}
			}
		}
	}
	return nil
}

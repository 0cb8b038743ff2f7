package probability

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poissonAtLeast(mu float64, k int) float64 {
	var cdf float64
	term := math.Exp(-mu)
	for j := 0; j < k; j++ {
		cdf += term
		term *= mu / float64(j+1)
	}
	return 1 - cdf
}

func TestDist_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		mu   float64
		line float64
		over float64
	}{
		{"mu 4.0 line 4.5", 4.0, 4.5, 0.369316},
		{"mu 3.75 line 4.5", 3.75, 4.5, 0.327844},
		{"mu 3.2 line 5.5", 3.2, 5.5, 0.132197},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.mu, 0.10)
			assert.InDelta(t, tt.over, d.Over(tt.line), 1e-5)
			assert.InDelta(t, 1-tt.over, d.Under(tt.line), 1e-5)
			assert.Zero(t, d.Push(tt.line))
		})
	}
}

func TestDist_IntegerLinePush(t *testing.T) {
	d := New(5, 0.10)

	over, under, push := d.Sides(5)

	assert.InDelta(t, 0.142871, push, 1e-5)
	assert.InDelta(t, 0.475500, under, 1e-5)
	assert.InDelta(t, 0.381628, over, 1e-5)
	assert.InDelta(t, 1.0, over+under+push, 1e-12)
	assert.InDelta(t, d.Under(5), under, 1e-12)
}

func TestDist_ZeroMean(t *testing.T) {
	d := New(0, 0.2)

	assert.Equal(t, 1.0, d.AtLeast(0))
	assert.Equal(t, 0.0, d.AtLeast(1))
	assert.Equal(t, 1.0, d.CDF(0))

	tiny := New(1e-6, 0.2)
	assert.InDelta(t, 0, tiny.AtLeast(1), 1e-5)
	assert.Equal(t, 1.0, tiny.AtLeast(0))
}

func TestDist_PoissonLimit(t *testing.T) {
	for _, alpha := range []float64{0, 1e-12, 1e-7} {
		d := New(2.5, alpha)
		tails := d.Tails(5)
		for k := 1; k <= 5; k++ {
			assert.InDelta(t, poissonAtLeast(2.5, k), tails[k-1], 1e-6, "alpha=%v k=%d", alpha, k)
		}
	}
}

func TestDist_NegativeInputsClamp(t *testing.T) {
	d := New(-3, -1)
	assert.Equal(t, 0.0, d.Mu)
	assert.Equal(t, 0.0, d.Alpha)
	assert.Equal(t, 0.0, d.PMF(-1))
	assert.Equal(t, 0.0, d.CDF(-1))
}

func TestShiftMu(t *testing.T) {
	assert.Equal(t, 3.75, ShiftMu(4.0, -0.25))
	assert.Equal(t, Epsilon, ShiftMu(0.1, -0.25))
}

func TestDist_MonotonicityFuzz(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		mu := 0.1 + rng.Float64()*19.9
		alpha := 0.01 + rng.Float64()*0.49
		d := New(mu, alpha)

		prev := d.AtLeast(0)
		require.Equal(t, 1.0, prev)
		for k := 1; k <= 10; k++ {
			p := d.AtLeast(k)
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, prev+1e-12, "mu=%v alpha=%v k=%d", mu, alpha, k)
			prev = p
		}

		for line := 0.5; line <= 9.5; line++ {
			require.InDelta(t, 1.0, d.Over(line)+d.Under(line), 1e-12, "mu=%v alpha=%v line=%v", mu, alpha, line)
		}
	}
}

func TestCheckMonotone(t *testing.T) {
	err := CheckMonotone(Grid{
		Mus:    DefaultMuGrid(),
		Alphas: []float64{1e-6, 0.15, 0.3},
		Lines:  append(HalfLines(0.5, 9.5), 3, 5),
		MaxK:   10,
	})
	assert.NoError(t, err)
}

func TestDist_SidesAgreeWithUnder(t *testing.T) {
	for _, alpha := range []float64{1e-6, 0.1, 0.4} {
		for _, mu := range []float64{0.3, 2.5, 6, 14} {
			d := New(mu, alpha)
			for _, line := range []float64{0, 1, 2.5, 4, 5.5, 9} {
				over, under, push := d.Sides(line)
				assert.InDelta(t, d.Under(line), under, 1e-9, "mu=%v alpha=%v line=%v", mu, alpha, line)
				assert.InDelta(t, 1, d.Over(line)+d.Under(line)+d.Push(line), 1e-9)
				assert.InDelta(t, 1, over+under+push, 1e-9)
			}
		}
	}
}

func TestHalfLines(t *testing.T) {
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, HalfLines(0.5, 2.5))
}

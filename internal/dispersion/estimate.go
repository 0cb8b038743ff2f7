package dispersion

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Params controls the method-of-moments estimate
type Params struct {
	Floor float64 `json:"alpha_floor" mapstructure:"alpha_floor"`
	Bump  float64 `json:"alpha_bump" mapstructure:"alpha_bump"`
	// BumpByRegime overrides Bump for individual regimes
	BumpByRegime map[string]float64 `json:"alpha_bump_by_regime,omitempty" mapstructure:"alpha_bump_by_regime"`
	NMin         int                `json:"n_min" mapstructure:"n_min"`
}

// DefaultParams returns floor 0.15, bump 0.10 and a 50-row minimum
func DefaultParams() Params {
	return Params{Floor: 0.15, Bump: 0.10, NMin: 50}
}

// BumpFor returns the conservatism margin for a regime
func (p Params) BumpFor(key string) float64 {
	if b, ok := p.BumpByRegime[key]; ok {
		return b
	}
	return p.Bump
}

// Observation is one validation row: its regime scalar, fitted mean and observed count
type Observation struct {
	Volume float64
	Mu     float64
	Y      float64
}

// Regime is the estimate for one bucket
type Regime struct {
	Key      string  `json:"key"`
	Alpha    float64 `json:"alpha"`
	Raw      float64 `json:"alpha_raw"`
	Bump     float64 `json:"alpha_bump"`
	N        int     `json:"n"`
	Fallback bool    `json:"fallback"`
}

// Table is the regime -> alpha lookup persisted with the model
type Table struct {
	Definition  Definition        `json:"definition"`
	Params      Params            `json:"params"`
	AlphaGlobal float64           `json:"alpha_global"`
	Regimes     map[string]Regime `json:"regimes"`
}

// Estimate computes alpha per regime:
//
//	alpha_R = (Var(y - mu) - mean(mu)) / mean(mu^2)
//	alpha_R = max(floor, alpha_R + bump)
//
// Regimes with fewer than NMin rows use alphaGlobal and are flagged.
func Estimate(def Definition, obs []Observation, params Params, alphaGlobal float64) (*Table, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if alphaGlobal <= 0 || math.IsNaN(alphaGlobal) {
		return nil, fmt.Errorf("global alpha must be positive, got %v", alphaGlobal)
	}

	buckets := make(map[string][]Observation, len(def.Keys))
	for _, o := range obs {
		key := def.Key(o.Volume)
		buckets[key] = append(buckets[key], o)
	}

	table := &Table{
		Definition:  def,
		Params:      params,
		AlphaGlobal: alphaGlobal,
		Regimes:     make(map[string]Regime, len(def.Keys)),
	}

	for _, key := range def.Keys {
		rows := buckets[key]
		r := Regime{Key: key, N: len(rows), Bump: params.BumpFor(key)}

		if len(rows) < params.NMin || len(rows) < 2 {
			r.Alpha = alphaGlobal
			r.Fallback = true
			log.Warn().
				Str("regime", key).
				Int("rows", len(rows)).
				Int("n_min", params.NMin).
				Float64("alpha_global", alphaGlobal).
				Msg("Regime below minimum rows, using global alpha")
			table.Regimes[key] = r
			continue
		}

		r.Raw = momentAlpha(rows)
		r.Alpha = math.Max(params.Floor, r.Raw+r.Bump)
		table.Regimes[key] = r

		log.Debug().
			Str("regime", key).
			Int("rows", len(rows)).
			Float64("alpha_raw", r.Raw).
			Float64("alpha", r.Alpha).
			Msg("Regime dispersion estimated")
	}

	return table, nil
}

func momentAlpha(rows []Observation) float64 {
	resid := make([]float64, len(rows))
	mus := make([]float64, len(rows))
	sq := make([]float64, len(rows))
	for i, o := range rows {
		resid[i] = o.Y - o.Mu
		mus[i] = o.Mu
		sq[i] = o.Mu * o.Mu
	}
	meanSq := floats.Sum(sq) / float64(len(sq))
	if meanSq == 0 {
		return 0
	}
	return (stat.Variance(resid, nil) - stat.Mean(mus, nil)) / meanSq
}

// Lookup returns alpha for a regime key and whether it is the global fallback
func (t *Table) Lookup(key string) (float64, bool) {
	r, ok := t.Regimes[key]
	if !ok {
		return t.AlphaGlobal, true
	}
	return r.Alpha, r.Fallback
}

// Resolve buckets a volume and returns the regime, its alpha and the fallback flag.
// A volume on a cut takes the neighbor with the lower alpha.
func (t *Table) Resolve(volume float64) (string, float64, bool) {
	candidates := t.Definition.Neighbors(volume)
	bestKey := candidates[0]
	bestAlpha, bestFallback := t.Lookup(bestKey)
	for _, key := range candidates[1:] {
		alpha, fallback := t.Lookup(key)
		if alpha < bestAlpha {
			bestKey, bestAlpha, bestFallback = key, alpha, fallback
		}
	}
	return bestKey, bestAlpha, bestFallback
}

// Alphas returns regime -> alpha
func (t *Table) Alphas() map[string]float64 {
	out := make(map[string]float64, len(t.Regimes))
	for k, r := range t.Regimes {
		out[k] = r.Alpha
	}
	return out
}

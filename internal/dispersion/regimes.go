// Package dispersion estimates regime-specific Negative Binomial dispersion.
package dispersion

import (
	"fmt"
	"sort"
)

// Definition partitions subjects by a scalar (volume_L10) into ordered buckets.
// Keys[i] covers values between Cuts[i-1] and Cuts[i]; a value equal to a cut is a tie.
type Definition struct {
	Variable string    `json:"variable" mapstructure:"variable"`
	Cuts     []float64 `json:"cuts" mapstructure:"cuts"`
	Keys     []string  `json:"keys" mapstructure:"keys"`
}

// Validate checks the definition is ordered and has at most four regimes
func (d Definition) Validate() error {
	if len(d.Keys) == 0 {
		return fmt.Errorf("regime definition has no keys")
	}
	if len(d.Keys) > 4 {
		return fmt.Errorf("regime definition has %d regimes, at most 4 allowed", len(d.Keys))
	}
	if len(d.Keys) != len(d.Cuts)+1 {
		return fmt.Errorf("regime definition has %d keys for %d cuts", len(d.Keys), len(d.Cuts))
	}
	if !sort.Float64sAreSorted(d.Cuts) {
		return fmt.Errorf("regime cuts must be ascending: %v", d.Cuts)
	}
	seen := make(map[string]bool, len(d.Keys))
	for _, k := range d.Keys {
		if seen[k] {
			return fmt.Errorf("duplicate regime key %q", k)
		}
		seen[k] = true
	}
	return nil
}

// Key buckets a value; a value on a cut maps to the middle-side bucket
// (below the lowest cut is Keys[0], above the highest is the last key)
func (d Definition) Key(v float64) string {
	for i, cut := range d.Cuts {
		if v < cut {
			return d.Keys[i]
		}
		if v == cut {
			if i == 0 && len(d.Cuts) > 1 {
				return d.Keys[i+1]
			}
			return d.Keys[i]
		}
	}
	return d.Keys[len(d.Keys)-1]
}

// Neighbors returns the two buckets a value on a cut sits between, or a single bucket
func (d Definition) Neighbors(v float64) []string {
	for i, cut := range d.Cuts {
		if v == cut {
			return []string{d.Keys[i], d.Keys[i+1]}
		}
	}
	return []string{d.Key(v)}
}

// PitchLeash buckets pitchers by rolling pitch count: short below 45, deep above 75
func PitchLeash() Definition {
	return Definition{Variable: "volume_L10", Cuts: []float64{45, 75}, Keys: []string{"short", "mid", "deep"}}
}

// SkaterTOI buckets skaters by rolling time on ice in minutes
func SkaterTOI() Definition {
	return Definition{Variable: "volume_L10", Cuts: []float64{14, 18}, Keys: []string{"low", "mid", "high"}}
}

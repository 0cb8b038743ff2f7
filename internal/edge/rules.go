// Package edge turns projections and book prices into bet/pass decisions.
package edge

import (
	"fmt"
)

// Rules are the sport-specific decision constants locked into each artifact
type Rules struct {
	EdgeReqOver   float64 `json:"edge_req_over" mapstructure:"edge_req_over"`
	EdgeReqUnder  float64 `json:"edge_req_under" mapstructure:"edge_req_under"`
	OverVolumeMin float64 `json:"over_volume_min" mapstructure:"over_volume_min"`
	PriceMin      float64 `json:"price_min" mapstructure:"price_min"`
	PriceMax      float64 `json:"price_max" mapstructure:"price_max"`
	MaxRawEdge    float64 `json:"max_raw_edge" mapstructure:"max_raw_edge"`
	MuShift       float64 `json:"mu_shift" mapstructure:"mu_shift"`
	// MarketWeight blends the implied probability into the model probability; 0 uses the raw model
	MarketWeight float64 `json:"market_weight" mapstructure:"market_weight"`
}

// DefaultRules returns the pitcher strikeout rules
func DefaultRules() Rules {
	return Rules{
		EdgeReqOver:   0.07,
		EdgeReqUnder:  0.04,
		OverVolumeMin: 85,
		PriceMin:      1.40,
		PriceMax:      3.00,
		MaxRawEdge:    0.18,
		MuShift:       -0.25,
	}
}

// Validate validates the rules
func (r Rules) Validate() error {
	if r.EdgeReqOver < 0 || r.EdgeReqUnder < 0 {
		return fmt.Errorf("edge requirements must be non-negative")
	}
	if r.PriceMin <= 1 || r.PriceMax <= r.PriceMin {
		return fmt.Errorf("invalid price band [%v, %v]", r.PriceMin, r.PriceMax)
	}
	if r.MaxRawEdge <= 0 {
		return fmt.Errorf("max raw edge must be positive")
	}
	if r.MuShift > 0 {
		return fmt.Errorf("mu shift must be zero or negative, got %v", r.MuShift)
	}
	if r.MarketWeight < 0 || r.MarketWeight >= 1 {
		return fmt.Errorf("market weight must be in [0, 1)")
	}
	return nil
}

// InBand reports whether a decimal price is inside the accepted interval
func (r Rules) InBand(price float64) bool {
	return price >= r.PriceMin && price <= r.PriceMax
}

// Staking converts Kelly fractions into suggested stakes
type Staking struct {
	KellyFraction float64
	KellyMax      float64
}

// Stake returns min(KellyMax, KellyFraction * f)
func (s Staking) Stake(f float64) float64 {
	stake := f * s.KellyFraction
	if s.KellyMax > 0 && stake > s.KellyMax {
		return s.KellyMax
	}
	return stake
}

// Kelly returns max(0, (q*p - 1) / (q - 1))
func Kelly(q, p float64) float64 {
	if q <= 1 {
		return 0
	}
	f := (q*p - 1) / (q - 1)
	if f < 0 {
		return 0
	}
	return f
}

// ImpliedProbability returns 1/q
func ImpliedProbability(q float64) (float64, error) {
	if q <= 1 {
		return 0, fmt.Errorf("decimal price must exceed 1.0, got %v", q)
	}
	return 1 / q, nil
}

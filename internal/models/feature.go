package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used in tables and paths
const DateLayout = "2006-01-02"

// Feature names in the order the count model consumes them
const (
	FeatureRate        = "rate_L10"
	FeatureVolume      = "volume_L10"
	FeatureOppStrength = "opp_strength"
	FeatureIsHome      = "is_home"
)

// FeatureOrder is the persisted column order of the design matrix (intercept excluded)
var FeatureOrder = []string{FeatureRate, FeatureVolume, FeatureOppStrength, FeatureIsHome}

var errNaNFeature = errors.New("NaN in required feature")

func errInvalid(msg string) error {
	return errors.New(msg)
}

// FeatureRow is the per-player-per-game model input
type FeatureRow struct {
	PlayerID    string    `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	Team        string    `json:"team"`
	Opponent    string    `json:"opponent"`
	GameDate    time.Time `json:"game_date"`
	Stat        Stat      `json:"stat"`
	RateL10     float64   `json:"rate_L10"`
	VolumeL10   float64   `json:"volume_L10"`
	OppStrength float64   `json:"opp_strength"`
	IsHome      bool      `json:"is_home"`
	RegimeKey   string    `json:"regime_key"`

	// Actual is the observed stat count; nil for upcoming games
	Actual *int `json:"actual,omitempty"`
}

// Key identifies the row as player|date
func (f FeatureRow) Key() string {
	return f.PlayerID + "|" + f.GameDate.Format(DateLayout)
}

// Value returns a named feature
func (f FeatureRow) Value(name string) (float64, error) {
	switch name {
	case FeatureRate:
		return f.RateL10, nil
	case FeatureVolume:
		return f.VolumeL10, nil
	case FeatureOppStrength:
		return f.OppStrength, nil
	case FeatureIsHome:
		if f.IsHome {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// Vector returns the features in the given order
func (f FeatureRow) Vector(order []string) ([]float64, error) {
	x := make([]float64, len(order))
	for i, name := range order {
		v, err := f.Value(name)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s for %s", errNaNFeature, name, f.Key())
		}
		x[i] = v
	}
	return x, nil
}

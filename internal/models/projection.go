package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// MaxThreshold is the largest k reported as P(stat >= k)
const MaxThreshold = 5

// Projection is the count distribution summary for one player-game
type Projection struct {
	PlayerID        string    `json:"player_id"`
	PlayerName      string    `json:"player_name"`
	Team            string    `json:"team"`
	Opponent        string    `json:"opponent"`
	GameDate        time.Time `json:"game_date"`
	Stat            Stat      `json:"stat"`
	Mu              float64   `json:"mu"`
	MuShifted       float64   `json:"mu_shifted"`
	RegimeKey       string    `json:"regime_key"`
	AlphaUsed       float64   `json:"alpha_used"`
	AlphaFallback   bool      `json:"alpha_fallback"`
	VolumeL10       float64   `json:"volume_L10"`
	ArtifactVersion string    `json:"artifact_version"`

	// AtLeast[k-1] = P(stat >= k) for k in 1..MaxThreshold
	AtLeast [MaxThreshold]float64 `json:"p_ge"`
	// Over maps a grid line to P(stat > line)
	Over map[float64]float64 `json:"p_over"`
}

// Key identifies the projection as player|date|stat
func (p Projection) Key() string {
	return fmt.Sprintf("%s|%s|%s", p.PlayerID, p.GameDate.Format(DateLayout), p.Stat)
}

// Validate checks probability bounds and monotonicity in k
func (p Projection) Validate() error {
	prev := 1.0
	for i, v := range p.AtLeast {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("P_ge_%d out of range: %v", i+1, v)
		}
		if v > prev {
			return fmt.Errorf("P_ge_%d=%v exceeds P_ge_%d=%v", i+1, v, i, prev)
		}
		prev = v
	}
	for line, v := range p.Over {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("P_over_%s out of range: %v", FormatLine(line), v)
		}
	}
	return nil
}

// FormatLine renders a line the way column names and keys carry it
func FormatLine(line float64) string {
	return strconv.FormatFloat(line, 'f', -1, 64)
}

// OverColumn is the projection column name for a grid line
func OverColumn(line float64) string {
	return "P_over_" + FormatLine(line)
}

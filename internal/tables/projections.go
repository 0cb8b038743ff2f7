package tables

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/greenbier/propedge/internal/models"
)

var projectionHead = []string{
	"player_id", "player_name", "team", "opponent", "game_date", "stat", "mu", "regime_key", "alpha_used",
}

var projectionTail = []string{"volume_L10", "alpha_fallback", "mu_shifted", "artifact_version"}

func atLeastColumn(k int) string {
	return fmt.Sprintf("P_ge_%d", k)
}

// WriteProjections writes a projection table with one P_over column per grid line
func WriteProjections(path string, grid []float64, rows []models.Projection) error {
	lines := append([]float64(nil), grid...)
	sort.Float64s(lines)

	header := append([]string(nil), projectionHead...)
	for k := 1; k <= models.MaxThreshold; k++ {
		header = append(header, atLeastColumn(k))
	}
	for _, l := range lines {
		header = append(header, models.OverColumn(l))
	}
	header = append(header, projectionTail...)

	return writeFile(path, header, func(emit func([]string) error) error {
		for _, p := range rows {
			row := []string{
				p.PlayerID, p.PlayerName, p.Team, p.Opponent, fd(p.GameDate), string(p.Stat),
				ff(p.Mu), p.RegimeKey, ff(p.AlphaUsed),
			}
			for _, v := range p.AtLeast {
				row = append(row, ff(v))
			}
			for _, l := range lines {
				v, ok := p.Over[l]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, ff(v))
			}
			row = append(row, ff(p.VolumeL10), fb(p.AlphaFallback), ff(p.MuShifted), p.ArtifactVersion)
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadProjections reads a projection table; P_over columns are discovered from the header
func ReadProjections(path string) ([]models.Projection, error) {
	var out []models.Projection
	err := readFile(path, []string{"player_id", "game_date", "stat", "mu", "alpha_used"}, func(r *record) error {
		p := models.Projection{
			PlayerID:        r.str("player_id"),
			PlayerName:      r.str("player_name"),
			Team:            r.str("team"),
			Opponent:        r.str("opponent"),
			GameDate:        r.date("game_date"),
			Stat:            models.Stat(r.str("stat")),
			Mu:              r.num("mu"),
			RegimeKey:       r.str("regime_key"),
			AlphaUsed:       r.num("alpha_used"),
			AlphaFallback:   r.flag("alpha_fallback"),
			VolumeL10:       r.optNum("volume_L10"),
			ArtifactVersion: r.str("artifact_version"),
			Over:            make(map[float64]float64),
		}
		p.MuShifted = p.Mu
		if r.str("mu_shifted") != "" {
			p.MuShifted = r.num("mu_shifted")
		}
		for k := 1; k <= models.MaxThreshold; k++ {
			p.AtLeast[k-1] = r.optNum(atLeastColumn(k))
		}
		for col := range r.cols {
			if !strings.HasPrefix(col, "P_over_") || r.str(col) == "" {
				continue
			}
			line, err := strconv.ParseFloat(strings.TrimPrefix(col, "P_over_"), 64)
			if err != nil {
				r.fail(col, err)
				continue
			}
			p.Over[line] = r.num(col)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

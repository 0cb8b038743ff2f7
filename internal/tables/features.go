package tables

import (
	"github.com/greenbier/propedge/internal/models"
)

var featureHeader = []string{
	"player_id", "player_name", "team", "opponent", "game_date", "stat",
	models.FeatureRate, models.FeatureVolume, models.FeatureOppStrength, models.FeatureIsHome,
	"regime_key", "actual",
}

// ReadFeatures reads a feature table
func ReadFeatures(path string) ([]models.FeatureRow, error) {
	var out []models.FeatureRow
	required := []string{"player_id", "game_date", models.FeatureRate, models.FeatureVolume, models.FeatureOppStrength, models.FeatureIsHome}
	err := readFile(path, required, func(r *record) error {
		out = append(out, models.FeatureRow{
			PlayerID:    r.str("player_id"),
			PlayerName:  r.str("player_name"),
			Team:        r.str("team"),
			Opponent:    r.str("opponent"),
			GameDate:    r.date("game_date"),
			Stat:        models.Stat(r.str("stat")),
			RateL10:     r.num(models.FeatureRate),
			VolumeL10:   r.num(models.FeatureVolume),
			OppStrength: r.num(models.FeatureOppStrength),
			IsHome:      r.flag(models.FeatureIsHome),
			RegimeKey:   r.str("regime_key"),
			Actual:      r.optCount("actual"),
		})
		return nil
	})
	return out, err
}

// WriteFeatures writes a feature table
func WriteFeatures(path string, rows []models.FeatureRow) error {
	return writeFile(path, featureHeader, func(emit func([]string) error) error {
		for _, f := range rows {
			err := emit([]string{
				f.PlayerID, f.PlayerName, f.Team, f.Opponent, fd(f.GameDate), string(f.Stat),
				ff(f.RateL10), ff(f.VolumeL10), ff(f.OppStrength), fb(f.IsHome),
				f.RegimeKey, fopt(f.Actual),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

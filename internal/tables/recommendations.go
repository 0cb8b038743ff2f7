package tables

import (
	"github.com/greenbier/propedge/internal/models"
)

var recommendationHeader = []string{
	"player_id", "game_date", "stat", "line", "side", "decimal_price", "model_prob", "implied_prob",
	"edge", "action", "reason_code", "kelly_fraction",
	"ev", "stake_fraction", "volume_L10", "artifact_version", "player_name", "book",
}

var gradedHeader = append(append([]string(nil), recommendationHeader...), "observed", "grade", "payout_multiple")

func recommendationRow(r models.Recommendation) []string {
	return []string{
		r.PlayerID, fd(r.GameDate), string(r.Stat), ff(r.Line), string(r.Side), ff(r.DecimalPrice),
		ff(r.ModelProb), ff(r.ImpliedProb), ff(r.Edge), string(r.Action), string(r.ReasonCode), ff(r.KellyFraction),
		ff(r.EV), ff(r.StakeFraction), ff(r.VolumeL10), r.ArtifactVersion, r.PlayerName, r.Book,
	}
}

func readRecommendation(r *record) models.Recommendation {
	rec := models.Recommendation{
		PlayerID:        r.str("player_id"),
		PlayerName:      r.str("player_name"),
		GameDate:        r.date("game_date"),
		Stat:            models.Stat(r.str("stat")),
		Line:            r.num("line"),
		Book:            r.str("book"),
		DecimalPrice:    r.num("decimal_price"),
		ModelProb:       r.optNum("model_prob"),
		ImpliedProb:     r.optNum("implied_prob"),
		Edge:            r.optNum("edge"),
		Action:          models.Action(r.str("action")),
		ReasonCode:      models.ReasonCode(r.str("reason_code")),
		KellyFraction:   r.optNum("kelly_fraction"),
		EV:              r.optNum("ev"),
		StakeFraction:   r.optNum("stake_fraction"),
		VolumeL10:       r.optNum("volume_L10"),
		ArtifactVersion: r.str("artifact_version"),
	}
	if side := r.str("side"); side != "" {
		s, err := models.ParseSide(side)
		if err != nil {
			r.fail("side", err)
		}
		rec.Side = s
	}
	return rec
}

// WriteRecommendations writes a recommendation table
func WriteRecommendations(path string, recs []models.Recommendation) error {
	return writeFile(path, recommendationHeader, func(emit func([]string) error) error {
		for _, r := range recs {
			if err := emit(recommendationRow(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadRecommendations reads a recommendation table
func ReadRecommendations(path string) ([]models.Recommendation, error) {
	var out []models.Recommendation
	err := readFile(path, []string{"player_id", "game_date", "stat", "line", "side", "decimal_price", "action"}, func(r *record) error {
		out = append(out, readRecommendation(r))
		return nil
	})
	return out, err
}

// WriteGraded writes a graded recommendation table
func WriteGraded(path string, graded []models.GradedRecommendation) error {
	return writeFile(path, gradedHeader, func(emit func([]string) error) error {
		for _, g := range graded {
			row := append(recommendationRow(g.Recommendation), fopt(g.Observed), string(g.Grade), ff(g.PayoutMultiple))
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadGraded reads a graded recommendation table
func ReadGraded(path string) ([]models.GradedRecommendation, error) {
	var out []models.GradedRecommendation
	err := readFile(path, []string{"player_id", "game_date", "line", "action", "grade"}, func(r *record) error {
		out = append(out, models.GradedRecommendation{
			Recommendation: readRecommendation(r),
			Observed:       r.optCount("observed"),
			Grade:          models.Grade(r.str("grade")),
			PayoutMultiple: r.optNum("payout_multiple"),
		})
		return nil
	})
	return out, err
}

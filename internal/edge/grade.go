package edge

import (
	"github.com/greenbier/propedge/internal/models"
)

// Grade settles a recommendation against the observed count.
// An observed count equal to an integer line is a push: stake returned, neither won nor lost.
func Grade(rec models.Recommendation, observed *int) models.GradedRecommendation {
	g := models.GradedRecommendation{Recommendation: rec, Observed: observed}

	switch {
	case !rec.IsBet():
		g.Grade = models.GradeNoAction
		return g
	case observed == nil:
		g.Grade = models.GradeUngraded
		return g
	}

	actual := float64(*observed)
	switch {
	case actual == rec.Line:
		g.Grade = models.GradePush
		g.PayoutMultiple = 1
	case (rec.Action == models.ActionBetOver) == (actual > rec.Line):
		g.Grade = models.GradeWon
		g.PayoutMultiple = rec.DecimalPrice
	default:
		g.Grade = models.GradeLost
	}
	return g
}

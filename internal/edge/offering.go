package edge

import (
	"errors"
	"fmt"

	"github.com/greenbier/propedge/internal/models"
)

// State is the lifecycle position of one offering within a run
type State string

const (
	StateInit      State = "INIT"
	StateEvaluated State = "EVALUATED"
	StateBetOver   State = "BET_OVER"
	StateBetUnder  State = "BET_UNDER"
	StatePass      State = "PASS"
)

// ErrAlreadyEvaluated is returned when an offering is evaluated twice in one run
var ErrAlreadyEvaluated = errors.New("offering already evaluated")

// Offering walks INIT -> EVALUATED -> {BET_OVER | BET_UNDER | PASS}
type Offering struct {
	Quote Quote
	state State
	rec   models.Recommendation
}

// NewOffering starts an offering in INIT
func NewOffering(q Quote) *Offering {
	return &Offering{Quote: q, state: StateInit}
}

// State returns the current state
func (o *Offering) State() State {
	return o.state
}

// Recommendation returns the terminal recommendation once evaluated
func (o *Offering) Recommendation() (models.Recommendation, bool) {
	return o.rec, o.terminal()
}

func (o *Offering) terminal() bool {
	switch o.state {
	case StateBetOver, StateBetUnder, StatePass:
		return true
	}
	return false
}

// Evaluate runs the evaluator once; a nil projection passes with NO_PROJECTION
func (o *Offering) Evaluate(e *Evaluator, proj *models.Projection) (models.Recommendation, error) {
	if o.state != StateInit {
		return o.rec, fmt.Errorf("%w: %s is %s", ErrAlreadyEvaluated, o.Quote.Key, o.state)
	}
	o.state = StateEvaluated

	if proj == nil {
		o.rec = e.NoProjection(o.Quote)
	} else {
		o.rec = e.Evaluate(*proj, o.Quote)
	}

	switch o.rec.Action {
	case models.ActionBetOver:
		o.state = StateBetOver
	case models.ActionBetUnder:
		o.state = StateBetUnder
	default:
		o.state = StatePass
	}
	return o.rec, nil
}

// EvaluateAll evaluates every quote once. find resolves the projection for a quote.
// Output order follows the (sorted) quote order, so it does not depend on input order.
func EvaluateAll(e *Evaluator, quotes []Quote, find func(Quote) *models.Projection) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(quotes))
	for _, q := range quotes {
		rec, _ := NewOffering(q).Evaluate(e, find(q))
		recs = append(recs, rec)
	}
	return recs
}

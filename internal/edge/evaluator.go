package edge

import (
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/probability"
)

// Evaluator applies Rules to (projection, quote) pairs
type Evaluator struct {
	rules   Rules
	staking Staking
}

// NewEvaluator creates a new evaluator
func NewEvaluator(rules Rules, staking Staking) *Evaluator {
	return &Evaluator{rules: rules, staking: staking}
}

// Rules returns the evaluator's rules
func (e *Evaluator) Rules() Rules {
	return e.rules
}

// sideView is the priced view of one side
type sideView struct {
	side    models.Side
	price   float64
	prob    float64
	implied float64
	edge    float64
}

// winProb returns the side's win probability, conditioned on no push for integer lines
func winProb(d probability.Dist, side models.Side, line float64) float64 {
	over, under, push := d.Sides(line)
	p := over
	if side == models.SideUnder {
		p = under
	}
	if push > 0 && push < 1 {
		p /= 1 - push
	}
	return p
}

// rawView prices a side from the model probability alone
func rawView(d probability.Dist, offer *models.LineOffer, line float64) sideView {
	v := sideView{side: offer.Side, price: offer.DecimalPrice}
	v.implied, _ = ImpliedProbability(offer.DecimalPrice)
	v.prob = winProb(d, offer.Side, line)
	v.edge = v.prob - v.implied
	return v
}

// view is rawView with MarketWeight blended in
func (e *Evaluator) view(d probability.Dist, offer *models.LineOffer, line float64) sideView {
	v := rawView(d, offer, line)
	if w := e.rules.MarketWeight; w > 0 {
		v.prob = (1-w)*v.prob + w*v.implied
		v.edge = v.prob - v.implied
	}
	return v
}

// Evaluate decides one quote. Resolution order: late price, missing counter price,
// raw-edge cap, over side (edge, volume, price band), under side (edge, price band).
func (e *Evaluator) Evaluate(proj models.Projection, q Quote) models.Recommendation {
	rec := models.Recommendation{
		PlayerID:        proj.PlayerID,
		PlayerName:      proj.PlayerName,
		GameDate:        q.GameDate,
		Stat:            q.Stat,
		Line:            q.Line,
		Book:            q.Book,
		Action:          models.ActionPass,
		VolumeL10:       proj.VolumeL10,
		ArtifactVersion: proj.ArtifactVersion,
	}
	if rec.PlayerID == "" {
		rec.PlayerID = q.PlayerID
	}

	if q.late() {
		e.fill(&rec, q.anySide(), proj, q.Line)
		rec.ReasonCode = models.ReasonLatePrice
		return rec
	}
	if q.Over == nil || q.Under == nil {
		e.fill(&rec, q.anySide(), proj, q.Line)
		rec.ReasonCode = models.ReasonNoCounterPrice
		return rec
	}

	dist := probability.New(proj.Mu, proj.AlphaUsed)
	shifted := probability.New(probability.ShiftMu(proj.Mu, e.rules.MuShift), proj.AlphaUsed)

	raw := rawView(dist, q.Over, q.Line)
	if raw.edge > e.rules.MaxRawEdge {
		e.apply(&rec, raw)
		rec.ReasonCode = models.ReasonTooGood
		return rec
	}

	over := e.view(shifted, q.Over, q.Line)
	var overReason models.ReasonCode
	switch {
	case over.edge < e.rules.EdgeReqOver:
		overReason = models.ReasonOverEdgeReq
	case proj.VolumeL10 < e.rules.OverVolumeMin:
		overReason = models.ReasonOverVolumeMin
	case !e.rules.InBand(over.price):
		overReason = models.ReasonOverPriceBand
	default:
		e.bet(&rec, over, models.ActionBetOver, models.ReasonEdgeOver)
		return rec
	}

	under := e.view(dist, q.Under, q.Line)
	var underReason models.ReasonCode
	switch {
	case under.edge < e.rules.EdgeReqUnder:
		underReason = models.ReasonUnderEdgeReq
	case !e.rules.InBand(under.price):
		underReason = models.ReasonUnderPriceBand
	default:
		e.bet(&rec, under, models.ActionBetUnder, models.ReasonEdgeUnder)
		return rec
	}

	// a pass reports the side that came closest
	if over.edge > under.edge {
		e.apply(&rec, over)
		rec.ReasonCode = overReason
	} else {
		e.apply(&rec, under)
		rec.ReasonCode = underReason
	}
	return rec
}

// NoProjection is the recommendation for a quote whose player has no projection
func (e *Evaluator) NoProjection(q Quote) models.Recommendation {
	offer := q.anySide()
	rec := models.Recommendation{
		PlayerID:   q.PlayerID,
		PlayerName: q.PlayerName,
		GameDate:   q.GameDate,
		Stat:       q.Stat,
		Line:       q.Line,
		Book:       q.Book,
		Side:       offer.Side,
		Action:     models.ActionPass,
		ReasonCode: models.ReasonNoProjection,
	}
	rec.DecimalPrice = offer.DecimalPrice
	rec.ImpliedProb, _ = ImpliedProbability(offer.DecimalPrice)
	return rec
}

func (e *Evaluator) fill(rec *models.Recommendation, offer *models.LineOffer, proj models.Projection, line float64) {
	e.apply(rec, e.view(probability.New(proj.Mu, proj.AlphaUsed), offer, line))
}

func (e *Evaluator) apply(rec *models.Recommendation, v sideView) {
	rec.Side = v.side
	rec.DecimalPrice = v.price
	rec.ModelProb = v.prob
	rec.ImpliedProb = v.implied
	rec.Edge = v.edge
	rec.EV = v.price*v.prob - 1
	rec.KellyFraction = 0
	rec.StakeFraction = 0
}

func (e *Evaluator) bet(rec *models.Recommendation, v sideView, action models.Action, reason models.ReasonCode) {
	e.apply(rec, v)
	rec.Action = action
	rec.ReasonCode = reason
	rec.KellyFraction = Kelly(v.price, v.prob)
	rec.StakeFraction = e.staking.Stake(rec.KellyFraction)
}

func (q Quote) anySide() *models.LineOffer {
	if q.Over != nil {
		return q.Over
	}
	return q.Under
}

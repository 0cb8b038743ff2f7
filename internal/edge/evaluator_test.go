package edge

import (
	"testing"
	"time"

	"github.com/greenbier/propedge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gameDate  = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	gameStart = time.Date(2026, 7, 1, 23, 10, 0, 0, time.UTC)
	fetchedAt = time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)
)

func testEvaluator() *Evaluator {
	return NewEvaluator(DefaultRules(), Staking{KellyFraction: 0.25, KellyMax: 0.05})
}

func projection(mu, volume float64) models.Projection {
	return models.Projection{
		PlayerID:  "p1",
		GameDate:  gameDate,
		Stat:      models.StatStrikeouts,
		Mu:        mu,
		AlphaUsed: 0.10,
		VolumeL10: volume,
	}
}

func offer(side models.Side, line, price float64) models.LineOffer {
	return models.LineOffer{
		PlayerID:     "p1",
		GameDate:     gameDate,
		Stat:         models.StatStrikeouts,
		Side:         side,
		Line:         line,
		DecimalPrice: price,
		Book:         "draftkings",
		FetchedAt:    fetchedAt,
		GameStart:    gameStart,
	}
}

func quote(line, over, under float64) Quote {
	var offers []models.LineOffer
	if over > 0 {
		offers = append(offers, offer(models.SideOver, line, over))
	}
	if under > 0 {
		offers = append(offers, offer(models.SideUnder, line, under))
	}
	quotes := PairOffers(offers)
	if len(quotes) != 1 {
		panic("expected one quote")
	}
	return quotes[0]
}

func TestEvaluate_OverSideConservatism(t *testing.T) {
	rec := testEvaluator().Evaluate(projection(4.0, 95), quote(4.5, 1.91, 1.65))

	assert.Equal(t, models.ActionPass, rec.Action)
	assert.Equal(t, models.ReasonUnderEdgeReq, rec.ReasonCode)
	assert.Equal(t, models.SideUnder, rec.Side)
	assert.InDelta(t, 0.6307, rec.ModelProb, 1e-4)
	assert.InDelta(t, 1/1.65, rec.ImpliedProb, 1e-12)
	assert.Zero(t, rec.KellyFraction)
}

func TestEvaluate_OverUsesShiftedMean(t *testing.T) {
	e := testEvaluator()
	q := quote(4.5, 1.91, 1.65)

	// unshifted P(over) 0.369, shifted P(over) 0.328
	over := e.view(projectionDist(4.0), q.Over, 4.5)
	shifted := e.view(projectionDist(3.75), q.Over, 4.5)
	assert.InDelta(t, 0.3693, over.prob, 1e-4)
	assert.InDelta(t, 0.3278, shifted.prob, 1e-4)
	assert.InDelta(t, 1/1.91, over.implied, 1e-12)
}

func TestEvaluate_UnderSideTrigger(t *testing.T) {
	rec := testEvaluator().Evaluate(projection(3.2, 60), quote(5.5, 2.05, 1.83))

	require.Equal(t, models.ActionBetUnder, rec.Action)
	assert.Equal(t, models.ReasonEdgeUnder, rec.ReasonCode)
	assert.Equal(t, models.SideUnder, rec.Side)
	assert.InDelta(t, 0.8678, rec.ModelProb, 1e-4)
	assert.InDelta(t, 0.5464, rec.ImpliedProb, 1e-4)
	assert.InDelta(t, 0.3214, rec.Edge, 1e-4)
	assert.InDelta(t, 0.7085, rec.KellyFraction, 1e-4)
	assert.InDelta(t, 1.83*rec.ModelProb-1, rec.EV, 1e-12)
	assert.Equal(t, 0.05, rec.StakeFraction)
}

func TestEvaluate_OverBet(t *testing.T) {
	rec := testEvaluator().Evaluate(projection(5.75, 95), quote(4.5, 2.10, 1.80))

	require.Equal(t, models.ActionBetOver, rec.Action)
	assert.Equal(t, models.ReasonEdgeOver, rec.ReasonCode)
	assert.InDelta(t, 0.5922, rec.ModelProb, 1e-4, "over side reports the shifted probability")
	assert.InDelta(t, 0.2216, rec.KellyFraction, 1e-4)
	assert.Equal(t, 0.05, rec.StakeFraction, "stake is capped at KellyMax")
}

func TestEvaluate_RejectPaths(t *testing.T) {
	tests := []struct {
		name   string
		proj   models.Projection
		quote  Quote
		reason models.ReasonCode
		side   models.Side
	}{
		{"raw edge above cap", projection(8.0, 95), quote(4.5, 2.2, 1.6), models.ReasonTooGood, models.SideOver},
		{"volume gate", projection(5.75, 80), quote(4.5, 2.10, 1.80), models.ReasonOverVolumeMin, models.SideOver},
		{"over price band", projection(8.5, 95), quote(4.5, 1.35, 3.20), models.ReasonOverPriceBand, models.SideOver},
		{"under price band", projection(3.2, 60), quote(5.5, 3.50, 1.30), models.ReasonUnderPriceBand, models.SideUnder},
		{"over only", projection(5.75, 95), quote(4.5, 2.10, 0), models.ReasonNoCounterPrice, models.SideOver},
		{"under only", projection(3.2, 60), quote(5.5, 0, 1.83), models.ReasonNoCounterPrice, models.SideUnder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testEvaluator().Evaluate(tt.proj, tt.quote)
			assert.Equal(t, models.ActionPass, rec.Action)
			assert.Equal(t, tt.reason, rec.ReasonCode)
			assert.Equal(t, tt.side, rec.Side)
			assert.Zero(t, rec.StakeFraction)
		})
	}
}

func TestEvaluate_LatePrice(t *testing.T) {
	q := quote(5.5, 2.05, 1.83)
	late := *q.Under
	late.FetchedAt = gameStart
	q.Under = &late

	rec := testEvaluator().Evaluate(projection(3.2, 60), q)
	assert.Equal(t, models.ActionPass, rec.Action)
	assert.Equal(t, models.ReasonLatePrice, rec.ReasonCode)

	unknownStart := quote(5.5, 2.05, 1.83)
	over := *unknownStart.Over
	over.GameStart = time.Time{}
	unknownStart.Over = &over
	rec = testEvaluator().Evaluate(projection(3.2, 60), unknownStart)
	assert.Equal(t, models.ReasonLatePrice, rec.ReasonCode)
}

func TestEvaluate_IntegerLineConditionsOnNoPush(t *testing.T) {
	rec := testEvaluator().Evaluate(projection(5.0, 60), quote(5, 1.95, 1.95))

	require.Equal(t, models.ActionBetUnder, rec.Action)
	assert.InDelta(t, 0.55476, rec.ModelProb, 1e-4)
	assert.InDelta(t, (1.95*rec.ModelProb-1)/0.95, rec.KellyFraction, 1e-12)
}

func TestEvaluate_MarketWeight(t *testing.T) {
	rules := DefaultRules()
	rules.MarketWeight = 0.5
	e := NewEvaluator(rules, Staking{KellyFraction: 1})

	rec := e.Evaluate(projection(3.2, 60), quote(5.5, 2.05, 1.83))
	assert.InDelta(t, 0.5*0.8678+0.5/1.83, rec.ModelProb, 1e-4)
}

func TestEvaluate_RawEdgeCapIgnoresMarketWeight(t *testing.T) {
	rules := DefaultRules()
	rules.MarketWeight = 0.6
	e := NewEvaluator(rules, Staking{KellyFraction: 1})

	rec := e.Evaluate(projection(8.0, 95), quote(4.5, 2.2, 1.6))
	assert.Equal(t, models.ActionPass, rec.Action)
	assert.Equal(t, models.ReasonTooGood, rec.ReasonCode)
	assert.Greater(t, rec.Edge, rules.MaxRawEdge)
	assert.InDelta(t, projectionDist(8.0).Over(4.5), rec.ModelProb, 1e-12, "cap reports the unweighted probability")
}

func TestEvaluateAll_StableUnderPermutation(t *testing.T) {
	offers := []models.LineOffer{
		offer(models.SideOver, 5.5, 2.05),
		offer(models.SideUnder, 5.5, 1.83),
		offer(models.SideOver, 4.5, 1.91),
		offer(models.SideUnder, 4.5, 1.65),
	}
	reversed := []models.LineOffer{offers[3], offers[2], offers[1], offers[0]}

	find := func(q Quote) *models.Projection {
		p := projection(3.2, 60)
		return &p
	}

	a := EvaluateAll(testEvaluator(), PairOffers(offers), find)
	b := EvaluateAll(testEvaluator(), PairOffers(reversed), find)
	assert.Equal(t, a, b)
	assert.Len(t, a, 2)
}

func TestPairOffers_KeepsEarliestCapture(t *testing.T) {
	first := offer(models.SideOver, 4.5, 1.91)
	second := offer(models.SideOver, 4.5, 2.20)
	second.FetchedAt = fetchedAt.Add(time.Hour)

	quotes := PairOffers([]models.LineOffer{second, first})
	require.Len(t, quotes, 1)
	assert.Equal(t, 1.91, quotes[0].Over.DecimalPrice)
	assert.Nil(t, quotes[0].Under)
}

func TestKelly(t *testing.T) {
	assert.InDelta(t, 0.7085, Kelly(1.83, 0.8678), 1e-4)
	assert.Zero(t, Kelly(1.91, 0.3))
	assert.Zero(t, Kelly(1.0, 0.9))

	_, err := ImpliedProbability(1.0)
	assert.Error(t, err)
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	bad := DefaultRules()
	bad.PriceMax = 1.2
	assert.Error(t, bad.Validate())

	bad = DefaultRules()
	bad.MuShift = 0.3
	assert.Error(t, bad.Validate())
}

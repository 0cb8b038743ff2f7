package models

import "time"

// Action is the evaluator's decision
type Action string

const (
	ActionBetOver  Action = "BET_OVER"
	ActionBetUnder Action = "BET_UNDER"
	ActionPass     Action = "PASS"
)

// ReasonCode explains an action
type ReasonCode string

const (
	ReasonEdgeOver       ReasonCode = "EDGE_OVER"
	ReasonEdgeUnder      ReasonCode = "EDGE_UNDER"
	ReasonLatePrice      ReasonCode = "LATE_PRICE"
	ReasonNoCounterPrice ReasonCode = "NO_COUNTER_PRICE"
	ReasonTooGood        ReasonCode = "TOO_GOOD_TO_BE_TRUE"
	ReasonOverEdgeReq    ReasonCode = "OVER_EDGE_REQ"
	ReasonOverVolumeMin  ReasonCode = "OVER_VOLUME_MIN"
	ReasonOverPriceBand  ReasonCode = "OVER_PRICE_BAND"
	ReasonUnderEdgeReq   ReasonCode = "UNDER_EDGE_REQ"
	ReasonUnderPriceBand ReasonCode = "UNDER_PRICE_BAND"
	ReasonNoProjection   ReasonCode = "NO_PROJECTION"
)

// Grade is the settled outcome of a recommendation
type Grade string

const (
	GradeWon      Grade = "WON"
	GradeLost     Grade = "LOST"
	GradePush     Grade = "PUSH"
	GradeNoAction Grade = "NO_ACTION"
	GradeUngraded Grade = "UNGRADED"
)

// Recommendation is the evaluator's output for one (projection, offer) pair
type Recommendation struct {
	PlayerID        string     `json:"player_id"`
	PlayerName      string     `json:"player_name"`
	GameDate        time.Time  `json:"game_date"`
	Stat            Stat       `json:"stat"`
	Line            float64    `json:"line"`
	Side            Side       `json:"side"`
	Book            string     `json:"book"`
	DecimalPrice    float64    `json:"decimal_price"`
	ModelProb       float64    `json:"model_prob"`
	ImpliedProb     float64    `json:"implied_prob"`
	Edge            float64    `json:"edge"`
	Action          Action     `json:"action"`
	ReasonCode      ReasonCode `json:"reason_code"`
	KellyFraction   float64    `json:"kelly_fraction"`
	EV              float64    `json:"ev"`
	StakeFraction   float64    `json:"stake_fraction"`
	VolumeL10       float64    `json:"volume_L10"`
	ArtifactVersion string     `json:"artifact_version"`
}

// IsBet reports whether the recommendation places a wager
func (r Recommendation) IsBet() bool {
	return r.Action == ActionBetOver || r.Action == ActionBetUnder
}

// GradedRecommendation joins a recommendation with its observed result
type GradedRecommendation struct {
	Recommendation
	Observed       *int    `json:"observed,omitempty"`
	Grade          Grade   `json:"grade"`
	PayoutMultiple float64 `json:"payout_multiple"`
}

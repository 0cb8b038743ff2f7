// Package artifact persists trained models as immutable, versioned directories.
package artifact

import (
	"time"

	"github.com/greenbier/propedge/internal/countmodel"
	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/features"
)

// Files inside a version directory
const (
	MetaFile         = "meta.json"
	CoefficientsFile = "coefficients.bin"
	LookupFile       = "lookup.json"
	LatestFile       = "LATEST"
)

// VersionLayout formats the training timestamp into a version id
const VersionLayout = "20060102T150405Z"

// Latest selects the version named by the LATEST pointer
const Latest = "latest"

// Scaler is a per-feature standardization. Features are served unscaled, so meta carries null.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Meta is the human-readable half of an artifact
type Meta struct {
	Version        string    `json:"version"`
	Market         string    `json:"market"`
	TrainedAt      time.Time `json:"trained_at"`
	TrainEnd       string    `json:"train_end"`
	FeatureOrder   []string  `json:"feature_order"`
	Coefficients   int       `json:"coefficients"`
	Family         string    `json:"family"`
	AlphaGlobal    float64   `json:"alpha_global"`
	Bias           float64   `json:"bias"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	Converged      bool      `json:"converged"`
	Iterations     int       `json:"iterations"`
	LogLik         float64   `json:"log_likelihood"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`

	Dispersion   dispersion.Table `json:"dispersion"`
	Rules        edge.Rules       `json:"rules"`
	MarketWeight float64          `json:"market_weight"`
	Scaler       *Scaler          `json:"scaler"`
	LineGrid     []float64        `json:"line_grid"`
	Window       int              `json:"window"`
	MinGames     int              `json:"min_games"`
}

// Artifact is a loaded, immutable model version
type Artifact struct {
	Meta   Meta
	Model  *countmodel.Model
	Lookup features.Lookup
}

// New assembles an artifact from a fitted model and regime table
func New(meta Meta, model *countmodel.Model, table *dispersion.Table, lookup features.Lookup) *Artifact {
	meta.FeatureOrder = append([]string(nil), model.FeatureOrder...)
	meta.Coefficients = len(model.Beta)
	meta.Family = string(model.Family)
	meta.AlphaGlobal = model.Alpha
	meta.Bias = model.Bias
	meta.Degraded = model.Degraded
	meta.DegradedReason = model.DegradedReason
	meta.Converged = model.Converged
	meta.Iterations = model.Iterations
	meta.LogLik = model.LogLik
	meta.MarketWeight = meta.Rules.MarketWeight
	if table != nil {
		meta.Dispersion = *table
	}
	return &Artifact{Meta: meta, Model: model, Lookup: lookup}
}

// Version returns the version id
func (a *Artifact) Version() string {
	return a.Meta.Version
}

// PredictMu returns the bias-corrected served mean for a feature vector in FeatureOrder
func (a *Artifact) PredictMu(x []float64) float64 {
	return a.Model.PredictMu(x)
}

// ResolveRegime buckets a volume, preferring the lower-alpha neighbor on a cut
func (a *Artifact) ResolveRegime(volume float64) (string, float64, bool) {
	return a.Meta.Dispersion.Resolve(volume)
}

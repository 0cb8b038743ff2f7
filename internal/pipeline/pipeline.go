// Package pipeline runs the batch stages: build-features, train, project, evaluate, grade.
// Each stage reads the previous stage's atomically written output and writes a new one.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/artifact"
	"github.com/greenbier/propedge/internal/cache"
	"github.com/greenbier/propedge/internal/client"
	"github.com/greenbier/propedge/internal/config"
	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/repository"
	"github.com/greenbier/propedge/internal/rex"

	"github.com/google/uuid"
)

// Stage names used in summaries and metrics
const (
	StageBuildFeatures = "build-features"
	StageTrain         = "train"
	StageProject       = "project"
	StageEvaluate      = "evaluate"
	StageGrade         = "grade"
	StageFetchLines    = "fetch-lines"
)

// LineFeed lists events and their player-prop prices
type LineFeed interface {
	Events(ctx context.Context, sport models.Sport, date time.Time) ([]client.Event, error)
	PlayerProps(ctx context.Context, m models.Market, eventID string) ([]models.LineOffer, error)
}

// ScheduleFeed supplies games when REX has no schedule for a date
type ScheduleFeed interface {
	Schedule(ctx context.Context, sport models.Sport, date time.Time) ([]models.ScheduledGame, error)
}

// LineSink archives captured offers
type LineSink interface {
	InsertBatch(ctx context.Context, offers []models.LineOffer) error
	ForDate(ctx context.Context, stat models.Stat, date time.Time) ([]models.LineOffer, error)
}

var (
	_ rex.Source   = (*rex.FileSource)(nil)
	_ LineFeed     = (*client.OddsAPI)(nil)
	_ ScheduleFeed = (*client.ESPN)(nil)
	_ LineSink     = (*repository.LineOfferRepository)(nil)
)

// Pipeline holds the configuration and adapters shared by every stage
type Pipeline struct {
	cfg      *config.Config
	source   rex.Source
	store    *artifact.Store
	cache    *cache.LookupCache
	lines    LineFeed
	sink     LineSink
	schedule ScheduleFeed
	out      io.Writer
	now      func() time.Time
	runID    string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCache mirrors and reads the serving lookup through Redis
func WithCache(c *cache.LookupCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLineFeed enables fetch-lines
func WithLineFeed(f LineFeed) Option {
	return func(p *Pipeline) { p.lines = f }
}

// WithLineSink archives fetched offers
func WithLineSink(s LineSink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithScheduleFeed sets the fallback schedule feed
func WithScheduleFeed(f ScheduleFeed) Option {
	return func(p *Pipeline) { p.schedule = f }
}

// WithOutput sets where PASS/FAIL lines are printed
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunID pins the run id
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New creates a pipeline over a REX source
func New(cfg *config.Config, source rex.Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		source: source,
		store:  artifact.NewStore(cfg.DataRoot),
		out:    os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p
}

// RunID returns the batch run id
func (p *Pipeline) RunID() string {
	return p.runID
}

// Store returns the artifact store
func (p *Pipeline) Store() *artifact.Store {
	return p.store
}

func (p *Pipeline) profile(m models.Market) (config.Profile, error) {
	return config.LoadProfile(p.cfg.SportProfilePath, m)
}

func (p *Pipeline) builder(prof config.Profile) *features.Builder {
	return features.NewBuilder(prof.Market, prof.Window, prof.MinGames, prof.Regimes, features.WithClock(p.now))
}

func (p *Pipeline) staking() edge.Staking {
	return edge.Staking{KellyFraction: p.cfg.KellyFraction, KellyMax: p.cfg.KellyMax}
}

func (p *Pipeline) today() time.Time {
	return day(p.now())
}

// Output paths under DATA_ROOT

func (p *Pipeline) featuresPath(m models.Market) string {
	return p.cfg.Path("features", m.Key()+".csv")
}

func (p *Pipeline) projectionsPath(m models.Market, date time.Time) string {
	return p.cfg.Path("projections", date.Format(models.DateLayout), m.Key()+".csv")
}

func (p *Pipeline) recsPath(m models.Market, date time.Time) string {
	return p.cfg.Path("recs", date.Format(models.DateLayout), m.Key()+".csv")
}

func (p *Pipeline) gradedPath(m models.Market, date time.Time) string {
	return p.cfg.Path("recs", date.Format(models.DateLayout), m.Key()+"_graded.csv")
}

// LinesPath is where fetch-lines writes and evaluate reads by default
func (p *Pipeline) LinesPath(m models.Market, date time.Time) string {
	return p.cfg.Path("raw", "lines", date.Format(models.DateLayout), m.Key()+".csv")
}

// readErr keeps a categorized error and maps a missing input file to a configuration error
func readErr(op string, err error) error {
	if err == nil || apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	if errors.Is(err, os.ErrNotExist) {
		return apperr.Configuration(op, err)
	}
	return apperr.Persistence(op, err)
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

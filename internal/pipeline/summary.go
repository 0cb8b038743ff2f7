package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Summary is the user-visible result of one stage
type Summary struct {
	Stage    string
	Market   string
	RunID    string
	Version  string
	In       int
	Out      int
	Dropped  map[string]int
	Duration time.Duration
	Err      error
}

// Passed reports whether the stage succeeded
func (s Summary) Passed() bool {
	return s.Err == nil
}

// String renders the one-line stage report
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s in=%d out=%d dropped={", s.Stage, s.Market, s.In, s.Out)

	reasons := make([]string, 0, len(s.Dropped))
	for r, n := range s.Dropped {
		if n > 0 {
			reasons = append(reasons, r)
		}
	}
	sort.Strings(reasons)
	for i, r := range reasons {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%d", r, s.Dropped[r])
	}

	version := s.Version
	if version == "" {
		version = "-"
	}
	fmt.Fprintf(&b, "} version=%s ", version)
	if s.Passed() {
		b.WriteString("PASS")
	} else {
		b.WriteString("FAIL")
	}
	return b.String()
}

func (p *Pipeline) summary(stage, market string) *Summary {
	return &Summary{Stage: stage, Market: market, RunID: p.runID, Dropped: make(map[string]int)}
}

// finish logs and prints the summary, records stage metrics and returns its error
func (p *Pipeline) finish(s *Summary, start time.Time, err error) (Summary, error) {
	s.Err = err
	s.Duration = time.Since(start)

	metrics.RecordStage(s.Stage, s.Market, s.In, s.Out, s.Dropped, s.Duration.Seconds())

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err).Str("kind", apperr.KindOf(err).String())
		metrics.RecordError(s.Stage, apperr.KindOf(err).String())
	} else {
		metrics.RecordStageSuccess(s.Stage, s.Market)
	}
	event.
		Str("run_id", s.RunID).
		Str("stage", s.Stage).
		Str("market", s.Market).
		Int("in", s.In).
		Int("out", s.Out).
		Interface("dropped", s.Dropped).
		Str("version", s.Version).
		Dur("duration", s.Duration).
		Msg("Stage complete")

	fmt.Fprintln(p.out, s.String())
	return *s, err
}

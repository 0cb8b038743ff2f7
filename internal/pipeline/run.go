package pipeline

import (
	"context"
	"time"

	"github.com/greenbier/propedge/internal/models"
)

// Run chains build-features, train, project and evaluate for one slate date.
// Projection and evaluation use the version the run just trained. When linesPath is
// empty and a line feed is configured, the date's offers are fetched first.
func (p *Pipeline) Run(ctx context.Context, m models.Market, date time.Time, linesPath string) ([]Summary, error) {
	date = day(date)
	var summaries []Summary

	s, err := p.BuildFeatures(ctx, m, time.Time{})
	summaries = append(summaries, s)
	if err != nil {
		return summaries, err
	}

	s, err = p.Train(ctx, m, date)
	summaries = append(summaries, s)
	if err != nil {
		return summaries, err
	}
	version := s.Version

	s, err = p.project(ctx, m, date, version)
	summaries = append(summaries, s)
	if err != nil {
		return summaries, err
	}

	if linesPath == "" && p.lines != nil {
		s, err = p.FetchLines(ctx, m, date)
		summaries = append(summaries, s)
		if err != nil {
			return summaries, err
		}
	}

	s, err = p.evaluate(ctx, m, date, linesPath, version)
	summaries = append(summaries, s)
	return summaries, err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/scheduler"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// marketFlags are shared by every per-market command
type marketFlags struct {
	sport string
	stat  string
	date  string
}

func (f *marketFlags) register(cmd *cobra.Command, dateName, dateUsage string) {
	cmd.Flags().StringVar(&f.sport, "sport", "", "sport (mlb, nhl)")
	cmd.Flags().StringVar(&f.stat, "stat", "", "stat (strikeouts, shots, goals, assists)")
	cmd.MarkFlagRequired("sport")
	cmd.MarkFlagRequired("stat")
	if dateName != "" {
		cmd.Flags().StringVar(&f.date, dateName, "", dateUsage)
	}
}

func (f *marketFlags) market() (models.Market, error) {
	m, err := models.ParseMarket(f.sport, f.stat)
	if err != nil {
		return models.Market{}, apperr.Configuration("parse flags", err)
	}
	return m, nil
}

// day parses YYYY-MM-DD; empty means fallback
func parseDay(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Configuration("parse flags", fmt.Errorf("invalid date %q: %w", value, err))
	}
	return t, nil
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// withApp builds the app for one command invocation and tears it down afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "propedge",
		Short:         "Player prop projection and edge engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBuildFeaturesCmd(),
		newTrainCmd(),
		newProjectCmd(),
		newEvaluateCmd(),
		newGradeCmd(),
		newFetchLinesCmd(),
		newRunCmd(),
		newScheduleCmd(),
		newMigrateCmd(),
	)
	return root
}

func newBuildFeaturesCmd() *cobra.Command {
	var f marketFlags
	cmd := &cobra.Command{
		Use:   "build-features",
		Short: "Build labeled feature rows from REX history",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			since, err := parseDay(f.date, time.Time{})
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.BuildFeatures(ctx, m, since)
				return err
			})
		},
	}
	f.register(cmd, "since", "first game date to emit (default: all history)")
	return cmd
}

func newTrainCmd() *cobra.Command {
	var f marketFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the count model and publish an artifact version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			trainEnd, err := parseDay(f.date, today())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.Train(ctx, m, trainEnd)
				return err
			})
		},
	}
	f.register(cmd, "train-end", "exclude rows dated on or after this date (default: today)")
	return cmd
}

func newProjectCmd() *cobra.Command {
	var f marketFlags
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project count distributions for a slate date",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			date, err := parseDay(f.date, today())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.Project(ctx, m, date)
				return err
			})
		},
	}
	f.register(cmd, "date", "slate date (default: today)")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	var f marketFlags
	var lines string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate line offers against a slate's projections",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			date, err := parseDay(f.date, today())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.Evaluate(ctx, m, date, lines)
				return err
			})
		},
	}
	f.register(cmd, "date", "slate date (default: today)")
	cmd.Flags().StringVar(&lines, "lines", "", "line offer CSV (default: the offers fetch-lines wrote for the date)")
	return cmd
}

func newGradeCmd() *cobra.Command {
	var f marketFlags
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a date's recommendations against observed results",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			date, err := parseDay(f.date, today().AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.Grade(ctx, m, date)
				return err
			})
		},
	}
	f.register(cmd, "date", "slate date (default: yesterday)")
	return cmd
}

func newFetchLinesCmd() *cobra.Command {
	var f marketFlags
	cmd := &cobra.Command{
		Use:   "fetch-lines",
		Short: "Capture player-prop offers from The Odds API",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			date, err := parseDay(f.date, today())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.cfg.RequireOddsAPIKey(); err != nil {
					return err
				}
				_, err := a.pipeline.FetchLines(ctx, m, date)
				return err
			})
		},
	}
	f.register(cmd, "date", "slate date (default: today)")
	return cmd
}

func newRunCmd() *cobra.Command {
	var f marketFlags
	var lines string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run build-features, train, project and evaluate for a slate date",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.market()
			if err != nil {
				return err
			}
			date, err := parseDay(f.date, today())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.pipeline.Run(ctx, m, date, lines)
				return err
			})
		},
	}
	f.register(cmd, "date", "slate date (default: today)")
	cmd.Flags().StringVar(&lines, "lines", "", "line offer CSV (default: fetch from The Odds API)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the nightly pipeline on SCHEDULE_CRON until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				markets, err := a.cfg.ScheduledMarkets()
				if err != nil {
					return apperr.Configuration("schedule", err)
				}

				go startMetricsServer(a.cfg.MetricsPort)

				sched := scheduler.NewScheduler(a.cfg.ScheduleCron, markets, func(ctx context.Context, m models.Market, date time.Time) error {
					defer a.pushMetrics()
					_, err := a.pipeline.Run(ctx, m, date, "")
					return err
				})
				if err := sched.Start(ctx); err != nil {
					return apperr.Configuration("schedule", err)
				}

				<-ctx.Done()
				log.Info().Msg("Received shutdown signal, gracefully shutting down...")
				sched.Stop()
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the REX tables in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.db == nil {
					return apperr.Configuration("migrate", errors.New("REX_BACKEND=postgres is required"))
				}
				if err := a.db.Health(ctx); err != nil {
					return apperr.DataSource("migrate", err)
				}
				if err := a.db.Migrate(ctx); err != nil {
					return apperr.Persistence("migrate", err)
				}
				log.Info().Msg("REX schema migrated")
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/cache"
	"github.com/greenbier/propedge/internal/client"
	"github.com/greenbier/propedge/internal/config"
	"github.com/greenbier/propedge/internal/metrics"
	"github.com/greenbier/propedge/internal/pipeline"
	"github.com/greenbier/propedge/internal/repository"
	"github.com/greenbier/propedge/internal/rex"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// app wires configuration into adapters and a pipeline
type app struct {
	cfg      *config.Config
	db       *repository.Database
	pipeline *pipeline.Pipeline
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("env", cfg.AppEnv).
		Str("data_root", cfg.DataRoot).
		Str("rex_backend", cfg.REXBackend).
		Str("artifact_version", cfg.Version()).
		Msg("Configuration loaded")

	a := &app{cfg: cfg}
	var opts []pipeline.Option

	var source rex.Source = rex.NewFileSource(cfg.DataRoot)
	if cfg.REXBackend == "postgres" {
		db, err := repository.NewDatabase(ctx, repository.Config{
			Host:     cfg.DatabaseHost,
			Port:     strconv.Itoa(cfg.DatabasePort),
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			return nil, apperr.DataSource("connect rex", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		source = db.Source()
		opts = append(opts, pipeline.WithLineSink(db.Lines))
	}

	if cfg.RedisEnabled {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			a.closers = append(a.closers, func() { rdb.Close() })
			opts = append(opts, pipeline.WithCache(cache.NewLookupCache(rdb, cfg.RedisTTL)))
		}
	}

	retry := client.RetryPolicy{MaxRetries: cfg.HTTPMaxRetries, BaseDelay: cfg.HTTPBackoffBase, MaxDelay: time.Minute}
	if cfg.OddsAPIKey != "" {
		odds := client.NewClient(client.OddsAPIConfig(cfg.OddsAPIBaseURL, cfg.OddsAPIKey, cfg.OddsAPIRegions, retry), cfg.HTTPTimeout(), cfg.HTTPRatePerSecond)
		opts = append(opts, pipeline.WithLineFeed(client.NewOddsAPI(odds)))
	}
	espn := client.NewClient(client.ESPNConfig(cfg.ESPNBaseURL, retry), cfg.HTTPTimeout(), cfg.HTTPRatePerSecond)
	opts = append(opts, pipeline.WithScheduleFeed(client.NewESPN(espn)))

	a.pipeline = pipeline.New(cfg, source, opts...)
	log.Debug().Str("run_id", a.pipeline.RunID()).Msg("Pipeline ready")
	return a, nil
}

// close pushes metrics and releases connections
func (a *app) close() {
	a.pushMetrics()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) pushMetrics() {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(a.cfg.PushgatewayURL, a.pipeline.RunID()); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
	}
}

func startMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus metrics for the batch pipeline

var (
	// Stage metrics
	StageRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_stage_rows_total",
			Help: "Rows read and written by pipeline stages",
		},
		[]string{"stage", "sport_stat", "direction"},
	)

	DroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_dropped_total",
			Help: "Subjects dropped by pipeline stages, by reason",
		},
		[]string{"stage", "reason"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propedge_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// HTTP adapter metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_http_requests_total",
			Help: "Total number of feed API requests",
		},
		[]string{"source", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propedge_http_request_duration_seconds",
			Help:    "Duration of feed API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Decision metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_recommendations_total",
			Help: "Recommendations emitted, by action and reason code",
		},
		[]string{"action", "reason"},
	)

	ModelDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_model_degraded_total",
			Help: "Training passes that fell back to Poisson",
		},
		[]string{"sport_stat"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "propedge_cache_hits_total",
			Help: "Serving lookups read from redis",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "propedge_cache_misses_total",
			Help: "Serving lookups that fell back to lookup.json",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propedge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	LastSuccessfulRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "propedge_last_successful_run_timestamp",
			Help: "Timestamp of the last successful stage run",
		},
		[]string{"stage", "sport_stat"},
	)
)

// RecordStage records a completed stage
func RecordStage(stage, sportStat string, in, out int, dropped map[string]int, duration float64) {
	StageRowsTotal.WithLabelValues(stage, sportStat, "in").Add(float64(in))
	StageRowsTotal.WithLabelValues(stage, sportStat, "out").Add(float64(out))
	for reason, n := range dropped {
		DroppedTotal.WithLabelValues(stage, reason).Add(float64(n))
	}
	StageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordStageSuccess stamps the last successful run of a stage
func RecordStageSuccess(stage, sportStat string) {
	LastSuccessfulRun.WithLabelValues(stage, sportStat).SetToCurrentTime()
}

// RecordHTTPRequest records a feed API call
func RecordHTTPRequest(source, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(source, status).Inc()
	HTTPRequestDuration.WithLabelValues(source).Observe(duration)
}

// RecordRecommendation records an evaluator decision
func RecordRecommendation(action, reason string) {
	RecommendationsTotal.WithLabelValues(action, reason).Inc()
}

// RecordDegraded records a Poisson fallback
func RecordDegraded(sportStat string) {
	ModelDegradedTotal.WithLabelValues(sportStat).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// Push sends the default registry to a pushgateway under job "propedge"
func Push(url, runID string) error {
	return PushFrom(prometheus.DefaultGatherer, url, runID)
}

// PushFrom sends a gatherer's metrics to a pushgateway
func PushFrom(g prometheus.Gatherer, url, runID string) error {
	pusher := push.New(url, "propedge").Gatherer(g)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

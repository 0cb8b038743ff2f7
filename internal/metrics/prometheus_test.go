package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStage(t *testing.T) {
	before := testutil.ToFloat64(StageRowsTotal.WithLabelValues("train", "nhl_goals", "out"))
	droppedBefore := testutil.ToFloat64(DroppedTotal.WithLabelValues("train", "unlabeled"))

	RecordStage("train", "nhl_goals", 120, 100, map[string]int{"unlabeled": 20}, 1.5)

	assert.Equal(t, before+100, testutil.ToFloat64(StageRowsTotal.WithLabelValues("train", "nhl_goals", "out")))
	assert.Equal(t, droppedBefore+20, testutil.ToFloat64(DroppedTotal.WithLabelValues("train", "unlabeled")))
}

func TestRecordRecommendationAndHTTP(t *testing.T) {
	before := testutil.ToFloat64(RecommendationsTotal.WithLabelValues("PASS", "LATE_PRICE"))
	RecordRecommendation("PASS", "LATE_PRICE")
	RecordRecommendation("PASS", "LATE_PRICE")
	assert.Equal(t, before+2, testutil.ToFloat64(RecommendationsTotal.WithLabelValues("PASS", "LATE_PRICE")))

	httpBefore := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("odds_api", "429"))
	RecordHTTPRequest("odds_api", "429", 0.2)
	assert.Equal(t, httpBefore+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("odds_api", "429")))
}

func TestPushFrom(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotBody = r.URL.Path, string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "propedge_test_total", Help: "test"})
	c.Add(3)
	reg.MustRegister(c)

	require.NoError(t, PushFrom(reg, srv.URL, "run-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/propedge/run_id/run-1", gotPath)
	assert.True(t, strings.Contains(gotBody, "propedge_test_total") || len(gotBody) > 0)
}

func TestPushFromFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PushFrom(prometheus.NewRegistry(), srv.URL, "")
	assert.Error(t, err)
}

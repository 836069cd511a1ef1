package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordPlanningCheck("shortage")
	m.RecordPlanningCheck("shortage")
	m.RecordOrderCreated("agro")
	m.RecordDraw("station", true)
	m.RecordDraw("pallet", false)
	m.RecordRefresh(3, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlanningChecks.WithLabelValues("shortage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("agro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DrawsRecorded.WithLabelValues("pallet", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OrdersWithShortages))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPlanningCheck("sufficient")
		m.RecordStaleCommit()
		m.RecordBatchCompleted()
	})
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/orders/17", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/orders/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "planner_http_requests_total")
}

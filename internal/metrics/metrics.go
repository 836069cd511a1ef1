package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planner"

// Metrics - все метрики сервиса на собственном реестре.
// Методы допускают nil-получатель, тогда ничего не пишется.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PlanningChecks        *prometheus.CounterVec
	OrdersCreated         *prometheus.CounterVec
	SplitsConfirmed       prometheus.Counter
	StaleCommits          prometheus.Counter
	OrdersWithShortages   prometheus.Gauge
	RefreshDuration       prometheus.Histogram
	AdjustmentTransitions *prometheus.CounterVec
	DrawsRecorded         *prometheus.CounterVec
	BatchesCompleted      prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.PlanningChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planning_checks_total",
			Help:      "Planning checks by outcome",
		},
		[]string{"outcome"},
	)

	m.OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "production_orders_created_total",
			Help:      "Production orders created by kind",
		},
		[]string{"kind"},
	)

	m.SplitsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "splits_confirmed_total",
		Help:      "Capacity split proposals confirmed",
	})

	m.StaleCommits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_commits_total",
		Help:      "Writes rejected by commit-time re-validation",
	})

	m.OrdersWithShortages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "planned_orders_with_shortages",
		Help:      "Planned orders flagged with material shortages after the last refresh",
	})

	m.RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "shortage_refresh_duration_seconds",
		Help:      "Duration of the shortage flag refresh",
		Buckets:   prometheus.DefBuckets,
	})

	m.AdjustmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjustment_transitions_total",
			Help:      "Adjustment order status transitions",
		},
		[]string{"status"},
	)

	m.DrawsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_recorded_total",
			Help:      "Material draws by source and result",
		},
		[]string{"source", "result"},
	)

	m.BatchesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_completed_total",
		Help:      "Batches released after lab confirmation",
	})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PlanningChecks,
		m.OrdersCreated,
		m.SplitsConfirmed,
		m.StaleCommits,
		m.OrdersWithShortages,
		m.RefreshDuration,
		m.AdjustmentTransitions,
		m.DrawsRecorded,
		m.BatchesCompleted,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware считает запросы по шаблону маршрута chi, а не по сырому пути.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, path, status, time.Since(start))
	})
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordPlanningCheck(outcome string) {
	if m == nil {
		return
	}
	m.PlanningChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOrderCreated(kind string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSplitConfirmed() {
	if m == nil {
		return
	}
	m.SplitsConfirmed.Inc()
}

func (m *Metrics) RecordStaleCommit() {
	if m == nil {
		return
	}
	m.StaleCommits.Inc()
}

func (m *Metrics) RecordRefresh(flagged int, duration time.Duration) {
	if m == nil {
		return
	}
	m.OrdersWithShortages.Set(float64(flagged))
	m.RefreshDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordAdjustmentTransition(status string) {
	if m == nil {
		return
	}
	m.AdjustmentTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordDraw(source string, success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.DrawsRecorded.WithLabelValues(source, result).Inc()
}

func (m *Metrics) RecordBatchCompleted() {
	if m == nil {
		return
	}
	m.BatchesCompleted.Inc()
}

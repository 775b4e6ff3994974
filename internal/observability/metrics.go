// Package observability holds the Prometheus metrics shared by the batch
// pipeline, the narrative service and the HTTP API.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brrs"

// Metrics holds the counters, histograms and gauges of one process.
type Metrics struct {
	// Batch runs.
	RunsTotal        *prometheus.CounterVec   // labels: kind, status
	RunDuration      *prometheus.HistogramVec // labels: kind
	UnitsProcessed   *prometheus.CounterVec   // labels: kind, outcome={processed,skipped,errored}
	LastRunTimestamp *prometheus.GaugeVec     // labels: kind

	// Narrative generation.
	NarrativeRequests *prometheus.CounterVec   // labels: provider, outcome={success,error,fallback}
	NarrativeDuration *prometheus.HistogramVec // labels: provider
	NarrativeCache    *prometheus.CounterVec   // labels: result={hit,miss}

	// HTTP API.
	HTTPRequests *prometheus.CounterVec   // labels: route, method, status
	HTTPDuration *prometheus.HistogramVec // labels: route, method
	TileCache    *prometheus.CounterVec   // labels: result={hit,miss}

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsForTesting registers on a fresh registry so tests can build
// many instances.
func NewMetricsForTesting() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the metrics on reg; gatherer backs Handler.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs by kind and final status.",
		}, []string{"kind", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of batch runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		UnitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Barangays handled by batch runs, by outcome.",
		}, []string{"kind", "outcome"}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run of each kind finished.",
		}, []string{"kind"}),
		NarrativeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_requests_total",
			Help:      "Narrative generations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		NarrativeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrative_duration_seconds",
			Help:      "Language-model call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"provider"}),
		NarrativeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_cache_total",
			Help:      "Narrative cache lookups by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      "Vector tile cache lookups by result.",
		}, []string{"result"}),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.UnitsProcessed,
		m.LastRunTimestamp,
		m.NarrativeRequests,
		m.NarrativeDuration,
		m.NarrativeCache,
		m.HTTPRequests,
		m.HTTPDuration,
		m.TileCache,
	)
	return m
}

// ObserveRun records one finished batch run.
func (m *Metrics) ObserveRun(kind, status string, started, finished time.Time, processed, skipped, errored int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(finished.Sub(started).Seconds())
	m.UnitsProcessed.WithLabelValues(kind, "processed").Add(float64(processed))
	m.UnitsProcessed.WithLabelValues(kind, "skipped").Add(float64(skipped))
	m.UnitsProcessed.WithLabelValues(kind, "errored").Add(float64(errored))
	m.LastRunTimestamp.WithLabelValues(kind).Set(float64(finished.Unix()))
}

// CacheResult counts a hit or miss on vec.
func CacheResult(vec *prometheus.CounterVec, hit bool) {
	if vec == nil {
		return
	}
	if hit {
		vec.WithLabelValues("hit").Inc()
		return
	}
	vec.WithLabelValues("miss").Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the enrollment
// core: HTTP traffic plus the domain counters that matter when debugging
// capacity drift.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	seatDeltas      *prometheus.CounterVec
	reconcileRuns   prometheus.Counter
	reconcileDrift  prometheus.Counter
	idRetries       prometheus.Counter
	versionRetries  prometheus.Counter
	occupancyHits   prometheus.Counter
	occupancyMisses prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_transitions_total",
		Help: "Enrollment status transitions taken",
	}, []string{"from", "to"})

	seatDeltas := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offering_seat_deltas_total",
		Help: "Seat counter deltas applied to course offerings",
	}, []string{"direction"})

	reconcileRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offering_reconcile_runs_total",
		Help: "Capacity reconciliation passes executed",
	})

	reconcileDrift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offering_reconcile_drift_total",
		Help: "Reconciliation passes that corrected a drifted seat counter",
	})

	idRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_id_retries_total",
		Help: "Identifier collisions retried during enrollment creation",
	})

	versionRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_version_retries_total",
		Help: "Optimistic-concurrency retries on enrollment updates",
	})

	occupancyHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_cache_hits_total",
		Help: "Occupancy reads served from cache",
	})

	occupancyMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_cache_misses_total",
		Help: "Occupancy reads that fell through to the store",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, seatDeltas,
		reconcileRuns, reconcileDrift, idRetries, versionRetries,
		occupancyHits, occupancyMisses, dbQueryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		seatDeltas:      seatDeltas,
		reconcileRuns:   reconcileRuns,
		reconcileDrift:  reconcileDrift,
		idRetries:       idRetries,
		versionRetries:  versionRetries,
		occupancyHits:   occupancyHits,
		occupancyMisses: occupancyMisses,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveTransition counts a taken status transition.
func (m *MetricsService) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveSeatDelta counts an applied seat delta.
func (m *MetricsService) ObserveSeatDelta(delta int) {
	if m == nil || delta == 0 {
		return
	}
	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	m.seatDeltas.WithLabelValues(direction).Inc()
}

// ObserveReconcile counts a reconciliation pass and whether it fixed drift.
func (m *MetricsService) ObserveReconcile(corrected bool) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	if corrected {
		m.reconcileDrift.Inc()
	}
}

// ObserveIDRetry counts an identifier collision retry.
func (m *MetricsService) ObserveIDRetry() {
	if m == nil {
		return
	}
	m.idRetries.Inc()
}

// ObserveVersionRetry counts an optimistic-concurrency retry.
func (m *MetricsService) ObserveVersionRetry() {
	if m == nil {
		return
	}
	m.versionRetries.Inc()
}

// RecordOccupancyLookup records a cache hit or miss for occupancy reads.
func (m *MetricsService) RecordOccupancyLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.occupancyHits.Inc()
	} else {
		m.occupancyMisses.Inc()
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

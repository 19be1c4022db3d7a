package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine and
// the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	punchesProcessed  prometheus.Counter
	recordsReconciled *prometheus.CounterVec
	anomaliesDetected *prometheus.CounterVec
	payrollEntries    prometheus.Counter
	syncRunDuration   prometheus.Observer
	payrollDuration   prometheus.Observer

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
}

// MetricsSnapshot aggregates lightweight counters for API consumption.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	punchesProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "punches_processed_total",
		Help: "Raw punches read during ingestion runs",
	})

	recordsReconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_reconciled_total",
		Help: "Attendance records written by the reconciler",
	}, []string{"outcome"})

	anomaliesDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_anomalies_detected_total",
		Help: "Anomaly findings inserted by the detector",
	}, []string{"type", "severity"})

	payrollEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_entries_computed_total",
		Help: "Payroll entries written by period calculations",
	})

	syncRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Wall-clock duration of punch ingestion runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	payrollDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payroll_calculation_duration_seconds",
		Help:    "Wall-clock duration of period calculations",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio,
		cacheHits, cacheMisses, punchesProcessed, recordsReconciled, anomaliesDetected,
		payrollEntries, syncRunDuration, payrollDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		punchesProcessed:  punchesProcessed,
		recordsReconciled: recordsReconciled,
		anomaliesDetected: anomaliesDetected,
		payrollEntries:    payrollEntries,
		syncRunDuration:   syncRunDuration,
		payrollDuration:   payrollDuration,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// AddPunchesProcessed counts raw punches read during ingestion.
func (m *MetricsService) AddPunchesProcessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.punchesProcessed.Add(float64(n))
}

// RecordReconciled counts a reconciler write by outcome (created/updated/skipped).
func (m *MetricsService) RecordReconciled(outcome string) {
	if m == nil {
		return
	}
	m.recordsReconciled.WithLabelValues(outcome).Inc()
}

// RecordAnomaly counts an inserted anomaly finding.
func (m *MetricsService) RecordAnomaly(anomalyType, severity string) {
	if m == nil {
		return
	}
	m.anomaliesDetected.WithLabelValues(anomalyType, severity).Inc()
}

// AddPayrollEntries counts computed payroll entries.
func (m *MetricsService) AddPayrollEntries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.payrollEntries.Add(float64(n))
}

// ObserveSyncRun records an ingestion run duration.
func (m *MetricsService) ObserveSyncRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.syncRunDuration.Observe(duration.Seconds())
}

// ObservePayrollRun records a period calculation duration.
func (m *MetricsService) ObservePayrollRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.payrollDuration.Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	weekSaves       *prometheus.CounterVec
	assignmentRows  prometheus.Counter
	exportsTotal    *prometheus.CounterVec
	rewarmJobs      *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"surface", "method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"surface", "method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	weekSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "primes_week_saves_total",
		Help: "Bulk week saves and resets by outcome",
	}, []string{"operation", "outcome"})

	assignmentRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "primes_assignment_rows_written_total",
		Help: "Assignment rows written by bulk saves",
	})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "primes_exports_total",
		Help: "Generated export files by kind and format",
	}, []string{"kind", "format"})

	rewarmJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "primes_rewarm_jobs_total",
		Help: "Recap rewarm jobs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, weekSaves, assignmentRows, exportsTotal, rewarmJobs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		weekSaves:       weekSaves,
		assignmentRows:  assignmentRows,
		exportsTotal:    exportsTotal,
		rewarmJobs:      rewarmJobs,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics. surface is "rest" or "legacy".
func (m *MetricsService) ObserveHTTPRequest(surface, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(surface, method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(surface, method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup as hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordWeekWrite counts a bulk save or reset and, on success, the rows written.
func (m *MetricsService) RecordWeekWrite(operation string, err error, rows int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.weekSaves.WithLabelValues(operation, outcome).Inc()
	if err == nil && rows > 0 {
		m.assignmentRows.Add(float64(rows))
	}
}

// RecordExport counts a generated export file.
func (m *MetricsService) RecordExport(kind, format string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(kind, format).Inc()
}

// RecordRewarm counts a processed rewarm job.
func (m *MetricsService) RecordRewarm(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.rewarmJobs.WithLabelValues("error").Inc()
		return
	}
	m.rewarmJobs.WithLabelValues("ok").Inc()
}

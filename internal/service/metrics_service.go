package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/progress-dashboard/internal/progress"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for the health endpoint.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	artifactDuration  *prometheus.HistogramVec
	recomputeDuration prometheus.Observer
	ingestRows        *prometheus.CounterVec
	storeEvents       prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	recomputeCount uint64
	loadedRows     uint64
	droppedRows    uint64
}

// MetricsSnapshot is a point-in-time summary of the collected counters.
type MetricsSnapshot struct {
	CacheHitRatio float64   `json:"cache_hit_ratio"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheMisses   uint64    `json:"cache_misses"`
	RequestsTotal uint64    `json:"requests_total"`
	Recomputes    uint64    `json:"recomputes"`
	LoadedRows    uint64    `json:"loaded_rows"`
	DroppedRows   uint64    `json:"dropped_rows"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generated_at"`
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
		Name:    "dashboard_cache_latency_seconds",
		Help:    "Latency for dashboard cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_cache_write_seconds",
		Help:    "Latency for dashboard cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_hits_total",
		Help: "Total dashboard cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_misses_total",
		Help: "Total dashboard cache misses",
	})

	artifactDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_artifact_duration_seconds",
		Help:    "Time spent computing one dashboard artifact",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"artifact"})

	recomputeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_recompute_duration_seconds",
		Help:    "Time spent recomputing the dirty part of a dashboard",
		Buckets: prometheus.DefBuckets,
	})

	ingestRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_ingest_rows_total",
		Help: "Source rows processed during event loads by outcome",
	}, []string{"outcome"})

	storeEvents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "progress_store_events",
		Help: "Number of events held by the current event store",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		artifactDuration, recomputeDuration, ingestRows, storeEvents, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		artifactDuration:  artifactDuration,
		recomputeDuration: recomputeDuration,
		ingestRows:        ingestRows,
		storeEvents:       storeEvents,
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
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveArtifact records the time spent deriving one artifact.
func (m *MetricsService) ObserveArtifact(artifact progress.Node, duration time.Duration) {
	if m == nil {
		return
	}
	m.artifactDuration.WithLabelValues(string(artifact)).Observe(duration.Seconds())
}

// ObserveRecompute records a whole recompute pass.
func (m *MetricsService) ObserveRecompute(duration time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.recomputeCount, 1)
}

// RecordLoad records the outcome of an event load.
func (m *MetricsService) RecordLoad(loaded, dropped int) {
	if m == nil {
		return
	}
	m.ingestRows.WithLabelValues("loaded").Add(float64(loaded))
	m.ingestRows.WithLabelValues("dropped").Add(float64(dropped))
	m.storeEvents.Set(float64(loaded))
	atomic.AddUint64(&m.loadedRows, uint64(loaded))
	atomic.AddUint64(&m.droppedRows, uint64(dropped))
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		CacheHitRatio: ratio,
		CacheHits:     hits,
		CacheMisses:   misses,
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		Recomputes:    atomic.LoadUint64(&m.recomputeCount),
		LoadedRows:    atomic.LoadUint64(&m.loadedRows),
		DroppedRows:   atomic.LoadUint64(&m.droppedRows),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}

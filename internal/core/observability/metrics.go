package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	exportPlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_plans_total",
			Help: "Export planning calls by job kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	exportJobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_jobs_submitted_total",
			Help: "Export jobs handed to a sink.",
		},
		[]string{"kind", "sink", "outcome"},
	)

	zonalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonal_requests_total",
			Help: "Zonal statistics requests by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)

	zonalLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zonal_latency_seconds",
			Help:    "Latency of zonal statistics requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"engine"},
	)

	zonalCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonal_cache_results_total",
			Help: "Zonal result cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	annotationMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "area_annotation_misses_total",
			Help: "Area rows whose class had no name and were labelled unknown.",
		},
		[]string{"data_type"},
	)

	cacheOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Redis operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	jobqueueMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_messages_total",
			Help: "Export envelopes consumed by the worker, by outcome.",
		},
		[]string{"outcome"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		exportPlansTotal,
		exportJobsSubmittedTotal,
		zonalRequestsTotal,
		zonalLatencySeconds,
		zonalCacheResults,
		annotationMisses,
		cacheOpDuration,
		jobqueueMessages,
	}
}

// Init registers the collectors on reg. Registering twice on the same
// registry is a no-op. With on=false observations are dropped.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveExportPlan(kind string, err error) {
	if !enabled.Load() {
		return
	}
	exportPlansTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func ObserveJobSubmitted(kind, sink string, err error) {
	if !enabled.Load() {
		return
	}
	exportJobsSubmittedTotal.WithLabelValues(kind, sink, outcome(err)).Inc()
}

func ObserveZonal(engine string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	zonalRequestsTotal.WithLabelValues(engine, outcome(err)).Inc()
	zonalLatencySeconds.WithLabelValues(engine).Observe(durationSeconds)
}

// IncZonalCache records a lookup in tier ("lru" or "redis") with outcome
// "hit", "miss" or "error".
func IncZonalCache(tier, result string) {
	if !enabled.Load() {
		return
	}
	zonalCacheResults.WithLabelValues(tier, result).Inc()
}

func AddAnnotationMisses(dataType string, n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	annotationMisses.WithLabelValues(dataType).Add(float64(n))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	cacheOpDuration.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

// IncJobqueue records a consumed envelope: "forwarded", "duplicate",
// "decode_error" or "sink_error".
func IncJobqueue(result string) {
	if !enabled.Load() {
		return
	}
	jobqueueMessages.WithLabelValues(result).Inc()
}

// Package telemetry provides observability primitives for the kspai pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kspai"

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
	RemoteDuration     *prometheus.HistogramVec
	RemoteErrors       *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Answers            *prometheus.CounterVec
	RateLimitRejects   prometheus.Counter
	StreamFragments    *prometheus.CounterVec
	BreakerState       prometheus.Gauge
	JournalQueueLength prometheus.Gauge
}

func nativeHistogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:                       namespace,
		Name:                            name,
		Help:                            help,
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: 0,
	}
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(
			nativeHistogram("request_duration_seconds", "HTTP request duration in seconds."),
			[]string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		RemoteDuration: prometheus.NewHistogramVec(
			nativeHistogram("remote_duration_seconds", "Remote capability call duration in seconds."),
			[]string{"remote", "mode"}),

		RemoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Total remote capability failures that triggered a fallback.",
		}, []string{"remote", "status"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Total resolved answers by source.",
		}, []string{"source"}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections.",
		}),

		StreamFragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "Total fragments delivered to streaming callers.",
		}, []string{"mode"}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_breaker_state",
			Help:      "Remote circuit breaker state (0 closed, 1 open, 2 half-open).",
		}),

		JournalQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "journal_queue_length",
			Help:      "Current number of queued session journal operations.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RemoteDuration,
		m.RemoteErrors,
		m.CacheHits,
		m.CacheMisses,
		m.Answers,
		m.RateLimitRejects,
		m.StreamFragments,
		m.BreakerState,
		m.JournalQueueLength,
	)

	return m
}

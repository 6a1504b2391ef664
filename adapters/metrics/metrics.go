// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the gateway.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Quota and rate limit metrics
	QuotaDenials     *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	WordsProcessed   *prometheus.CounterVec

	// Upstream metrics
	UpstreamDuration *prometheus.HistogramVec
	UpstreamRetries  prometheus.Counter
	FallbackServed   prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics on the given registry. Tests
// use this to avoid double registration on the default one.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "requests_total",
				Help:      "Total number of API requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "andikar",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "andikar",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "quota_denials_total",
				Help:      "Requests denied because the word quota was exhausted",
			},
			[]string{"tier", "axis"},
		),
		RateLimitDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "ratelimit_denials_total",
				Help:      "Requests denied by the call-frequency limiter",
			},
			[]string{"tier"},
		),
		WordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "words_processed_total",
				Help:      "Words successfully humanized",
			},
			[]string{"tier"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "andikar",
				Name:      "upstream_duration_seconds",
				Help:      "Upstream humanizer call duration by winning format",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format", "fallback"},
		),
		UpstreamRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "upstream_retries_total",
				Help:      "Retried upstream attempts",
			},
		),
		FallbackServed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "fallback_served_total",
				Help:      "Requests served by the local degraded transform",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "andikar",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reload attempts",
			},
		),
	}
}

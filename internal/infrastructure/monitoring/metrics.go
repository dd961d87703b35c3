package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitHits   *prometheus.CounterVec
	SecurityBlocks  prometheus.Counter
	QuotaDenials    *prometheus.CounterVec
	FeatureDenials  *prometheus.CounterVec
}

// NewMetrics creates and registers the Prometheus metrics on the default
// registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the metrics on an explicit registerer. Tests pass a
// fresh registry so parallel instances never collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_requests_total",
				Help: "Total number of handled requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatekeeper_request_duration_seconds",
				Help:    "Latency of handled requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_rate_limit_hits_total",
				Help: "Total number of rate limit denials.",
			},
			[]string{"scope"},
		),
		SecurityBlocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_security_blocks_total",
				Help: "Total number of requests denied for blocked sources.",
			},
		),
		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_quota_denials_total",
				Help: "Total number of quota denials.",
			},
			[]string{"reason"},
		),
		FeatureDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_feature_denials_total",
				Help: "Total number of feature gate denials.",
			},
			[]string{"feature"},
		),
	}
}

// RecordRequest records metrics for one completed request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit denial.
func (m *Metrics) RecordRateLimitHit(scope constants.RateLimitScope) {
	m.RateLimitHits.WithLabelValues(string(scope)).Inc()
}

// RecordSecurityBlock records a request denied for a blocked source.
func (m *Metrics) RecordSecurityBlock() {
	m.SecurityBlocks.Inc()
}

// RecordQuotaDenial records a quota denial by reason code.
func (m *Metrics) RecordQuotaDenial(reason string) {
	m.QuotaDenials.WithLabelValues(reason).Inc()
}

// RecordFeatureDenial records a feature gate denial.
func (m *Metrics) RecordFeatureDenial(feature string) {
	m.FeatureDenials.WithLabelValues(feature).Inc()
}

package jwtgate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatekeep/go-jwt-gate/core"
)

// PrometheusMetrics implements core.Metrics using Prometheus.
type PrometheusMetrics struct {
	authorized *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	latency    prometheus.Histogram
}

// NewPrometheusMetrics registers the gate's collectors with reg under
// namespace and returns a core.Metrics backed by them. It panics if the
// collectors are already registered, like prometheus.MustRegister.
//
// Collectors:
//
//	<namespace>_authorized_total{permission}
//	<namespace>_rejected_total{kind}
//	<namespace>_authorization_duration_seconds
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		authorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorized_total",
			Help:      "Number of requests authorized, by required permission.",
		}, []string{"permission"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Number of requests rejected, by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "authorization_duration_seconds",
			Help:      "Time spent authorizing a token.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(m.authorized, m.rejected, m.latency)
	return m
}

func (m *PrometheusMetrics) IncAuthorized(permission string) {
	m.authorized.WithLabelValues(permission).Inc()
}

func (m *PrometheusMetrics) IncRejected(kind core.Kind) {
	m.rejected.WithLabelValues(string(kind)).Inc()
}

func (m *PrometheusMetrics) ObserveLatency(d time.Duration) {
	m.latency.Observe(d.Seconds())
}

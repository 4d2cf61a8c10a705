// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deviceauth"

type Metrics struct {
	// AuthOperations counts lifecycle operations by operation and outcome (ok or the error kind).
	AuthOperations *prometheus.CounterVec
	// GateRejections counts refused protected requests by reason.
	GateRejections *prometheus.CounterVec
	// RequestsTotal counts HTTP responses by method, route and status code.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration observes HTTP handling time by method and route.
	RequestDuration *prometheus.HistogramVec
	// AvatarURLCache counts avatar URL lookups by result (hit or miss).
	AvatarURLCache *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuthOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "The total number of token lifecycle operations",
		}, []string{"operation", "outcome"}),
		GateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "The total number of rejected protected requests",
		}, []string{"reason"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of HTTP responses by status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "The request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AvatarURLCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "avatar_url_cache_total",
			Help:      "The total number of avatar URL cache lookups",
		}, []string{"result"}),
	}
}

// NewNop returns collectors registered nowhere, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

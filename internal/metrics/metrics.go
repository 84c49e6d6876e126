// Package metrics описывает счётчики Prometheus движка связей.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics набор счётчиков, отдаваемых на /metrics.
type Metrics struct {
	ConnectionRequests  *prometheus.CounterVec
	ConnectionDecisions *prometheus.CounterVec
	Activations         *prometheus.CounterVec
	SignatureMismatches prometheus.Counter
	PublishFailures     *prometheus.CounterVec
	RateLimited         prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "connection_requests_total",
			Help:      "Connection request attempts by outcome.",
		}, []string{"result"}),
		ConnectionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "connection_decisions_total",
			Help:      "Accepted, rejected and removed connections.",
		}, []string{"action"}),
		Activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "payment_activations_total",
			Help:      "Payment activation attempts by outcome.",
		}, []string{"result"}),
		SignatureMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "payment_signature_mismatch_total",
			Help:      "Payment confirmations rejected because of an invalid signature.",
		}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "notification_publish_failures_total",
			Help:      "Notifications that could not be published to the broker.",
		}, []string{"event"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connection_engine",
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		m.ConnectionRequests,
		m.ConnectionDecisions,
		m.Activations,
		m.SignatureMismatches,
		m.PublishFailures,
		m.RateLimited,
	)
	return m
}

// NewNop создаёт счётчики без регистрации, для тестов и утилит.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

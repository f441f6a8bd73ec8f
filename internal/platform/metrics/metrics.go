// Package metrics exposes the service's Prometheus instruments. Construct
// once in cmd/server; promauto registers against the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsReused     *prometheus.CounterVec
	WebhooksProcessed  *prometheus.CounterVec
	ProviderRejections prometheus.Counter
	RateAlerts         prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_verification_sessions_created_total",
			Help: "Total number of fresh verification sessions created with the provider",
		}),
		SessionsReused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_verification_sessions_reused_total",
			Help: "Total number of start-session calls answered with an existing attempt",
		}, []string{"reason"}),
		WebhooksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_verification_webhooks_total",
			Help: "Total number of inbound decision webhooks by outcome",
		}, []string{"outcome"}),
		ProviderRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_verification_provider_rejections_total",
			Help: "Total number of non-success responses recorded from the provider",
		}),
		RateAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_verification_rate_alerts_total",
			Help: "Total number of advisory rate alerts emitted",
		}),
	}
}

func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

func (m *Metrics) RecordSessionReused(validated bool) {
	reason := "active"
	if validated {
		reason = "validated"
	}
	m.SessionsReused.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordWebhook(outcome string) {
	m.WebhooksProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordProviderRejection() {
	m.ProviderRejections.Inc()
}

func (m *Metrics) RecordRateAlert() {
	m.RateAlerts.Inc()
}

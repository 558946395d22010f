package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox delivery to the audit topic.
type Metrics struct {
	Published      prometheus.Counter
	RelayFailures  prometheus.Counter
	PendingEntries prometheus.Gauge
}

// New registers the relay metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_audit_outbox_published_total",
			Help: "Outbox entries delivered to the audit topic",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_audit_outbox_relay_failures_total",
			Help: "Relay passes that failed to deliver a batch",
		}),
		PendingEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "findthem_audit_outbox_pending",
			Help: "Outbox entries awaiting delivery after the last relay pass",
		}),
	}
}

func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

func (m *Metrics) IncFailure() {
	m.RelayFailures.Inc()
}

func (m *Metrics) SetPending(n int) {
	m.PendingEntries.Set(float64(n))
}

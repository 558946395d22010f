package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_ratelimit_decisions_total",
			Help: "Rate limit checks by scope and outcome",
		}, []string{"scope", "outcome"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the bucket store errored",
		}),
	}
}

func (m *Metrics) IncDecision(scope string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) IncStoreError() {
	m.StoreErrors.Inc()
}

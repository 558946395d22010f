package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the registration saga and verification reviews.
type Metrics struct {
	Registrations           *prometheus.CounterVec
	Compensations           *prometheus.CounterVec
	VerificationDecisions   *prometheus.CounterVec
	IncompleteRegistrations prometheus.Gauge
}

// New registers the profile metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_registrations_total",
			Help: "Registrations by outcome (complete, incomplete, abandoned)",
		}, []string{"outcome"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_registration_compensations_total",
			Help: "Verification request retries by result",
		}, []string{"result"}),
		VerificationDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_verification_decisions_total",
			Help: "Verification reviews by decision",
		}, []string{"decision"}),
		IncompleteRegistrations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "findthem_registrations_incomplete",
			Help: "Registrations seen without a verification request on the last retry pass",
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCompensation(result string) {
	m.Compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDecision(decision string) {
	m.VerificationDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SetIncomplete(n int) {
	m.IncompleteRegistrations.Set(float64(n))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the local identity gateway.
type Metrics struct {
	SignUps             prometheus.Counter
	SignIns             *prometheus.CounterVec
	SignOuts            prometheus.Counter
	RevocationCheckTime prometheus.Histogram
}

// New registers the identity metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignUps: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_identity_signups_total",
			Help: "Accounts created through the identity gateway",
		}),
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_identity_signins_total",
			Help: "Sign-in attempts by outcome",
		}, []string{"outcome"}),
		SignOuts: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_identity_signouts_total",
			Help: "Sessions revoked by sign-out",
		}),
		RevocationCheckTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "findthem_identity_revocation_check_duration_seconds",
			Help:    "Latency of token revocation lookups",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
	}
}

func (m *Metrics) IncSignUp() {
	m.SignUps.Inc()
}

// IncSignIn records an attempt; outcome is "success" or "failure".
func (m *Metrics) IncSignIn(outcome string) {
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSignOut() {
	m.SignOuts.Inc()
}

func (m *Metrics) ObserveRevocationCheck(d time.Duration) {
	m.RevocationCheckTime.Observe(d.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records how long each dashboard aggregate takes to load.
type Metrics struct {
	QueryLatency *prometheus.HistogramVec
}

// New registers the dashboard metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		QueryLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "findthem_dashboard_query_duration_seconds",
			Help:    "Latency of dashboard aggregate queries by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"source"}),
	}
}

func (m *Metrics) ObserveQuery(source string, d time.Duration) {
	m.QueryLatency.WithLabelValues(source).Observe(d.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for sighting intake and moderation.
type Metrics struct {
	SightingsSubmitted prometheus.Counter
	StatusChanges      *prometheus.CounterVec
	SubmitDuration     prometheus.Histogram
}

// New registers the sighting metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SightingsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_sightings_submitted_total",
			Help: "Total number of public sighting reports accepted",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_sighting_status_changes_total",
			Help: "Sighting moderation decisions by target status",
		}, []string{"status"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "findthem_sighting_submit_duration_seconds",
			Help:    "Duration of sighting submission",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) IncSubmitted() {
	m.SightingsSubmitted.Inc()
}

func (m *Metrics) IncStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

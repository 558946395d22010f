package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the case lifecycle and public search.
type Metrics struct {
	CasesCreated         prometheus.Counter
	CaseNumberCollisions prometheus.Counter
	StatusChanges        *prometheus.CounterVec
	CreateDuration       prometheus.Histogram
	SearchDuration       prometheus.Histogram
}

// New registers the case metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_cases_created_total",
			Help: "Total number of missing-child cases created",
		}),
		CaseNumberCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "findthem_case_number_collisions_total",
			Help: "Case number allocations that hit an existing number and were regenerated",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "findthem_case_status_changes_total",
			Help: "Case status transitions by target status",
		}, []string{"status"}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "findthem_case_create_duration_seconds",
			Help:    "Duration of case creation including case number allocation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "findthem_case_search_duration_seconds",
			Help:    "Duration of public case searches",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncCaseCreated() {
	m.CasesCreated.Inc()
}

func (m *Metrics) IncCaseNumberCollision() {
	m.CaseNumberCollisions.Inc()
}

func (m *Metrics) IncStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

// ObserveCreate records the duration of a Create call started at start.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveSearch records the duration of a Search call started at start.
func (m *Metrics) ObserveSearch(start time.Time) {
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

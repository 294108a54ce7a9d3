package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the registration ledger: attempts by outcome, withdrawals
// and registrations removed by the cleanup job.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	Unregistrations prometheus.Counter
	CleanupDeleted  prometheus.Counter
}

// New registers the karting metrics with reg. Pass
// prometheus.DefaultRegisterer in the server; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "karting_registrations_total",
			Help: "Race registration attempts by outcome",
		}, []string{"outcome"}),
		Unregistrations: f.NewCounter(prometheus.CounterOpts{
			Name: "karting_unregistrations_total",
			Help: "Race registrations withdrawn by their user",
		}),
		CleanupDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "karting_cleanup_deleted_total",
			Help: "Registrations of past races removed by the cleanup job",
		}),
	}
}

func (m *Metrics) RegistrationAttempt(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Unregistered() {
	m.Unregistrations.Inc()
}

func (m *Metrics) RegistrationsCleared(n int) {
	m.CleanupDeleted.Add(float64(n))
}

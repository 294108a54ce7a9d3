package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"karting-platform/internal/karting"
)

var _ karting.Metrics = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RegistrationAttempt(karting.OutcomeRegistered)
	m.RegistrationAttempt(karting.OutcomeRegistered)
	m.RegistrationAttempt(karting.OutcomeRaceFull)
	m.Unregistered()
	m.RegistrationsCleared(3)
	m.RegistrationsCleared(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues(karting.OutcomeRegistered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(karting.OutcomeRaceFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unregistrations))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CleanupDeleted))
}

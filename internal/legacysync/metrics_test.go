package legacysync

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_SharesCollectorsOnSecondRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewMetrics(reg)
	var second *Metrics
	require.NotPanics(t, func() { second = NewMetrics(reg) })

	second.ObserveRun(&Report{Trigger: TriggerManual, Status: StatusSucceeded, AppointmentsCreated: 2}, time.Second)

	assert.Equal(t, 1.0, promtest.ToFloat64(first.runsTotal.WithLabelValues(TriggerManual, StatusSucceeded)))
	assert.Equal(t, 2.0, promtest.ToFloat64(first.bookingsTotal.WithLabelValues("created")))
}

func TestNewMetrics_ConflictingCollectorPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ortho", Subsystem: "legacy_sync", Name: "run_duration_seconds", Help: "other",
	}))

	assert.Panics(t, func() { NewMetrics(reg) })
}

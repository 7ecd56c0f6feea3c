package legacysync

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes prometheus counters for booking sync runs.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ortho",
			Subsystem: "legacy_sync",
			Name:      "runs_total",
			Help:      "Booking sync runs by trigger and final status",
		}, []string{"trigger", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ortho",
			Subsystem: "legacy_sync",
			Name:      "bookings_total",
			Help:      "Legacy bookings processed by result",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ortho",
			Subsystem: "legacy_sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of booking sync runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m.runsTotal = register(reg, m.runsTotal)
	m.bookingsTotal = register(reg, m.bookingsTotal)
	m.runDuration = register(reg, m.runDuration)
	return m
}

// register adds c to reg, or returns the collector already registered
// under the same name so a second App in one process shares it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// ObserveRun records a finished run and its per-booking results.
func (m *Metrics) ObserveRun(r *Report, took time.Duration) {
	if m == nil || r == nil {
		return
	}
	m.runsTotal.WithLabelValues(r.Trigger, r.Status).Inc()
	m.runDuration.Observe(took.Seconds())

	for result, n := range map[string]int{
		"created":   r.AppointmentsCreated,
		"updated":   r.AppointmentsUpdated,
		"unchanged": r.Unchanged,
		"skipped":   r.Skipped,
		"failed":    r.Failed,
	} {
		if n > 0 {
			m.bookingsTotal.WithLabelValues(result).Add(float64(n))
		}
	}
}

package driver

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parthenon_driver_cycles_total",
			Help: "Total number of completed integration cycles.",
		},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parthenon_driver_stage_duration_seconds",
			Help:    "Wall time to drive every task list of one stage to completion.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		},
		[]string{"integrator", "stage"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parthenon_driver_runs_total",
			Help: "Total number of finished driver runs by final state.",
		},
		[]string{"state"},
	)

	simulationTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parthenon_driver_simulation_time",
			Help: "Simulation time reached by the most recent cycle.",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(stageDuration)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(simulationTime)
}

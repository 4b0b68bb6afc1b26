package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parthenon_dispatch_launches_total",
			Help: "Total number of dispatched loops.",
		},
		[]string{"space", "pattern"},
	)

	iterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parthenon_dispatch_iterations_total",
			Help: "Total number of index tuples visited by dispatched loops.",
		},
		[]string{"space", "pattern"},
	)
)

func init() {
	prometheus.MustRegister(launchesTotal)
	prometheus.MustRegister(iterationsTotal)
}

func observeLaunch(s Space, p Pattern, iterations int) {
	name, pattern := s.Name(), p.String()
	launchesTotal.WithLabelValues(name, pattern).Inc()
	iterationsTotal.WithLabelValues(name, pattern).Add(float64(iterations))
}

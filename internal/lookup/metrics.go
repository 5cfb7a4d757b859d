package lookup

import "github.com/prometheus/client_golang/prometheus"

var (
	// sourceResults counts per-source outcomes: match, miss, expired, error.
	sourceResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_source_results_total",
			Help: "Status lookups per source, by result.",
		},
		[]string{"source", "result"},
	)

	// resolutions counts resolver outcomes: found, not_found.
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_resolutions_total",
			Help: "Status resolutions, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(sourceResults, resolutions)
}

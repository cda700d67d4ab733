package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Matrix cells resolved, by leg source.
	MatrixCellsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitroute_matrix_cells_total",
			Help: "Travel matrix cells resolved, by source",
		},
		[]string{"source"},
	)

	MatrixLookupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visitroute_matrix_lookup_failures_total",
			Help: "External matrix lookups that failed entirely and fell back to estimation",
		},
	)

	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitroute_plans_total",
			Help: "Planned routes, by strategy",
		},
		[]string{"strategy"},
	)

	PlanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visitroute_plan_duration_seconds",
			Help:    "Wall-clock time to plan one route",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visitroute_cache_evictions_total",
			Help: "Travel time cache entries evicted after TTL expiry",
		},
	)
)

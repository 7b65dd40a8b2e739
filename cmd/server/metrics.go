package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationTotal counts analysis mutations by operation and result.
	mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shouldcost_analysis_mutations_total",
		Help: "Analysis mutations by operation and result",
	}, []string{"operation", "result"})

	// recomputeTotal counts summary recomputations by band mode.
	recomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shouldcost_rollup_recomputes_total",
		Help: "Summary recomputations by band mode",
	}, []string{"mode"})

	// recomputeDuration tracks how long a rollup takes.
	recomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shouldcost_rollup_recompute_duration_seconds",
		Help:    "Summary recompute duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	// sessionsActive reports live analysis sessions.
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shouldcost_sessions_active",
		Help: "Analysis sessions held in memory",
	})
)

func observeMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutationTotal.WithLabelValues(operation, result).Inc()
}

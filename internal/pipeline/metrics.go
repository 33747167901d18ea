package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopr_runs_total",
			Help: "Total pipeline runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopr_steps_total",
			Help: "Total pipeline step results by step and status",
		},
		[]string{"step", "status"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopr_step_duration_seconds",
			Help:    "Wall-clock duration of pipeline steps",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"step"},
	)
)

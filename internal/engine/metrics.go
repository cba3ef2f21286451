// Prometheus metrics for the correction engine.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// overridesApplied counts applied overrides per field.
	overridesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardlearn",
			Subsystem: "engine",
			Name:      "overrides_applied_total",
			Help:      "Total number of upstream values overridden, by field",
		},
		[]string{"field"},
	)

	// suppressedPredictions counts predictions that did not override.
	// Labels: field, reason (no_opinion, below_threshold, confirmation)
	suppressedPredictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardlearn",
			Subsystem: "engine",
			Name:      "predictions_suppressed_total",
			Help:      "Total number of predictions that did not produce an override",
		},
		[]string{"field", "reason"},
	)

	// trainingRuns counts training runs by result (success, skipped, error).
	trainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardlearn",
			Subsystem: "engine",
			Name:      "training_runs_total",
			Help:      "Total number of training runs by result",
		},
		[]string{"result"},
	)

	// trainingDuration tracks how long successful training runs take.
	trainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cardlearn",
			Subsystem: "engine",
			Name:      "training_duration_seconds",
			Help:      "Duration of successful training runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// modelFields tracks how many fields currently hold a fitted model.
	modelFields = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cardlearn",
			Subsystem: "engine",
			Name:      "model_fields",
			Help:      "Number of fields with a live fitted model",
		},
	)
)

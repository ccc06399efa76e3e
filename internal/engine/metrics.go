package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_sweeps_total",
		Help: "Completed evaluation sweeps.",
	})
	projectsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_projects_evaluated_total",
		Help: "Per-project evaluations across all sweeps.",
	})
	evalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_evaluation_failures_total",
		Help: "Per-project evaluations that errored and were skipped.",
	})
	autoAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_auto_advanced_total",
		Help: "Transitions triggered by the auto-advance rule.",
	})
	stuckNotices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_stuck_notices_total",
		Help: "Stuck notifications emitted (after dedupe).",
	})
	reminderNotices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_reminder_notices_total",
		Help: "Pending-action reminders emitted (after dedupe).",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_sweep_duration_seconds",
		Help:    "Wall time of one evaluation sweep.",
		Buckets: prometheus.DefBuckets,
	})
)

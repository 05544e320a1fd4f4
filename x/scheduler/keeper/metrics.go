package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics holds all Prometheus metrics for the scheduler module
type SchedulerMetrics struct {
	JobsCreated      *prometheus.CounterVec
	JobsAssigned     *prometheus.CounterVec
	JobsCompleted    *prometheus.CounterVec
	JobsSettled      *prometheus.CounterVec
	JobsCancelled    *prometheus.CounterVec
	AuditOutcomes    *prometheus.CounterVec
	NoSuitableNode   prometheus.Counter
	CandidatesPerJob prometheus.Histogram
	QueueDepth       prometheus.Gauge
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// NewSchedulerMetrics creates and registers scheduler metrics (singleton pattern)
func NewSchedulerMetrics() *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = &SchedulerMetrics{
			JobsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "jobs_created_total",
					Help:      "Total jobs submitted",
				},
				[]string{"job_type", "rail"},
			),
			JobsAssigned: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "jobs_assigned_total",
					Help:      "Total jobs assigned to a node",
				},
				[]string{"job_type", "audited"},
			),
			JobsCompleted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "jobs_completed_total",
					Help:      "Total primary results submitted",
				},
				[]string{"job_type"},
			),
			JobsSettled: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "jobs_settled_total",
					Help:      "Total jobs paid out",
				},
				[]string{"rail"},
			),
			JobsCancelled: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "jobs_cancelled_total",
					Help:      "Total jobs cancelled and refunded",
				},
				[]string{"from_status"},
			),
			AuditOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "audit_outcomes_total",
					Help:      "Duplicate-audit comparisons by outcome",
				},
				[]string{"matched"},
			),
			NoSuitableNode: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "no_suitable_node_total",
					Help:      "Assignment attempts that found no candidate",
				},
			),
			CandidatesPerJob: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "candidates_per_assignment",
					Help:      "Candidates with free capacity considered per assignment",
					Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
				},
			),
			QueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "greenmesh",
					Subsystem: "scheduler",
					Name:      "pending_jobs",
					Help:      "Jobs waiting for assignment",
				},
			),
		}
	})
	return schedulerMetrics
}

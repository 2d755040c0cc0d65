// Package metrics defines the Prometheus instruments for the reading
// pipeline. Metrics are created on a caller-supplied registry and passed
// by reference to the components that record them; no package-level
// singletons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics holds the pipeline's Prometheus instruments.
type Metrics struct {
	JobsProcessed   *prometheus.CounterVec
	JobDuration     prometheus.Histogram
	BatchFailures   prometheus.Counter
	CreditsDeducted prometheus.Counter
	WorkerHealthy   prometheus.Gauge
}

// New creates and registers the pipeline metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcana",
			Name:      "jobs_processed_total",
			Help:      "Reading jobs processed, by terminal outcome.",
		}, []string{"outcome"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arcana",
			Name:      "job_duration_seconds",
			Help:      "Wall time spent processing one reading job.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arcana",
			Name:      "worker_batch_failures_total",
			Help:      "Worker iterations that failed at the batch level.",
		}),
		CreditsDeducted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arcana",
			Name:      "credits_deducted_total",
			Help:      "Credits charged for delivered readings.",
		}),
		WorkerHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arcana",
			Name:      "worker_healthy",
			Help:      "1 while the batch worker loop is running, 0 once it has stopped.",
		}),
	}

	reg.MustRegister(
		m.JobsProcessed,
		m.JobDuration,
		m.BatchFailures,
		m.CreditsDeducted,
		m.WorkerHealthy,
	)
	return m
}

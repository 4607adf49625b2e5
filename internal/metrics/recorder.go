// Package metrics records deployment outcomes and stage timings, and writes
// them in the Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// Outcome is the final result of one pipeline run.
type Outcome string

const (
	// OutcomeSucceeded means the job finished with success set.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the job finished but the platform reported failure.
	OutcomeFailed Outcome = "failed"
	// OutcomeError means a stage failed before the job finished.
	OutcomeError Outcome = "error"
)

// Recorder stores all the metrics of deployment runs.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	componentFailures prometheus.Counter
	pollAttempts      prometheus.Gauge
	lastRunTimestamp  prometheus.Gauge
}

// NewRecorder builds the collectors. When register is false they are left
// out of the registry, which lets tests read them without exporting.
func NewRecorder(register bool) *Recorder {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadeploy_runs_total",
			Help: "Deployment runs, grouped by outcome and by the stage that failed",
		}, []string{"outcome", "stage"})

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadeploy_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 150, 300},
		}, []string{"stage"})

	componentFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metadeploy_component_failures_total",
			Help: "Component failures reported by finished deployments",
		})

	pollAttempts := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadeploy_last_poll_attempts",
			Help: "Status requests made by the last finished poll",
		})

	lastRunTimestamp := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadeploy_last_run_timestamp_seconds",
			Help: "Unix time the last run ended",
		})

	registry := prometheus.NewRegistry()

	if register {
		registry.MustRegister(
			runsTotal,
			stageDuration,
			componentFailures,
			pollAttempts,
			lastRunTimestamp,
		)
	}

	return &Recorder{
		registry:          registry,
		runsTotal:         runsTotal,
		stageDuration:     stageDuration,
		componentFailures: componentFailures,
		pollAttempts:      pollAttempts,
		lastRunTimestamp:  lastRunTimestamp,
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage deploy.Stage, d time.Duration) {
	if r == nil {
		return
	}

	r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// RecordJob records a run that reached a finished job.
func (r *Recorder) RecordJob(job *deploy.Job, attempts int, now time.Time) {
	if r == nil || job == nil {
		return
	}

	outcome := OutcomeFailed
	if job.Success {
		outcome = OutcomeSucceeded
	}

	r.runsTotal.WithLabelValues(string(outcome), "").Inc()
	r.componentFailures.Add(float64(len(job.Failures)))
	r.pollAttempts.Set(float64(attempts))
	r.lastRunTimestamp.Set(float64(now.Unix()))
}

// RecordError records a run stopped by a failing stage.
func (r *Recorder) RecordError(stage deploy.Stage, now time.Time) {
	if r == nil {
		return
	}

	r.runsTotal.WithLabelValues(string(OutcomeError), string(stage)).Inc()
	r.lastRunTimestamp.Set(float64(now.Unix()))
}

// WriteToTextfile atomically writes the registered metrics to path.
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	return prometheus.WriteToTextfile(path, r.registry)
}

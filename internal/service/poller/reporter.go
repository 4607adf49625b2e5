package poller

import (
	"context"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
)

// Reporter receives progress and the component failures of finished jobs.
type Reporter interface {
	Progress(ctx context.Context, state State)
	Failures(ctx context.Context, job *deploy.Job)
}

// LogReporter writes to the context logger.
type LogReporter struct{}

// Progress logs each attempt at debug level.
func (LogReporter) Progress(ctx context.Context, state State) {
	status := ""
	if state.Job != nil {
		status = state.Job.Status
	}

	logger.DebugKV(ctx, "Deployment status", "attempt", state.Attempts, "phase", state.Phase, "status", status)
}

// Failures logs one line per component failure.
func (LogReporter) Failures(ctx context.Context, job *deploy.Job) {
	logger.WarnKV(ctx, "Deployment finished with component failures",
		"job_id", job.ID, "status", job.Status, "count", len(job.Failures))

	for _, f := range job.Failures {
		logger.WarnKV(ctx, "Component failure",
			"file", f.UnitName,
			"type", f.ComponentType,
			"line", f.LineNumber,
			"problem", f.Problem)
	}
}

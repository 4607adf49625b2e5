package cmd

import (
	"context"
	"time"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/metrics"
	"github.com/oshokin/metadeploy/internal/repository/history"
	"github.com/oshokin/metadeploy/internal/service/packager"
	"github.com/oshokin/metadeploy/internal/service/pipeline"
	"github.com/oshokin/metadeploy/internal/service/poller"
	"github.com/oshokin/metadeploy/internal/service/session"
	"github.com/oshokin/metadeploy/internal/service/submitter"
)

// app holds what the platform-facing commands share for one invocation.
type app struct {
	cfg      *config.Config
	sessions *session.Manager
	recorder *metrics.Recorder
}

// newApp loads the settings and builds a session manager over them.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if metricsFile != "" {
		cfg.MetricsFile = metricsFile
	}

	return &app{
		cfg: cfg,
		sessions: session.NewManager(cfg,
			session.WithAPIVersion(cfg.APIVersion),
			session.WithTimeout(cfg.Timeout)),
		recorder: metrics.NewRecorder(true),
	}, nil
}

// pipeline wires the deployment stages with the app's settings.
func (a *app) pipeline() *pipeline.Pipeline {
	clientOptions := a.sessions.ClientOptions()

	return pipeline.New(
		a.sessions,
		packager.NewBuilder(),
		submitter.New(submitter.WithClientOptions(clientOptions...)),
		poller.New(
			poller.WithClientOptions(clientOptions...),
			poller.WithBudget(a.cfg.Poll.Attempts, a.cfg.Poll.Interval),
			poller.WithAPIVersion(a.cfg.Poll.APIVersion),
		),
		pipeline.WithRecorder(a.recorder),
		pipeline.WithArtifactPattern(a.cfg.ArtifactPattern),
	)
}

// flushMetrics writes the metrics file if one is configured.
func (a *app) flushMetrics(ctx context.Context) {
	if a.cfg.MetricsFile == "" {
		return
	}

	if err := a.recorder.WriteToTextfile(a.cfg.MetricsFile); err != nil {
		logger.WarnKV(ctx, "Failed to write metrics", "path", a.cfg.MetricsFile, "error", err)
		return
	}

	logger.DebugKV(ctx, "Metrics written", "path", a.cfg.MetricsFile)
}

// recordJob saves the finished job as the last deployment. Failing to
// record does not fail the deployment.
func (a *app) recordJob(ctx context.Context, job *deploy.Job, folder string, checkOnly bool) {
	record := deploy.NewRecord(job, folder, checkOnly, time.Now())

	if actor, err := deploy.DetectActor(); err == nil {
		record.Actor = &actor
	} else {
		logger.DebugKV(ctx, "Cannot detect actor", "error", err)
	}

	if err := history.NewFileRepository(a.cfg.HistoryFile).Save(ctx, record); err != nil {
		logger.WarnKV(ctx, "Failed to record deployment", "path", a.cfg.HistoryFile, "error", err)
	}
}

package pipeline

import (
	"context"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/metrics"
	"github.com/oshokin/metadeploy/internal/service/packager"
)

// SessionProvider hands out a session the platform currently accepts.
type SessionProvider interface {
	EnsureSession(ctx context.Context) (deploy.Session, error)
}

// PackageBuilder turns artifacts into an archive.
type PackageBuilder interface {
	Build(ctx context.Context, artifacts []deploy.ArtifactRef) (*deploy.Package, error)
}

// Submitter starts a deployment and returns its job id.
type Submitter interface {
	Submit(ctx context.Context, session deploy.Session, pkg *deploy.Package,
		overrides *deploy.OptionOverrides) (string, error)
}

// Poller waits for a job to finish.
type Poller interface {
	Poll(ctx context.Context, session deploy.Session, jobID string) (*deploy.Job, error)
}

// Pipeline wires the stages together. Each Pipeline owns its session
// through its SessionProvider.
type Pipeline struct {
	sessions        SessionProvider
	builder         PackageBuilder
	submitter       Submitter
	poller          Poller
	recorder        *metrics.Recorder
	clock           clock.PassiveClock
	artifactPattern string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records run metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithClock replaces the clock used to time stages.
func WithClock(c clock.PassiveClock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithArtifactPattern sets the file name filter used by DeployFolder.
func WithArtifactPattern(pattern string) Option {
	return func(p *Pipeline) {
		if pattern != "" {
			p.artifactPattern = pattern
		}
	}
}

// New returns a Pipeline over the given stages.
func New(sessions SessionProvider, builder PackageBuilder, submitter Submitter, poller Poller, opts ...Option) *Pipeline {
	p := &Pipeline{
		sessions:        sessions,
		builder:         builder,
		submitter:       submitter,
		poller:          poller,
		clock:           clock.RealClock{},
		artifactPattern: config.DefaultArtifactPattern,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Deploy runs session, package, submit and poll in order and returns the
// finished job. A job with component failures is returned without error.
func (p *Pipeline) Deploy(
	ctx context.Context,
	artifacts []deploy.ArtifactRef,
	overrides *deploy.OptionOverrides,
) (*deploy.Job, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "pipeline"), "run_id", uuid.NewString())

	logger.InfoKV(ctx, "Deployment started", "artifacts", len(artifacts))

	var session deploy.Session

	err := p.stage(ctx, deploy.StageSession, func() (err error) {
		session, err = p.sessions.EnsureSession(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var pkg *deploy.Package

	err = p.stage(ctx, deploy.StagePackage, func() (err error) {
		pkg, err = p.builder.Build(ctx, artifacts)
		return err
	})
	if err != nil {
		return nil, err
	}

	var jobID string

	err = p.stage(ctx, deploy.StageSubmit, func() (err error) {
		jobID, err = p.submitter.Submit(ctx, session, pkg, overrides)
		return err
	})
	if err != nil {
		return nil, err
	}

	var job *deploy.Job

	err = p.stage(ctx, deploy.StagePoll, func() (err error) {
		job, err = p.poller.Poll(ctx, session, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.recorder.RecordJob(job, job.Attempts, p.clock.Now())

	logger.InfoKV(ctx, "Deployment completed",
		"job_id", job.ID,
		"status", job.Status,
		"success", job.Success,
		"component_failures", len(job.Failures))

	return job, nil
}

// DeployFolder deploys every matching file directly under folder.
// validateOnly asks the platform to check the package without saving it.
func (p *Pipeline) DeployFolder(
	ctx context.Context,
	folder string,
	validateOnly bool,
	overrides *deploy.OptionOverrides,
) (*deploy.Job, error) {
	artifacts, err := packager.Discover(folder, p.artifactPattern)
	if err != nil {
		p.recorder.RecordError(deploy.StageDiscover, p.clock.Now())
		return nil, &deploy.StageError{Stage: deploy.StageDiscover, Err: err}
	}

	merged := deploy.OptionOverrides{}
	if overrides != nil {
		merged = *overrides
	}

	merged.CheckOnly = &validateOnly

	logger.InfoKV(ctx, "Artifacts discovered",
		"folder", folder, "pattern", p.artifactPattern, "count", len(artifacts), "validate_only", validateOnly)

	return p.Deploy(ctx, artifacts, &merged)
}

// stage times fn and attaches the stage to its error.
func (p *Pipeline) stage(ctx context.Context, stage deploy.Stage, fn func() error) error {
	started := p.clock.Now()
	err := fn()

	p.recorder.ObserveStage(stage, p.clock.Since(started))

	if err == nil {
		return nil
	}

	p.recorder.RecordError(stage, p.clock.Now())
	logger.ErrorKV(ctx, "Deployment stage failed", "stage", stage, "error", err)

	return &deploy.StageError{Stage: stage, Err: err}
}

package poller

import (
	"context"
	"net/url"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/service/common"
)

const deployRequestPath = "metadata/deployRequest/"

// Poller reads job status at a fixed interval. It only reads the session it
// is given and never refreshes it: a session that expires mid-poll runs the
// budget out.
type Poller struct {
	clientOptions []common.Option
	clock         clock.Clock
	reporter      Reporter
	apiVersion    string
	attempts      int
	interval      time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithClientOptions sets the options for the REST client.
func WithClientOptions(opts ...common.Option) Option {
	return func(p *Poller) {
		p.clientOptions = append(p.clientOptions, opts...)
	}
}

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithReporter replaces the logging reporter.
func WithReporter(r Reporter) Option {
	return func(p *Poller) {
		if r != nil {
			p.reporter = r
		}
	}
}

// WithAPIVersion sets the REST version of status requests.
func WithAPIVersion(apiVersion string) Option {
	return func(p *Poller) {
		if apiVersion != "" {
			p.apiVersion = apiVersion
		}
	}
}

// WithBudget sets the attempt count and the spacing between attempts.
// Non-positive values keep the defaults.
func WithBudget(attempts int, interval time.Duration) Option {
	return func(p *Poller) {
		if attempts > 0 {
			p.attempts = attempts
		}

		if interval > 0 {
			p.interval = interval
		}
	}
}

// New returns a Poller with 30 attempts spaced 5 seconds apart.
func New(opts ...Option) *Poller {
	p := &Poller{
		clock:      clock.RealClock{},
		reporter:   LogReporter{},
		apiVersion: config.DefaultPollAPIVersion,
		attempts:   config.DefaultPollAttempts,
		interval:   config.DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Poll returns the job once it is done, component failures included.
// It returns *deploy.TimeoutError when the budget runs out, and the context
// error if ctx ends first. The budget is attempts times interval of wall
// time on the poller's clock: a status request never outlives it.
func (p *Poller) Poll(ctx context.Context, session deploy.Session, jobID string) (*deploy.Job, error) {
	clientOptions := append(slices.Clone(p.clientOptions), common.WithAPIVersion(p.apiVersion))

	client, err := common.NewClient(session, clientOptions...)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "job_id", jobID)
	statusURL := client.DataURL(deployRequestPath+url.PathEscape(jobID)) + "?includeDetails=true"

	deadline := p.clock.Now().Add(time.Duration(p.attempts) * p.interval)
	state := State{Phase: PhasePending}

	for {
		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			return nil, &deploy.TimeoutError{JobID: jobID, Attempts: state.Attempts}
		}

		tick, expired := p.fetch(ctx, client, statusURL, jobID, remaining)
		if tick.Err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if expired {
				logger.WarnKV(ctx, "Status request outlived the poll budget", "attempt", state.Attempts+1)

				return nil, &deploy.TimeoutError{JobID: jobID, Attempts: state.Attempts + 1}
			}

			logger.WarnKV(ctx, "Status request failed", "attempt", state.Attempts+1, "error", tick.Err)
		}

		state = Transition(state, tick, p.attempts)
		p.reporter.Progress(ctx, state)

		switch state.Phase {
		case PhaseDone:
			state.Job.Attempts = state.Attempts

			if state.Job.HasFailures() {
				p.reporter.Failures(ctx, state.Job)
			}

			logger.InfoKV(ctx, "Deployment finished",
				"status", state.Job.Status, "success", state.Job.Success, "attempts", state.Attempts)

			return state.Job, nil
		case PhaseTimedOut:
			return nil, &deploy.TimeoutError{JobID: jobID, Attempts: state.Attempts}
		case PhasePending:
		}

		if err = p.wait(ctx, min(p.interval, deadline.Sub(p.clock.Now()))); err != nil {
			return nil, err
		}
	}
}

// fetch runs one status request cut off at the remaining budget. expired
// reports whether the budget, not the caller, ended the request.
func (p *Poller) fetch(
	ctx context.Context,
	client *common.Client,
	statusURL, jobID string,
	remaining time.Duration,
) (tick Tick, expired bool) {
	reqCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	var resp statusResponse

	if err := client.Get(reqCtx, statusURL, &resp); err != nil {
		return Tick{Err: err}, reqCtx.Err() != nil && ctx.Err() == nil
	}

	return Tick{Job: resp.toJob(jobID)}, false
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

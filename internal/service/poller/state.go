package poller

import "github.com/oshokin/metadeploy/internal/domain/deploy"

// Phase is where a poll run stands.
type Phase int

const (
	// PhasePending means another attempt is allowed.
	PhasePending Phase = iota
	// PhaseDone means the platform reported the job finished.
	PhaseDone
	// PhaseTimedOut means the budget ran out first.
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDone:
		return "done"
	case PhaseTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// State is the poll run so far.
type State struct {
	Phase Phase
	// Attempts counts ticks consumed, failed ones included.
	Attempts int
	// Job is the latest successfully read job, nil before the first one.
	Job *deploy.Job
}

// Tick is the outcome of one status request.
type Tick struct {
	Job *deploy.Job
	Err error
}

// Transition applies one tick. Every tick costs an attempt; a failed request
// and an unfinished job are treated alike. Terminal states are returned as is.
func Transition(s State, tick Tick, budget int) State {
	if s.Phase != PhasePending {
		return s
	}

	s.Attempts++

	if tick.Err == nil && tick.Job != nil {
		s.Job = tick.Job

		if tick.Job.Done {
			s.Phase = PhaseDone
			return s
		}
	}

	if s.Attempts >= budget {
		s.Phase = PhaseTimedOut
	}

	return s
}

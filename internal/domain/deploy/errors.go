package deploy

import (
	"fmt"
	"strings"
)

// Stage names a step of the deployment pipeline.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageSession  Stage = "session"
	StagePackage  Stage = "package"
	StageSubmit   Stage = "submit"
	StagePoll     Stage = "poll"
)

// StageError attaches the failing pipeline stage to an error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ConfigError is returned before any network call when the configuration
// or the credentials are incomplete.
type ConfigError struct {
	// Missing lists absent required fields, if that is the cause.
	Missing []string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	out := "configuration invalid: "

	switch {
	case len(e.Missing) > 0:
		return out + "missing " + strings.Join(e.Missing, ", ")
	case e.Err != nil && e.Reason != "":
		return out + e.Reason + ": " + e.Err.Error()
	case e.Err != nil:
		return out + e.Err.Error()
	default:
		return out + e.Reason
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the platform rejects the assertion or the
// token exchange cannot be completed.
type AuthError struct {
	// StatusCode is zero for transport failures.
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	out := "authentication failed"
	if e.StatusCode != 0 {
		out += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Message != "" {
		out += ": " + e.Message
	}

	if e.Err != nil {
		out += ": " + e.Err.Error()
	}

	return out
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ArtifactError is returned for an unusable artifact list.
type ArtifactError struct {
	Reason string
}

func (e *ArtifactError) Error() string {
	return "artifacts invalid: " + e.Reason
}

// IOError is returned when an artifact or folder cannot be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned when the deploy request is refused or its
// response cannot be understood.
type SubmissionError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Reason     string
	Err        error
}

func (e *SubmissionError) Error() string {
	out := "submission failed"
	if e.StatusCode != 0 {
		out += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Reason != "" {
		out += ": " + e.Reason
	}

	if e.Err != nil {
		out += ": " + e.Err.Error()
	}

	return out
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when the poll budget runs out before the job is done.
type TimeoutError struct {
	JobID    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deployment %s polling timed out after %d attempts", e.JobID, e.Attempts)
}

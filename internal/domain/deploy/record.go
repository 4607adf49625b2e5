package deploy

import (
	"fmt"
	"os"
	"os/user"
	"time"
)

// Actor identifies who ran a deployment.
type Actor struct {
	// Hostname is the machine the deployment ran on.
	Hostname string `json:"hostname"`
	// Username is the local user who started it.
	Username string `json:"username"`
}

// DetectActor gathers host and user information for the deployment record.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// Record is what is kept about the last finished deployment.
type Record struct {
	// FinishedAt is when the job was seen done.
	FinishedAt time.Time `json:"finished_at"`
	// Actor is who ran it, if known.
	Actor *Actor `json:"actor,omitempty"`
	// Folder is the deployed folder.
	Folder string `json:"folder"`
	// CheckOnly is set for validation runs.
	CheckOnly bool `json:"check_only"`
	// JobID, Status and Success mirror the finished job.
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	// Failures keeps the platform's order.
	Failures []ComponentFailure `json:"failures,omitempty"`
}

// NewRecord captures a finished job.
func NewRecord(job *Job, folder string, checkOnly bool, finishedAt time.Time) *Record {
	record := &Record{
		FinishedAt: finishedAt,
		Folder:     folder,
		CheckOnly:  checkOnly,
	}

	if job != nil {
		record.JobID = job.ID
		record.Status = job.Status
		record.Success = job.Success
		record.Failures = append([]ComponentFailure(nil), job.Failures...)
	}

	return record
}

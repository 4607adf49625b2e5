package poller

import (
	"bytes"
	"encoding/json"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// statusResponse is the body of GET deployRequest/<id>?includeDetails=true.
type statusResponse struct {
	ID           string       `json:"id"`
	DeployResult deployResult `json:"deployResult"`
}

type deployResult struct {
	ID           string        `json:"id"`
	Done         bool          `json:"done"`
	Status       string        `json:"status"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"errorMessage"`
	Details      resultDetails `json:"details"`
}

type resultDetails struct {
	ComponentFailures failureList `json:"componentFailures"`
}

type componentFailure struct {
	FileName      string `json:"fileName"`
	Problem       string `json:"problem"`
	ComponentType string `json:"componentType"`
	LineNumber    int    `json:"lineNumber"`
}

// failureList accepts an array, a single object or null.
type failureList []componentFailure

func (l *failureList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '{':
		var single componentFailure
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}

		*l = failureList{single}

		return nil
	default:
		return json.Unmarshal(data, (*[]componentFailure)(l))
	}
}

func (r *statusResponse) toJob(jobID string) *deploy.Job {
	job := &deploy.Job{
		ID:           jobID,
		Done:         r.DeployResult.Done,
		Status:       r.DeployResult.Status,
		Success:      r.DeployResult.Success,
		ErrorMessage: r.DeployResult.ErrorMessage,
	}

	for _, f := range r.DeployResult.Details.ComponentFailures {
		job.Failures = append(job.Failures, deploy.ComponentFailure{
			UnitName:      f.FileName,
			Problem:       f.Problem,
			ComponentType: f.ComponentType,
			LineNumber:    f.LineNumber,
		})
	}

	return job
}

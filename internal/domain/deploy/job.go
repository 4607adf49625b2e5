package deploy

// ComponentFailure is a per-unit problem reported by a completed deployment.
type ComponentFailure struct {
	// UnitName is the file the problem was reported against.
	UnitName string `json:"unit_name"`
	// Problem is the platform's description of what went wrong.
	Problem string `json:"problem"`
	// ComponentType is the metadata type, when reported.
	ComponentType string `json:"component_type,omitempty"`
	// LineNumber is zero when the platform does not report one.
	LineNumber int `json:"line_number,omitempty"`
}

// Job is the observed state of a remote deployment.
type Job struct {
	// ID identifies the deploy request.
	ID string
	// Done is true once the platform stopped working on the request.
	Done bool
	// Status is the platform status, e.g. Succeeded, Failed, SucceededPartial.
	Status string
	// Success mirrors the platform's overall success flag.
	Success bool
	// ErrorMessage is set when the request failed as a whole.
	ErrorMessage string
	// Failures keeps the platform's order.
	Failures []ComponentFailure
	// Attempts is how many status requests it took to see the job done.
	Attempts int
}

// HasFailures reports whether any component failed.
func (j *Job) HasFailures() bool {
	return j != nil && len(j.Failures) > 0
}

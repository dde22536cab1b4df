package ir

import "time"

// Outcome is the terminal status of a single plan step.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// StepResult is the outcome of executing one plan step.
type StepResult struct {
	ResourceID string        `json:"resource_id"`
	Action     Action        `json:"action"`
	Outcome    Outcome       `json:"outcome"`
	ExternalID string        `json:"external_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RunResult aggregates every step outcome of an executor pass. Partial
// failure is reported here rather than raised mid-run so callers always
// see the complete picture of what succeeded, failed and was skipped.
type RunResult struct {
	Results   []StepResult  `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// PartialFailure reports whether any step failed or was skipped.
func (r *RunResult) PartialFailure() bool {
	return r.Failed > 0 || r.Skipped > 0
}

// Record appends a step result and updates the counters.
func (r *RunResult) Record(res StepResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// FailedIDs returns the resource ids of all failed steps.
func (r *RunResult) FailedIDs() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			ids = append(ids, res.ResourceID)
		}
	}
	return ids
}

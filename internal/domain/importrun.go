package domain

import "time"

// JobStatus is the lifecycle state of a long-running import or purge run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// StepProgress is the running tally for one import or purge step.
type StepProgress struct {
	Name      string    `json:"name"`
	Processed int       `json:"processed"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	Percent   float64   `json:"percent"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// ImportRun is the persisted metadata for one import or purge invocation,
// polled by the progress endpoint.
type ImportRun struct {
	ID          string         `json:"id"`
	ClientID    string         `json:"clientId"`
	Kind        string         `json:"kind"` // "import" or "purge"
	Steps       []StepProgress `json:"steps"`
	Status      JobStatus      `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	StartedBy   string         `json:"startedBy,omitempty"`
}

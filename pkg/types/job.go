package types

import "time"

// JobState mirrors the scheduler's job state names.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateCancelled JobState = "CANCELLED"
	StateTimeout   JobState = "TIMEOUT"
	StateUnknown   JobState = "UNKNOWN"
)

// Terminal reports whether the state can never transition again.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return true
	}
	return false
}

// SubmittedJob is one accepted submission. The descriptor and workload
// are frozen at registration; only State, Reason and UpdatedAt move.
type SubmittedJob struct {
	SubmissionID string        `json:"submission_id"`
	JobID        string        `json:"job_id"`
	Template     string        `json:"template,omitempty"`
	Descriptor   JobDescriptor `json:"descriptor"`
	Workload     WorkloadSpec  `json:"workload"`
	State        JobState      `json:"state"`
	Reason       string        `json:"reason,omitempty"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ScheduledJob represents a cron-scheduled task configuration
type ScheduledJob struct {
	Name        string `json:"name"`
	Schedule    string `json:"schedule"`
	TaskName    string `json:"task"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// JobConfig represents the cron scheduler configuration
type JobConfig struct {
	MaxConcurrent int            `json:"max_concurrent"`
	Predefined    []ScheduledJob `json:"predefined"`
}

package model

import "time"

// JobStatus is the lifecycle state of a collector job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransitionTo reports whether s -> next is an edge of the job state machine:
// queued -> running -> {done, failed}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning
	case JobRunning:
		return next == JobDone || next == JobFailed
	default:
		return false
	}
}

// RunStatus is the outcome state of the run paired with a job.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunOK      RunStatus = "ok"
	RunFail    RunStatus = "fail"
)

// Job is a unit of scheduled scraping work, stored in collector_jobs.
type Job struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	WeekID      string     `json:"week_id"`
	Status      JobStatus  `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Run is the outcome summary of one job execution.
type Run struct {
	ID          string            `json:"id"`
	Status      RunStatus         `json:"status"`
	StoresOK    int               `json:"stores_ok"`
	OffersCount int               `json:"offers_count"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

// Outcome is the terminal state written for a job and its run together.
type Outcome struct {
	JobID       string
	RunID       string
	JobStatus   JobStatus
	RunStatus   RunStatus
	FinishedAt  time.Time
	StoresOK    int
	OffersCount int
	// JobError is nil on success, which clears any previous error.
	JobError *string
	// Errors is keyed by the failing stage; nil on success.
	Errors map[string]string
	Notes  string
}

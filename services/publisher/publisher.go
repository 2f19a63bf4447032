package publisher

import (
	"context"

	"sjsage522/leafletworker/internal/model"
)

// RunEvent announces the terminal state of one job attempt.
type RunEvent struct {
	JobID       string `json:"job_id"`
	RunID       string `json:"run_id"`
	WeekID      string `json:"week_id"`
	Status      string `json:"status"`
	StoresOK    int    `json:"stores_ok"`
	OffersCount int    `json:"offers_count"`
	Error       string `json:"error,omitempty"`
}

// NewRunEvent builds the event for a finished job.
func NewRunEvent(weekID string, o model.Outcome) RunEvent {
	ev := RunEvent{
		JobID:       o.JobID,
		RunID:       o.RunID,
		WeekID:      weekID,
		Status:      string(o.JobStatus),
		StoresOK:    o.StoresOK,
		OffersCount: o.OffersCount,
	}
	if o.JobError != nil {
		ev.Error = *o.JobError
	}
	return ev
}

// Publisher represents a service for publishing run events
type Publisher interface {
	// Publish publishes a run event to the stream
	Publish(ctx context.Context, event RunEvent) error

	// TrimStream trims the stream to the configured maximum length
	TrimStream(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher drops every event. Used when no Redis address is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RunEvent) error { return nil }
func (NopPublisher) TrimStream(context.Context) error        { return nil }
func (NopPublisher) Close() error                            { return nil }

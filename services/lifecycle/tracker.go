// Package lifecycle owns the state transitions of collector jobs and their runs.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/store"
)

var (
	// ErrClaimLost means another process moved the job out of queued first.
	ErrClaimLost = errors.New("job claim lost")
	// ErrInvalidTransition means the requested transition is not an edge of
	// queued -> running -> {done, failed}.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Summary is what a successful run records.
type Summary struct {
	StoresOK    int
	OffersCount int
	Notes       string
}

// Tracker moves jobs through their lifecycle and writes the matching run
// record. A job handed to Begin, Succeed or Fail is updated in place.
type Tracker struct {
	store store.JobStore
	now   func() time.Time
	log   *logger.Logger
}

// NewTracker creates a tracker over the given job store.
func NewTracker(s store.JobStore) *Tracker {
	return &Tracker{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.ForTracker(),
	}
}

// Acquire returns the newest queued job, or nil when the queue is empty.
func (t *Tracker) Acquire(ctx context.Context) (*model.Job, error) {
	job, err := t.store.NewestQueuedJob(ctx)
	if err != nil {
		return nil, pipelineerrors.NewAcquisition("failed to read job queue", err)
	}
	if job == nil {
		t.log.Info().Msg("No queued jobs")
		return nil, nil
	}
	t.log.Info().
		Str("job_id", job.ID).
		Str("run_id", job.RunID).
		Str("week_id", job.WeekID).
		Msg("Acquired job")
	return job, nil
}

// Begin claims the job: queued -> running. ErrClaimLost is returned when the
// conditional update matched nothing.
func (t *Tracker) Begin(ctx context.Context, job *model.Job) error {
	if !job.Status.CanTransitionTo(model.JobRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobRunning)
	}

	started := t.now()
	claimed, err := t.store.ClaimJob(ctx, job.ID, started)
	if err != nil {
		return pipelineerrors.NewAcquisition("failed to claim job "+job.ID, err)
	}
	if !claimed {
		return fmt.Errorf("job %s: %w", job.ID, ErrClaimLost)
	}

	job.Status = model.JobRunning
	job.StartedAt = &started
	t.log.Info().Str("job_id", job.ID).Str("week_id", job.WeekID).Msg("Job running")
	return nil
}

// Succeed finishes the job as done and its run as ok, clearing any error.
func (t *Tracker) Succeed(ctx context.Context, job *model.Job, sum Summary) (model.Outcome, error) {
	if !job.Status.CanTransitionTo(model.JobDone) {
		return model.Outcome{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobDone)
	}

	out := model.Outcome{
		JobID:       job.ID,
		RunID:       job.RunID,
		JobStatus:   model.JobDone,
		RunStatus:   model.RunOK,
		FinishedAt:  t.now(),
		StoresOK:    sum.StoresOK,
		OffersCount: sum.OffersCount,
		Notes:       sum.Notes,
	}
	if out.Notes == "" {
		out.Notes = fmt.Sprintf("stores_ok=%d offers=%d", sum.StoresOK, sum.OffersCount)
	}

	if err := t.store.FinishAttempt(ctx, out); err != nil {
		return out, pipelineerrors.NewLifecycle("failed to record success", err)
	}
	t.settle(job, out)

	t.log.Info().
		Str("job_id", job.ID).
		Str("run_id", job.RunID).
		Int("stores_ok", out.StoresOK).
		Int("offers_count", out.OffersCount).
		Msg("Job done")
	return out, nil
}

// Fail finishes the job as failed and its run as fail, recording cause under
// its stage key. The returned error always wraps cause so the caller can
// exit non-zero.
func (t *Tracker) Fail(ctx context.Context, job *model.Job, cause error) (model.Outcome, error) {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	failed := fmt.Errorf("job %s failed: %w", job.ID, cause)

	if !job.Status.CanTransitionTo(model.JobFailed) {
		return model.Outcome{}, errors.Join(failed,
			fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobFailed))
	}

	stage := pipelineerrors.StageOf(cause)
	msg := cause.Error()
	out := model.Outcome{
		JobID:      job.ID,
		RunID:      job.RunID,
		JobStatus:  model.JobFailed,
		RunStatus:  model.RunFail,
		FinishedAt: t.now(),
		JobError:   &msg,
		Errors:     map[string]string{stage: msg},
		Notes:      "failed during " + stage,
	}

	if err := t.store.FinishAttempt(ctx, out); err != nil {
		t.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record failure")
		return out, errors.Join(failed, fmt.Errorf("record failure: %w", err))
	}
	t.settle(job, out)

	t.log.Error().
		Str("job_id", job.ID).
		Str("run_id", job.RunID).
		Str("stage", stage).
		Err(cause).
		Msg("Job failed")
	return out, failed
}

func (t *Tracker) settle(job *model.Job, out model.Outcome) {
	finished := out.FinishedAt
	job.Status = out.JobStatus
	job.FinishedAt = &finished
	job.Error = out.JobError
}

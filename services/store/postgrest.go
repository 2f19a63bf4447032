package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
)

const upsertChunkSize = 500

// HTTPError is a non-2xx answer from the REST endpoint.
type HTTPError struct {
	Method string
	Table  string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Table, e.Status, e.Body)
}

// PostgREST talks to a PostgREST endpoint such as Supabase's /rest/v1.
type PostgREST struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logger.Logger
}

// NewPostgREST creates a client; every request carries the given timeout.
func NewPostgREST(baseURL, apiKey string, timeout time.Duration) *PostgREST {
	return &PostgREST{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     logger.ForStore(),
	}
}

// NewestQueuedJob implements JobStore.
func (s *PostgREST) NewestQueuedJob(ctx context.Context) (*model.Job, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("status", "eq."+string(model.JobQueued))
	q.Set("order", "requested_at.desc")
	q.Set("limit", "1")

	var jobs []model.Job
	if err := s.do(ctx, http.MethodGet, "collector_jobs", q, nil, "", &jobs); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// ClaimJob implements JobStore with a conditional PATCH on status=queued.
func (s *PostgREST) ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	q := url.Values{}
	q.Set("id", "eq."+jobID)
	q.Set("status", "eq."+string(model.JobQueued))

	patch := map[string]any{
		"status":     model.JobRunning,
		"started_at": startedAt.Format(time.RFC3339),
	}
	var claimed []model.Job
	if err := s.do(ctx, http.MethodPatch, "collector_jobs", q, patch, "return=representation", &claimed); err != nil {
		return false, err
	}
	return len(claimed) == 1, nil
}

// FinishAttempt implements JobStore. The run is patched before the job so a
// job never shows a terminal state without its summary. Both patches only
// match rows that are not terminal yet: a run left terminal by an earlier
// partial attempt is kept as is and only the job is finished.
func (s *PostgREST) FinishAttempt(ctx context.Context, o model.Outcome) error {
	finished := o.FinishedAt.Format(time.RFC3339)

	runPatch := map[string]any{
		"status":       o.RunStatus,
		"stores_ok":    o.StoresOK,
		"offers_count": o.OffersCount,
		"finished_at":  finished,
		"errors":       o.Errors,
		"notes":        o.Notes,
	}
	err := s.patchWhere(ctx, "runs", o.RunID, string(model.RunPending), runPatch)
	if errors.Is(err, ErrNotFound) {
		err = s.ensureExists(ctx, "runs", o.RunID)
		if err == nil {
			s.log.Warn().Str("run_id", o.RunID).Msg("Run already finished, finishing job only")
		}
	}
	if err != nil {
		return fmt.Errorf("update run %s: %w", o.RunID, err)
	}

	jobPatch := map[string]any{
		"status":      o.JobStatus,
		"finished_at": finished,
		"error":       o.JobError,
	}
	if err := s.patchWhere(ctx, "collector_jobs", o.JobID, string(model.JobRunning), jobPatch); err != nil {
		return fmt.Errorf("update job %s: %w", o.JobID, err)
	}
	return nil
}

// UpsertOffers implements OfferStore using on_conflict with merge-duplicates.
func (s *PostgREST) UpsertOffers(ctx context.Context, offers []model.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("on_conflict", conflictTarget())

	rows := toRows(offers)
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(rows))
		if err := s.do(ctx, http.MethodPost, "offers", q, rows[start:end], "resolution=merge-duplicates,return=minimal", nil); err != nil {
			return fmt.Errorf("upsert offers %d-%d: %w", start, end, err)
		}
	}
	s.log.Debug().Int("offers", len(rows)).Msg("Upserted offers")
	return nil
}

// EnqueueJob implements Store.
func (s *PostgREST) EnqueueJob(ctx context.Context, weekID string, requestedAt time.Time) (*model.Job, error) {
	run := map[string]any{
		"id":     uuid.NewString(),
		"status": model.RunPending,
	}
	if err := s.do(ctx, http.MethodPost, "runs", nil, run, "return=minimal", nil); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	job := model.Job{
		ID:          uuid.NewString(),
		RunID:       run["id"].(string),
		WeekID:      weekID,
		Status:      model.JobQueued,
		RequestedAt: requestedAt,
	}
	if err := s.do(ctx, http.MethodPost, "collector_jobs", nil, job, "return=minimal", nil); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

// Close implements Store.
func (s *PostgREST) Close() {
	s.client.CloseIdleConnections()
}

// patchWhere patches the row with the given id while its status is still
// from. ErrNotFound means no row matched.
func (s *PostgREST) patchWhere(ctx context.Context, table, id, from string, patch map[string]any) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq."+from)

	var updated []json.RawMessage
	if err := s.do(ctx, http.MethodPatch, table, q, patch, "return=representation", &updated); err != nil {
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgREST) ensureExists(ctx context.Context, table, id string) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("id", "eq."+id)

	var rows []json.RawMessage
	if err := s.do(ctx, http.MethodGet, table, q, nil, "", &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgREST) do(ctx context.Context, method, table string, query url.Values, body any, prefer string, out any) error {
	endpoint := s.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: method, Table: table, Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", table, err)
		}
	}
	return nil
}

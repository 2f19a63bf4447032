package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
)

const (
	selectNewestQueued = `
		SELECT id, run_id, week_id, status, requested_at, started_at, finished_at, error
		FROM collector_jobs
		WHERE status = 'queued'
		ORDER BY requested_at DESC
		LIMIT 1`

	claimJob = `
		UPDATE collector_jobs
		SET status = 'running', started_at = $2
		WHERE id = $1 AND status = 'queued'`

	finishRun = `
		UPDATE runs
		SET status = $2, stores_ok = $3, offers_count = $4, finished_at = $5, errors = $6, notes = $7
		WHERE id = $1 AND status = 'pending'`

	runExists = `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`

	finishJob = `
		UPDATE collector_jobs
		SET status = $2, finished_at = $3, error = $4
		WHERE id = $1 AND status = 'running'`

	upsertOffer = `
		INSERT INTO offers (
			week_id, store, title, title_key, category, price, old_price, currency,
			pack_value, pack_unit, unit_price, unit_price_unit, discount_pct,
			valid_from, valid_to, source_url, source_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::date, $15::date, $16, $17)
		ON CONFLICT ON CONSTRAINT offers_natural_key DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			old_price = EXCLUDED.old_price,
			currency = EXCLUDED.currency,
			unit_price = EXCLUDED.unit_price,
			unit_price_unit = EXCLUDED.unit_price_unit,
			discount_pct = EXCLUDED.discount_pct,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			source_url = EXCLUDED.source_url,
			source_type = EXCLUDED.source_type,
			updated_at = now()`
)

// Postgres stores jobs, runs and offers directly through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgres connects and pings the database.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool, log: logger.ForStore()}, nil
}

// NewestQueuedJob implements JobStore.
func (s *Postgres) NewestQueuedJob(ctx context.Context) (*model.Job, error) {
	var j model.Job
	var status string
	err := s.pool.QueryRow(ctx, selectNewestQueued).Scan(
		&j.ID, &j.RunID, &j.WeekID, &status, &j.RequestedAt, &j.StartedAt, &j.FinishedAt, &j.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select queued job: %w", err)
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

// ClaimJob implements JobStore.
func (s *Postgres) ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, claimJob, jobID, startedAt)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinishAttempt implements JobStore. Run and job are updated in one
// transaction. A run that is already terminal keeps its record and only the
// job is finished.
func (s *Postgres) FinishAttempt(ctx context.Context, o model.Outcome) error {
	var errorsJSON []byte
	if o.Errors != nil {
		var err error
		if errorsJSON, err = json.Marshal(o.Errors); err != nil {
			return fmt.Errorf("marshal run errors: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, finishRun, o.RunID, string(o.RunStatus), o.StoresOK, o.OffersCount, o.FinishedAt, errorsJSON, o.Notes)
	if err != nil {
		return fmt.Errorf("update run %s: %w", o.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, runExists, o.RunID).Scan(&exists); err != nil {
			return fmt.Errorf("lookup run %s: %w", o.RunID, err)
		}
		if !exists {
			return fmt.Errorf("update run %s: %w", o.RunID, ErrNotFound)
		}
		s.log.Warn().Str("run_id", o.RunID).Msg("Run already finished, finishing job only")
	}

	tag, err = tx.Exec(ctx, finishJob, o.JobID, string(o.JobStatus), o.FinishedAt, o.JobError)
	if err != nil {
		return fmt.Errorf("update job %s: %w", o.JobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", o.JobID, ErrNotFound)
	}

	return tx.Commit(ctx)
}

// UpsertOffers implements OfferStore. The batch runs inside a transaction so
// a failed commit leaves no partial week behind.
func (s *Postgres) UpsertOffers(ctx context.Context, offers []model.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range toRows(offers) {
		batch.Queue(upsertOffer,
			r.WeekID, r.Store, r.Title, r.TitleKey, r.Category, r.Price, r.OldPrice, r.Currency,
			r.PackValue, r.PackUnit, r.UnitPrice, r.UnitPriceUnit, r.DiscountPct,
			r.ValidFrom, r.ValidTo, r.SourceURL, string(r.SourceType),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range offers {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert offer %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit offers: %w", err)
	}
	s.log.Debug().Int("offers", len(offers)).Msg("Upserted offers")
	return nil
}

// EnqueueJob implements Store.
func (s *Postgres) EnqueueJob(ctx context.Context, weekID string, requestedAt time.Time) (*model.Job, error) {
	job := &model.Job{
		ID:          uuid.NewString(),
		RunID:       uuid.NewString(),
		WeekID:      weekID,
		Status:      model.JobQueued,
		RequestedAt: requestedAt,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO runs (id, status) VALUES ($1, 'pending')`, job.RunID); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO collector_jobs (id, run_id, week_id, status, requested_at) VALUES ($1, $2, $3, 'queued', $4)`,
		job.ID, job.RunID, job.WeekID, job.RequestedAt,
	); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return job, nil
}

// Close implements Store.
func (s *Postgres) Close() {
	s.pool.Close()
}

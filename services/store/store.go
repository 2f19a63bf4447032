// Package store persists collector jobs, runs and offers.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/leafletworker/config"
	"sjsage522/leafletworker/internal/model"
)

// ErrNotFound is returned when an addressed job or run does not exist.
var ErrNotFound = errors.New("not found")

// NaturalKeyColumns is the conflict target for offer upserts.
var NaturalKeyColumns = []string{"week_id", "store", "title_key", "price", "pack_value", "pack_unit"}

// JobStore reads the job queue and records job/run transitions.
type JobStore interface {
	// NewestQueuedJob returns the most recently requested queued job, or nil.
	NewestQueuedJob(ctx context.Context) (*model.Job, error)
	// ClaimJob moves the job from queued to running. It reports false when
	// the job was no longer queued.
	ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error)
	// FinishAttempt writes the terminal state of a job and its run.
	FinishAttempt(ctx context.Context, outcome model.Outcome) error
}

// OfferStore commits offer batches with merge-on-conflict semantics.
type OfferStore interface {
	// UpsertOffers inserts offers; a row colliding on the natural key is
	// overwritten. Empty input is a no-op.
	UpsertOffers(ctx context.Context, offers []model.Offer) error
}

// Store is a complete persistence backend.
type Store interface {
	JobStore
	OfferStore
	// EnqueueJob creates a pending run and a queued job for weekID.
	EnqueueJob(ctx context.Context, weekID string, requestedAt time.Time) (*model.Job, error)
	Close()
}

// offerRow is the stored shape of an offer.
type offerRow struct {
	model.Offer
	TitleKey string `json:"title_key"`
}

func toRows(offers []model.Offer) []offerRow {
	rows := make([]offerRow, len(offers))
	for i, o := range offers {
		rows[i] = offerRow{Offer: o, TitleKey: o.TitleKey()}
	}
	return rows
}

// New opens the backend selected by cfg.StoreBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgREST:
		return NewPostgREST(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.HTTPTimeout), nil
	case config.BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func conflictTarget() string {
	return strings.Join(NaturalKeyColumns, ",")
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/leafletworker/internal/crawler"
	"sjsage522/leafletworker/internal/extract"
	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/internal/telemetry"
	"sjsage522/leafletworker/logger"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/lifecycle"
	"sjsage522/leafletworker/services/publisher"
	"sjsage522/leafletworker/services/store"
)

// DefaultFinishTimeout bounds the terminal writes and the run event.
const DefaultFinishTimeout = 30 * time.Second

// Settings are the worker knobs taken from configuration
type Settings struct {
	Currency       string
	PushgatewayURL string
	// FinishTimeout bounds recording the outcome, which outlives
	// cancellation of the job context.
	FinishTimeout time.Duration
}

// SourceResult is the outcome of one document: offers or the fault that
// excluded it.
type SourceResult struct {
	Store   string
	URL     string
	Offers  []model.Offer
	Skipped int
	Err     error
}

// OK reports whether the document contributed to the run.
func (r SourceResult) OK() bool {
	return r.Err == nil
}

// Worker runs the leaflet pipeline for one queued job
type Worker struct {
	tracker   *lifecycle.Tracker
	offers    store.OfferStore
	sources   []crawler.Source
	publisher publisher.Publisher
	metrics   *telemetry.Metrics
	settings  Settings
	log       *logger.Logger
	now       func() time.Time
}

// NewWorker creates a new worker. A nil publisher drops run events and nil
// metrics are created fresh.
func NewWorker(
	tracker *lifecycle.Tracker,
	offers store.OfferStore,
	sources []crawler.Source,
	pub publisher.Publisher,
	metrics *telemetry.Metrics,
	settings Settings,
) *Worker {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	if metrics == nil {
		metrics = telemetry.New()
	}
	if settings.Currency == "" {
		settings.Currency = extract.DefaultCurrency
	}
	if settings.FinishTimeout <= 0 {
		settings.FinishTimeout = DefaultFinishTimeout
	}
	return &Worker{
		tracker:   tracker,
		offers:    offers,
		sources:   sources,
		publisher: pub,
		metrics:   metrics,
		settings:  settings,
		log:       logger.ForWorker(),
		now:       time.Now,
	}
}

// RunOnce processes the newest queued job, if any. It returns nil when the
// queue is empty or another process claimed the job first. Any fault after
// the claim, cancellation included, marks the job failed and is returned.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.tracker.Acquire(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	log := w.log.WithJob(job.ID, job.RunID, job.WeekID)
	if err := w.tracker.Begin(ctx, job); err != nil {
		if errors.Is(err, lifecycle.ErrClaimLost) {
			log.Warn().Msg("Job claimed by another worker")
			return nil
		}
		return err
	}

	started := w.now()
	summary, err := w.process(ctx, job)

	// A claimed job must reach a terminal state even after ctx is cancelled.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.settings.FinishTimeout)
	defer cancel()

	if err != nil {
		out, failErr := w.tracker.Fail(finishCtx, job, err)
		w.finish(finishCtx, job, out, started)
		return failErr
	}

	out, err := w.tracker.Succeed(finishCtx, job, summary)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record success, marking job failed")
		out, failErr := w.tracker.Fail(finishCtx, job, err)
		w.finish(finishCtx, job, out, started)
		return failErr
	}
	w.finish(finishCtx, job, out, started)
	return nil
}

// process collects every source, dedupes across the run and commits once.
// A panic is turned into an error so it fails the job like any other fault.
func (w *Worker) process(ctx context.Context, job *model.Job) (sum lifecycle.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during collection: %v", r)
		}
	}()

	results, err := w.collect(ctx, job.WeekID)
	if err != nil {
		return sum, err
	}

	dedupe := extract.NewDeduper()
	var offers []model.Offer
	candidates := 0
	for _, r := range results {
		candidates += len(r.Offers)
		offers = append(offers, dedupe.Filter(r.Offers)...)
	}
	w.log.Debug().Int("candidates", candidates).Int("distinct", dedupe.Len()).Msg("Deduplicated offers")

	if err := w.offers.UpsertOffers(ctx, offers); err != nil {
		return sum, pipelineerrors.NewPersistence(fmt.Sprintf("failed to commit %d offers", len(offers)), err)
	}

	return summarize(results, len(offers)), nil
}

// collect fetches and extracts every document of every source in order.
// Local faults are logged and kept in the results; cancellation or a fault
// that is not local to one source stops collection and is returned.
func (w *Worker) collect(ctx context.Context, weekID string) ([]SourceResult, error) {
	var results []SourceResult
	for _, src := range w.sources {
		log := logger.ForSource(src.Store())

		locations, err := src.Locations(ctx)
		if err != nil {
			if fatal := escalate(ctx, err); fatal != nil {
				return results, fatal
			}
			log.Warn().Err(err).Msg("Failed to list leaflets")
			w.metrics.SourceFailures.WithLabelValues(src.Store()).Inc()
			results = append(results, SourceResult{Store: src.Store(), Err: err})
			continue
		}

		extractor := extract.NewExtractor(extract.Params{
			WeekID:   weekID,
			Store:    src.Store(),
			Currency: w.settings.Currency,
		})
		for _, loc := range locations {
			r := w.collectDocument(ctx, src, extractor, loc)
			if r.OK() {
				log.Info().Str("url", loc).Int("offers", len(r.Offers)).Int("skipped", r.Skipped).Msg("Extracted leaflet")
				w.metrics.OffersExtracted.WithLabelValues(src.Store()).Add(float64(len(r.Offers)))
				w.metrics.CandidatesSkipped.WithLabelValues(src.Store()).Add(float64(r.Skipped))
			} else {
				if fatal := escalate(ctx, r.Err); fatal != nil {
					return results, fatal
				}
				log.Warn().Err(r.Err).Str("url", loc).Msg("Skipping leaflet")
				w.metrics.SourceFailures.WithLabelValues(src.Store()).Inc()
			}
			results = append(results, r)
		}
	}
	if ctx.Err() != nil {
		return results, escalate(ctx, nil)
	}
	return results, nil
}

// escalate returns the error that fails the whole job instead of excluding
// one document, or nil when err stays local to its source.
func escalate(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return pipelineerrors.NewInterrupted("collection interrupted", context.Cause(ctx))
	}
	var pe *pipelineerrors.PipelineError
	if errors.As(err, &pe) && !pe.IsLocal() {
		return err
	}
	return nil
}

func (w *Worker) collectDocument(ctx context.Context, src crawler.Source, extractor *extract.Extractor, loc string) SourceResult {
	r := SourceResult{Store: src.Store(), URL: loc}

	doc, err := src.Fetch(ctx, loc)
	if err != nil {
		r.Err = err
		return r
	}
	batch, err := extractor.Extract(doc)
	if err != nil {
		r.Err = err
		return r
	}
	r.Offers = batch.Offers
	r.Skipped = batch.Skipped
	return r
}

// summarize counts stores with at least one successful document and lists
// the failed documents in the notes.
func summarize(results []SourceResult, offersCount int) lifecycle.Summary {
	okStores := make(map[string]struct{})
	allStores := make(map[string]struct{})
	var failures []string
	for _, r := range results {
		allStores[r.Store] = struct{}{}
		if r.OK() {
			okStores[r.Store] = struct{}{}
			continue
		}
		where := r.Store
		if r.URL != "" {
			where += " " + r.URL
		}
		failures = append(failures, fmt.Sprintf("%s: %v", where, r.Err))
	}

	notes := fmt.Sprintf("%d offers from %d/%d stores", offersCount, len(okStores), len(allStores))
	if len(failures) > 0 {
		notes += "; failed: " + strings.Join(failures, "; ")
	}
	return lifecycle.Summary{
		StoresOK:    len(okStores),
		OffersCount: offersCount,
		Notes:       notes,
	}
}

// finish publishes the run event and metrics. Both are best effort.
func (w *Worker) finish(ctx context.Context, job *model.Job, out model.Outcome, started time.Time) {
	if out.JobID == "" {
		return
	}

	if err := w.publisher.Publish(ctx, publisher.NewRunEvent(job.WeekID, out)); err != nil {
		w.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish run event")
	} else if err := w.publisher.TrimStream(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to trim run stream")
	}

	w.metrics.ObserveRun(string(out.JobStatus), started, out.FinishedAt)
	if w.settings.PushgatewayURL != "" {
		if err := w.metrics.Push(ctx, w.settings.PushgatewayURL, job.WeekID); err != nil {
			w.log.Warn().Err(err).Msg("Failed to push metrics")
		}
	}
}

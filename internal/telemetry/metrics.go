// Package telemetry holds the pipeline counters. The worker is a one-shot
// process, so metrics are pushed to a Pushgateway instead of scraped.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job label.
const JobName = "leafletworker"

// Metrics is a registry of the counters one invocation produces.
type Metrics struct {
	registry *prometheus.Registry

	OffersExtracted   *prometheus.CounterVec
	CandidatesSkipped *prometheus.CounterVec
	SourceFailures    *prometheus.CounterVec
	Runs              *prometheus.CounterVec
	RunDuration       prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
}

// New creates the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OffersExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaflet_offers_extracted_total", Help: "Offers extracted per store before dedupe",
		}, []string{"store"}),
		CandidatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaflet_candidates_skipped_total", Help: "Price lines dropped as malformed",
		}, []string{"store"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaflet_source_failures_total", Help: "Documents that failed to fetch or parse",
		}, []string{"store"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaflet_runs_total", Help: "Finished job attempts by status",
		}, []string{"status"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaflet_run_duration_seconds", Help: "Wall time of the last job attempt",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaflet_last_run_timestamp_seconds", Help: "Unix time the last job attempt finished",
		}),
	}
	m.registry.MustRegister(
		m.OffersExtracted,
		m.CandidatesSkipped,
		m.SourceFailures,
		m.Runs,
		m.RunDuration,
		m.LastRunTimestamp,
	)
	return m
}

// ObserveRun records a finished attempt.
func (m *Metrics) ObserveRun(status string, started, finished time.Time) {
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Set(finished.Sub(started).Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push replaces this job's metric group on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, weekID string) error {
	return push.New(url, JobName).
		Gatherer(m.registry).
		Grouping("week_id", weekID).
		PushContext(ctx)
}

// Package crawler enumerates and downloads retailer leaflets.
package crawler

import (
	"context"
	"time"

	"sjsage522/leafletworker/internal/extract"
	"sjsage522/leafletworker/internal/model"
)

// Source enumerates and fetches leaflet documents of one retailer.
type Source interface {
	// Store returns the retailer identifier stored on offers
	Store() string

	// Kind tells the extractor which title heuristic to apply
	Kind() model.SourceKind

	// Locations lists the documents to fetch for the current leaflet week
	Locations(ctx context.Context) ([]string, error)

	// Fetch downloads one document and turns it into text blobs
	Fetch(ctx context.Context, location string) (extract.Document, error)
}

// SourceConfig contains configuration for a retailer source
type SourceConfig struct {
	Store      string
	CatalogURL string
	Kind       model.SourceKind
	Timeout    time.Duration

	// LinkSelector picks document links on the catalog page. Empty means
	// the catalog page itself is the only document.
	LinkSelector string

	// BlockSelectors pick offer text blocks on HTML pages, tried in order
	// until one matches.
	BlockSelectors []string
}

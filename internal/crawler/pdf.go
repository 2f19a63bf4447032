package crawler

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"sjsage522/leafletworker/internal/extract"
	"sjsage522/leafletworker/internal/model"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/cache"
)

// TextExtractor turns a PDF file into one text blob per page.
type TextExtractor func(data []byte) ([]string, error)

// PDFSource downloads paginated PDF leaflets linked from a catalog page
type PDFSource struct {
	BaseSource
	extractText TextExtractor
}

// NewPDFSource creates a PDF source. A nil extractor uses PDFPageText.
func NewPDFSource(cfg SourceConfig, block *cache.RateLimitBlock, extractor TextExtractor) *PDFSource {
	cfg.Kind = model.SourcePDF
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = `a[href$=".pdf"], a[href*=".pdf?"]`
	}
	if extractor == nil {
		extractor = PDFPageText
	}
	return &PDFSource{BaseSource: newBaseSource(cfg, block), extractText: extractor}
}

// Fetch implements Source
func (s *PDFSource) Fetch(ctx context.Context, location string) (extract.Document, error) {
	data, err := s.fetchBytes(ctx, location)
	if err != nil {
		return extract.Document{}, err
	}

	pages, err := s.extractText(data)
	if err != nil {
		return extract.Document{}, pipelineerrors.NewParsing(s.Config.Store, "unreadable PDF "+location, err)
	}
	pages = nonBlank(pages)
	if len(pages) == 0 {
		return extract.Document{}, pipelineerrors.NewParsing(s.Config.Store, "PDF has no text "+location, nil)
	}

	s.log.Debug().Str("url", location).Int("pages", len(pages)).Msg("Fetched PDF leaflet")
	return extract.Document{
		Kind:  model.SourcePDF,
		Store: s.Config.Store,
		URL:   location,
		Blobs: pages,
	}, nil
}

// PDFPageText extracts the plain text of every page. Pages without a content
// stream yield an empty blob so page numbering is kept.
func PDFPageText(data []byte) (pages []string, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

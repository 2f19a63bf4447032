package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/leafletworker/helpers"
	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/cache"
)

// BaseSource provides fetching and link enumeration shared by all sources
type BaseSource struct {
	Config SourceConfig
	Block  *cache.RateLimitBlock
	log    *logger.Logger
}

func newBaseSource(cfg SourceConfig, block *cache.RateLimitBlock) BaseSource {
	return BaseSource{Config: cfg, Block: block, log: logger.ForSource(cfg.Store)}
}

// Store implements Source
func (b *BaseSource) Store() string {
	return b.Config.Store
}

// Kind implements Source
func (b *BaseSource) Kind() model.SourceKind {
	return b.Config.Kind
}

// Locations implements Source. Links are resolved against the catalog page
// and returned once each in page order.
func (b *BaseSource) Locations(ctx context.Context) ([]string, error) {
	if b.Config.LinkSelector == "" {
		return []string{b.Config.CatalogURL}, nil
	}

	doc, err := b.fetchDocument(ctx, b.Config.CatalogURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var locations []string
	doc.Find(b.Config.LinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		loc, err := helpers.ResolveURL(b.Config.CatalogURL, href)
		if err != nil {
			b.log.Debug().Err(err).Msg("Skipping link")
			return
		}
		if _, dup := seen[loc]; dup {
			return
		}
		seen[loc] = struct{}{}
		locations = append(locations, loc)
	})

	if len(locations) == 0 {
		return nil, pipelineerrors.NewParsing(b.Config.Store, "no leaflet links on "+b.Config.CatalogURL, nil)
	}
	return locations, nil
}

// fetchPage fetches a URL honoring the rate-limit block
func (b *BaseSource) fetchPage(ctx context.Context, url string) (io.Reader, error) {
	if err := b.checkBlock(); err != nil {
		return nil, err
	}
	body, err := helpers.FetchWithRandomHeaders(ctx, url, b.Config.Timeout)
	if err != nil {
		return nil, b.fetchError(url, err)
	}
	return body, nil
}

// fetchBytes downloads a binary document honoring the rate-limit block
func (b *BaseSource) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	if err := b.checkBlock(); err != nil {
		return nil, err
	}
	data, err := helpers.FetchBytes(ctx, url, b.Config.Timeout)
	if err != nil {
		return nil, b.fetchError(url, err)
	}
	return data, nil
}

func (b *BaseSource) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := b.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}
	return b.createDocument(body)
}

// createDocument creates a goquery document from a reader
func (b *BaseSource) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, pipelineerrors.NewParsing(b.Config.Store, "HTML parse error", err)
	}
	return doc, nil
}

func (b *BaseSource) checkBlock() error {
	if b.Block.Blocked(b.Config.Store) {
		return pipelineerrors.NewRateLimit(b.Config.Store, b.Block.Duration())
	}
	return nil
}

func (b *BaseSource) fetchError(url string, err error) error {
	if errors.Is(err, helpers.ErrRateLimited) {
		b.Block.Block(b.Config.Store)
		return pipelineerrors.New(pipelineerrors.ErrorTypeRateLimit, b.Config.Store, fmt.Sprintf("rate limited on %s", url), err)
	}
	return pipelineerrors.NewNetwork(b.Config.Store, "failed to fetch "+url, err)
}

// nonBlank drops blobs that are empty after trimming
func nonBlank(blobs []string) []string {
	out := blobs[:0]
	for _, blob := range blobs {
		if strings.TrimSpace(blob) != "" {
			out = append(out, blob)
		}
	}
	return out
}

package crawler

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/leafletworker/internal/extract"
	"sjsage522/leafletworker/internal/model"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/cache"
)

var defaultBlockSelectors = []string{".product", ".offer", "article"}

// HTMLSource reads offer text blocks from promotion pages
type HTMLSource struct {
	BaseSource
	renderer Renderer
}

// NewHTMLSource creates an HTML source. With a nil renderer pages are
// fetched over plain HTTP.
func NewHTMLSource(cfg SourceConfig, block *cache.RateLimitBlock, renderer Renderer) *HTMLSource {
	cfg.Kind = model.SourceHTML
	if len(cfg.BlockSelectors) == 0 {
		cfg.BlockSelectors = defaultBlockSelectors
	}
	return &HTMLSource{BaseSource: newBaseSource(cfg, block), renderer: renderer}
}

// Fetch implements Source
func (s *HTMLSource) Fetch(ctx context.Context, location string) (extract.Document, error) {
	body, err := s.load(ctx, location)
	if err != nil {
		return extract.Document{}, err
	}
	doc, err := s.createDocument(body)
	if err != nil {
		return extract.Document{}, err
	}

	blocks := s.textBlocks(doc)
	if len(blocks) == 0 {
		return extract.Document{}, pipelineerrors.NewParsing(s.Config.Store, "no offer blocks on "+location, nil)
	}

	s.log.Debug().Str("url", location).Int("blocks", len(blocks)).Msg("Fetched promotion page")
	return extract.Document{
		Kind:  model.SourceHTML,
		Store: s.Config.Store,
		URL:   location,
		Blobs: blocks,
	}, nil
}

func (s *HTMLSource) load(ctx context.Context, location string) (io.Reader, error) {
	if s.renderer == nil {
		return s.fetchPage(ctx, location)
	}
	if err := s.checkBlock(); err != nil {
		return nil, err
	}
	rendered, err := s.renderer.Render(ctx, location)
	if err != nil {
		return nil, pipelineerrors.NewNetwork(s.Config.Store, "failed to render "+location, err)
	}
	return strings.NewReader(rendered), nil
}

// textBlocks returns one blob per matched element using the first selector
// that matches anything. Text nodes become separate lines so a title and
// its price stay on distinct lines.
func (s *HTMLSource) textBlocks(doc *goquery.Document) []string {
	doc.Find("script, style, noscript").Remove()

	for _, selector := range s.Config.BlockSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		var blocks []string
		sel.Each(func(_ int, el *goquery.Selection) {
			if text := blockText(el); text != "" {
				blocks = append(blocks, text)
			}
		})
		if len(blocks) > 0 {
			return blocks
		}
	}
	return nil
}

func blockText(sel *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if line := strings.Join(strings.Fields(n.Data), " "); line != "" {
				lines = append(lines, line)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

package crawler

import (
	"sjsage522/leafletworker/config"
	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
	"sjsage522/leafletworker/services/cache"
)

// CreateSources creates the sources of every configured retailer, in the
// fixed order they are collected.
func CreateSources(cfg *config.Config, block *cache.RateLimitBlock) []Source {
	var renderer Renderer
	if cfg.UseChrome {
		renderer = NewChromeRenderer(cfg.ChromeTimeout)
	}

	var sources []Source
	for _, sc := range sourceConfigs(cfg) {
		if sc.CatalogURL == "" {
			continue
		}
		switch sc.Kind {
		case model.SourcePDF:
			sources = append(sources, NewPDFSource(sc, block, nil))
		default:
			sources = append(sources, NewHTMLSource(sc, block, renderer))
		}
	}

	logger.Debug("Created %d sources", len(sources))
	return sources
}

// sourceConfigs defines the retailers. Lidl, Maxima and Norfa publish weekly
// PDF leaflets; Rimi and IKI publish promotion grids.
func sourceConfigs(cfg *config.Config) []SourceConfig {
	return []SourceConfig{
		{
			Store:      "lidl",
			CatalogURL: cfg.LidlURL,
			Kind:       model.SourcePDF,
			Timeout:    cfg.HTTPTimeout,
		},
		{
			Store:      "maxima",
			CatalogURL: cfg.MaximaURL,
			Kind:       model.SourcePDF,
			Timeout:    cfg.HTTPTimeout,
		},
		{
			Store:          "rimi",
			CatalogURL:     cfg.RimiURL,
			Kind:           model.SourceHTML,
			Timeout:        cfg.HTTPTimeout,
			BlockSelectors: []string{".js-product-container", ".product-grid__item", ".card"},
		},
		{
			Store:      "norfa",
			CatalogURL: cfg.NorfaURL,
			Kind:       model.SourcePDF,
			Timeout:    cfg.HTTPTimeout,
		},
		{
			Store:          "iki",
			CatalogURL:     cfg.IkiURL,
			Kind:           model.SourceHTML,
			Timeout:        cfg.HTTPTimeout,
			BlockSelectors: []string{".product-card", ".akcija", ".offer"},
		},
	}
}

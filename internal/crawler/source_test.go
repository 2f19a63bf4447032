package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/leafletworker/config"
	"sjsage522/leafletworker/internal/model"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
	"sjsage522/leafletworker/services/cache"
)

const catalogPage = `<html><body>
<a href="/files/savaite-05.pdf">Savaitės leidinys</a>
<a href="https://cdn.example.com/akcijos.pdf?v=2">Akcijos</a>
<a href="/files/savaite-05.pdf">Dublikatas</a>
<a href="/kontaktai">Kontaktai</a>
</body></html>`

const promoPage = `<html><head><script>var price = "9.99 €";</script></head><body>
<div class="offer"><span class="title">Sūris Edam</span> <span class="price">3.49 €</span></div>
<div class="offer"><span class="title">Pienas 2.5%</span><span class="pack">1 l</span><span class="price">1.19 €</span></div>
<div class="offer"><span class="title">Be kainos</span></div>
</body></html>`

func newLeafletServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var pdfHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/leidiniai", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(catalogPage))
	})
	mux.HandleFunc("/files/savaite-05.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pdfHits, 1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-fake"))
	})
	mux.HandleFunc("/akcijos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(promoPage))
	})
	mux.HandleFunc("/limited.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Nothing here</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &pdfHits
}

func fakePages(pages ...string) TextExtractor {
	return func(data []byte) ([]string, error) {
		if string(data) != "%PDF-fake" {
			return nil, errors.New("unexpected payload")
		}
		return pages, nil
	}
}

func TestPDFSourceLocations(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewPDFSource(SourceConfig{Store: "norfa", CatalogURL: srv.URL + "/leidiniai", Timeout: time.Second}, nil, fakePages())

	locs, err := src.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/files/savaite-05.pdf",
		"https://cdn.example.com/akcijos.pdf?v=2",
	}, locs)
	assert.Equal(t, "norfa", src.Store())
	assert.Equal(t, model.SourcePDF, src.Kind())
}

func TestPDFSourceLocationsNoLinks(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewPDFSource(SourceConfig{Store: "norfa", CatalogURL: srv.URL + "/empty", Timeout: time.Second}, nil, fakePages())

	_, err := src.Locations(context.Background())
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeParsing))
}

func TestPDFSourceFetch(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewPDFSource(SourceConfig{Store: "norfa", CatalogURL: srv.URL + "/leidiniai", Timeout: time.Second},
		nil, fakePages("Pienas 1.99 €", "   ", "Sūris Edam 3.49 €"))

	doc, err := src.Fetch(context.Background(), srv.URL+"/files/savaite-05.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.SourcePDF, doc.Kind)
	assert.Equal(t, "norfa", doc.Store)
	assert.Equal(t, srv.URL+"/files/savaite-05.pdf", doc.URL)
	assert.Equal(t, []string{"Pienas 1.99 €", "Sūris Edam 3.49 €"}, doc.Blobs)
}

func TestPDFSourceFetchBlankPDF(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewPDFSource(SourceConfig{Store: "norfa", Timeout: time.Second}, nil, fakePages("", " \n "))

	_, err := src.Fetch(context.Background(), srv.URL+"/files/savaite-05.pdf")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeParsing))
}

func TestPDFSourceFetchNotFound(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewPDFSource(SourceConfig{Store: "norfa", Timeout: time.Second}, nil, fakePages())

	_, err := src.Fetch(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeNetwork))
	assert.Equal(t, pipelineerrors.StageCollect, pipelineerrors.StageOf(err))
}

func TestPDFPageTextRejectsGarbage(t *testing.T) {
	_, err := PDFPageText([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestRateLimitBlocksLaterFetches(t *testing.T) {
	srv, hits := newLeafletServer(t)
	mc := NewMockCacheService()
	block := cache.NewRateLimitBlock(mc, 500*time.Second)
	src := NewPDFSource(SourceConfig{Store: "maxima", Timeout: time.Second}, block, fakePages("Pienas 1.99 €"))

	_, err := src.Fetch(context.Background(), srv.URL+"/limited.pdf")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeRateLimit))
	assert.True(t, block.Blocked("maxima"))

	// The next document is not even requested while blocked.
	_, err = src.Fetch(context.Background(), srv.URL+"/files/savaite-05.pdf")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeRateLimit))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))

	// Other retailers are unaffected.
	other := NewPDFSource(SourceConfig{Store: "norfa", Timeout: time.Second}, block, fakePages("Pienas 1.99 €"))
	_, err = other.Fetch(context.Background(), srv.URL+"/files/savaite-05.pdf")
	require.NoError(t, err)
}

func TestHTMLSourceFetch(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewHTMLSource(SourceConfig{Store: "iki", CatalogURL: srv.URL + "/akcijos", Timeout: time.Second}, nil, nil)

	locs, err := src.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/akcijos"}, locs)

	doc, err := src.Fetch(context.Background(), locs[0])
	require.NoError(t, err)
	assert.Equal(t, model.SourceHTML, doc.Kind)
	require.Len(t, doc.Blobs, 3)
	assert.Equal(t, "Sūris Edam\n3.49 €", doc.Blobs[0])
	assert.Equal(t, "Pienas 2.5%\n1 l\n1.19 €", doc.Blobs[1])
	assert.Equal(t, "Be kainos", doc.Blobs[2])
}

func TestHTMLSourceSelectorFallback(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewHTMLSource(SourceConfig{
		Store:          "rimi",
		CatalogURL:     srv.URL + "/akcijos",
		Timeout:        time.Second,
		BlockSelectors: []string{".js-product-container", ".offer"},
	}, nil, nil)

	doc, err := src.Fetch(context.Background(), srv.URL+"/akcijos")
	require.NoError(t, err)
	assert.Len(t, doc.Blobs, 3)
}

func TestHTMLSourceNoBlocks(t *testing.T) {
	srv, _ := newLeafletServer(t)
	src := NewHTMLSource(SourceConfig{Store: "iki", Timeout: time.Second}, nil, nil)

	_, err := src.Fetch(context.Background(), srv.URL+"/empty")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeParsing))
}

func TestHTMLSourceWithRenderer(t *testing.T) {
	r := &MockRenderer{HTML: promoPage}
	src := NewHTMLSource(SourceConfig{Store: "rimi", CatalogURL: "https://rimi.example/akcijos", Timeout: time.Second}, nil, r)

	doc, err := src.Fetch(context.Background(), "https://rimi.example/akcijos")
	require.NoError(t, err)
	assert.Len(t, doc.Blobs, 3)
	assert.Equal(t, []string{"https://rimi.example/akcijos"}, r.Calls)

	r.Err = errors.New("chrome not found")
	_, err = src.Fetch(context.Background(), "https://rimi.example/akcijos")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsType(err, pipelineerrors.ErrorTypeNetwork))
}

func TestCreateSources(t *testing.T) {
	cfg := &config.Config{
		HTTPTimeout: 5 * time.Second,
		LidlURL:     "https://lidl.example/leidiniai",
		RimiURL:     "https://rimi.example/akcijos",
		IkiURL:      "https://iki.example/akcijos",
	}

	sources := CreateSources(cfg, nil)
	require.Len(t, sources, 3)

	assert.Equal(t, "lidl", sources[0].Store())
	assert.Equal(t, model.SourcePDF, sources[0].Kind())
	assert.Equal(t, "rimi", sources[1].Store())
	assert.Equal(t, model.SourceHTML, sources[1].Kind())
	assert.Equal(t, "iki", sources[2].Store())

	html, ok := sources[1].(*HTMLSource)
	require.True(t, ok)
	assert.Nil(t, html.renderer)
}

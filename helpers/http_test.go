package helpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithRandomHeaders(t *testing.T) {
	// Create a test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "lt-LT")
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Pienas 1.99 €</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchWithRandomHeaders(context.Background(), server.URL, time.Second)
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Pienas 1.99 €")
}

func TestFetchWithRandomHeadersNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// windows-1257 is the Baltic code page; 0xF0 is "š"
		w.Header().Set("Content-Type", "text/html; charset=windows-1257")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Var\xf0k\xeb</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchWithRandomHeaders(context.Background(), server.URL, time.Second)
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Varšk")
}

func TestFetchWithRandomHeadersError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchWithRandomHeaders(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Contains(t, err.Error(), "unexpected status code: 500")

	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = FetchWithRandomHeaders(context.Background(), serverRateLimited.URL, time.Second)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "60")
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := FetchBytes(context.Background(), server.URL, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestFetchBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	data, err := FetchBytes(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://www.iki.lt/leidiniai/", "/files/iki-2024-05.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://www.iki.lt/files/iki-2024-05.pdf", got)

	got, err = ResolveURL("https://www.iki.lt/leidiniai/", "savaite.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://www.iki.lt/leidiniai/savaite.pdf", got)

	got, err = ResolveURL("https://www.iki.lt/", "https://cdn.example.com/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.pdf", got)

	_, err = ResolveURL("https://www.iki.lt/", "  ")
	assert.Error(t, err)
}

package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, memcache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// MockRenderer returns canned HTML instead of driving a browser
type MockRenderer struct {
	HTML  string
	Err   error
	Calls []string
}

func (m *MockRenderer) Render(ctx context.Context, url string) (string, error) {
	m.Calls = append(m.Calls, url)
	return m.HTML, m.Err
}

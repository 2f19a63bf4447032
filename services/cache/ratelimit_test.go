package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCache is an in-memory CacheService that ignores expiry.
type MockCache struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func NewMockCache() *MockCache {
	return &MockCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *MockCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return v, nil
}

func (m *MockCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(m.values, key)
	return nil
}

func TestRateLimitBlock(t *testing.T) {
	mc := NewMockCache()
	b := NewRateLimitBlock(mc, 500*time.Second)

	assert.False(t, b.Blocked("rimi"))

	b.Block("rimi")
	assert.True(t, b.Blocked("rimi"))
	assert.False(t, b.Blocked("iki"))
	assert.Equal(t, "500", string(mc.values["leaflet:ratelimit:rimi"]))
	assert.Equal(t, 500*time.Second, mc.ttls["leaflet:ratelimit:rimi"])

	require.NoError(t, b.Clear("rimi"))
	assert.False(t, b.Blocked("rimi"))
	require.NoError(t, b.Clear("rimi"), "clearing twice is fine")
}

func TestRateLimitBlockCacheErrorIsNotBlocked(t *testing.T) {
	mc := NewMockCache()
	mc.getErr = errors.New("connection refused")
	b := NewRateLimitBlock(mc, time.Minute)

	assert.False(t, b.Blocked("rimi"))
}

func TestRateLimitBlockDisabled(t *testing.T) {
	b := NewRateLimitBlock(nil, time.Minute)
	b.Block("rimi")
	assert.False(t, b.Blocked("rimi"))
	assert.NoError(t, b.Clear("rimi"))

	var nilBlock *RateLimitBlock
	assert.False(t, nilBlock.Blocked("rimi"))
	assert.Zero(t, nilBlock.Duration())
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
)

type memoryCache struct {
	items       map[string][]byte
	getErr      error
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	delete(m.items, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, svc.Get(ctx, "k", &out))

	svc.Set(ctx, "k", map[string]int{"a": 1}, 0)
	require.True(t, svc.Get(ctx, "k", &out))
	assert.Equal(t, 1, out["a"])

	svc.Invalidate(ctx, "k")
	assert.False(t, svc.Get(ctx, "k", &out))
	assert.Equal(t, []string{"k"}, repo.invalidated)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newMemoryCache()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var out map[string]int
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, false)
	svc.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, repo.items)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

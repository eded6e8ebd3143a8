package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = payload
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	cache := NewCacheService(nil, nil, 0, nil, false)

	hit, err := cache.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Set(context.Background(), "k", "v", 0))
	assert.NoError(t, cache.Invalidate(context.Background(), "k"))
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &memoryCacheRepo{entries: map[string][]byte{}}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, cache.Set(context.Background(), "greeting", "hello", 0))

	var value string
	hit, err := cache.Get(context.Background(), "greeting", &value)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "hello", value)
}

func TestCacheServiceMissIsNotAnError(t *testing.T) {
	repo := &memoryCacheRepo{entries: map[string][]byte{}}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var value string
	hit, err := cache.Get(context.Background(), "absent", &value)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := &memoryCacheRepo{entries: map[string][]byte{}}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, cache.Set(context.Background(), "exchanges:list:t1", []string{"a"}, 0))
	require.NoError(t, cache.Invalidate(context.Background(), "exchanges:list:t1"))

	var value []string
	hit, err := cache.Get(context.Background(), "exchanges:list:t1", &value)
	require.NoError(t, err)
	assert.False(t, hit)
}

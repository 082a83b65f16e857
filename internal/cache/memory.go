package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	store *gocache.Cache

	// serializes counter updates with counter-guarded writes
	mu sync.Mutex
}

// NewMemoryCache creates a process-local Cache. It is the fallback when Redis
// is unreachable and the default store in tests.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	return &memoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return "", ErrMiss
	}
	return v.(string), nil
}

func (m *memoryCache) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.store.Set(key, value, expiration)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.store.Delete(k)
	}
	return nil
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return setJSON(ctx, m, key, value, expiration)
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	return getJSON(ctx, m, key, dest)
}

func (m *memoryCache) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := counter(ctx, m, key)
	if err != nil {
		return 0, err
	}
	n++
	if err := m.Set(ctx, key, strconv.FormatInt(n, 10), expiration); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *memoryCache) Counter(ctx context.Context, key string) (int64, error) {
	return counter(ctx, m, key)
}

func (m *memoryCache) SetJSONIfCounter(ctx context.Context, key string, value interface{}, expiration time.Duration, counterKey string, want int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := counter(ctx, m, counterKey)
	if err != nil {
		return false, err
	}
	if current != want {
		return false, nil
	}
	return true, m.Set(ctx, key, string(data), expiration)
}

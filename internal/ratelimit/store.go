package ratelimit

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// incrScript increments a counter and arms its expiry on the first hit, in
// one atomic step.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore keeps window counters in Redis so every instance shares them
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements Store
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	count, err := incrScript.Run(ctx, s.client, []string{key}, ms).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %q: %w", key, err)
	}
	return count, nil
}

// MemoryStore keeps window counters in process memory
type MemoryStore struct {
	counters *gocache.Cache
}

// NewMemoryStore creates a MemoryStore
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{counters: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Incr implements Store
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	for {
		// Add fails when the counter already exists, which is the common case.
		_ = s.counters.Add(key, int64(0), ttl)

		count, err := s.counters.IncrementInt64(key, 1)
		if err == nil {
			return count, nil
		}
		// The counter expired between Add and Increment; start a new one.
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get and GetJSON when the key is absent or expired
var ErrMiss = errors.New("cache: key not found")

// Cache is a key-value store with per-key TTL. Implementations must treat
// deleting an absent key as a no-op.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// Incr increments a counter key, refreshes its expiry and returns the new value
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
	// Counter returns the value of a counter key, zero when absent
	Counter(ctx context.Context, key string) (int64, error)
	// SetJSONIfCounter stores value only while counterKey still holds counter.
	// The comparison and the write are atomic with respect to Incr.
	SetJSONIfCounter(ctx context.Context, key string, value interface{}, expiration time.Duration, counterKey string, counter int64) (bool, error)
}

// setIfCounterScript writes KEYS[1] only if the counter in KEYS[2] still holds ARGV[3]
var setIfCounterScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[2]) or "0")
if current ~= tonumber(ARGV[3]) then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

type redisCache struct {
	client *redis.Client
}

// Connect opens a Redis client and verifies the connection
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// If URL parsing fails, try as simple host:port
		opt = &redis.Options{
			Addr: redisURL,
			DB:   0,
		}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewRedisCache creates a Cache backed by Redis
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

// Get retrieves a value from cache
func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}
	return val, nil
}

// Set stores a value in cache
func (r *redisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete removes keys from cache
func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d key(s): %w", len(keys), err)
	}
	return nil
}

// SetJSON stores a JSON-serializable value in cache
func (r *redisCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return setJSON(ctx, r, key, value, expiration)
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (r *redisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	return getJSON(ctx, r, key, dest)
}

// Incr increments a counter key
func (r *redisCache) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if expiration > 0 {
			pipe.PExpire(ctx, key, expiration)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %q: %w", key, err)
	}
	return incr.Val(), nil
}

// Counter reads a counter key
func (r *redisCache) Counter(ctx context.Context, key string) (int64, error) {
	return counter(ctx, r, key)
}

// SetJSONIfCounter stores a JSON value guarded by a counter
func (r *redisCache) SetJSONIfCounter(ctx context.Context, key string, value interface{}, expiration time.Duration, counterKey string, want int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	stored, err := setIfCounterScript.Run(ctx, r.client, []string{key, counterKey}, string(data), expiration.Milliseconds(), want).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set %q: %w", key, err)
	}
	return stored == 1, nil
}

func counter(ctx context.Context, c Cache, key string) (int64, error) {
	v, err := c.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %q holds %q: %w", key, v, err)
	}
	return n, nil
}

func setJSON(ctx context.Context, c Cache, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.Set(ctx, key, string(data), expiration)
}

func getJSON(ctx context.Context, c Cache, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Code    string `json:"code"`
	Allowed bool   `json:"allowed"`
}

func setupRedis(t testing.TB) (Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return NewRedisCache(client), mr
}

func testCacheBehaviour(t *testing.T, c Cache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := c.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrMiss)

		var p payload
		assert.ErrorIs(t, c.GetJSON(ctx, "absent", &p), ErrMiss)
	})

	t.Run("json round trip", func(t *testing.T) {
		require.NoError(t, c.SetJSON(ctx, AccessKey("abc"), payload{Code: "abc", Allowed: true}, time.Minute))

		var p payload
		require.NoError(t, c.GetJSON(ctx, AccessKey("abc"), &p))
		assert.Equal(t, payload{Code: "abc", Allowed: true}, p)
	})

	t.Run("bulk delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
		require.NoError(t, c.Set(ctx, "k2", "v2", time.Minute))

		require.NoError(t, c.Delete(ctx, "k1", "k2"))

		_, err := c.Get(ctx, "k1")
		assert.ErrorIs(t, err, ErrMiss)
		_, err = c.Get(ctx, "k2")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("deleting absent keys is a no-op", func(t *testing.T) {
		assert.NoError(t, c.Delete(ctx, "never-set"))
		assert.NoError(t, c.Delete(ctx))
	})

	t.Run("counter", func(t *testing.T) {
		gen := AccessGenKey("ctr")

		n, err := c.Counter(ctx, gen)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = c.Incr(ctx, gen, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = c.Incr(ctx, gen, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = c.Counter(ctx, gen)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("set if counter", func(t *testing.T) {
		key, gen := AccessKey("fenced"), AccessGenKey("fenced")

		seen, err := c.Counter(ctx, gen)
		require.NoError(t, err)
		stored, err := c.SetJSONIfCounter(ctx, key, payload{Code: "fenced", Allowed: true}, time.Minute, gen, seen)
		require.NoError(t, err)
		assert.True(t, stored)

		var p payload
		require.NoError(t, c.GetJSON(ctx, key, &p))
		assert.True(t, p.Allowed)

		// An invalidation between the read and the write wins
		seen, err = c.Counter(ctx, gen)
		require.NoError(t, err)
		_, err = c.Incr(ctx, gen, time.Minute)
		require.NoError(t, err)
		require.NoError(t, c.Delete(ctx, key))

		stored, err = c.SetJSONIfCounter(ctx, key, payload{Code: "fenced", Allowed: true}, time.Minute, gen, seen)
		require.NoError(t, err)
		assert.False(t, stored)
		assert.ErrorIs(t, c.GetJSON(ctx, key, &p), ErrMiss)
	})
}

func TestRedisCache(t *testing.T) {
	c, _ := setupRedis(t)
	testCacheBehaviour(t, c)
}

func TestMemoryCache(t *testing.T) {
	testCacheBehaviour(t, NewMemoryCache(time.Minute))
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "lived", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCache_CounterExpiry(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()

	_, err := c.Incr(ctx, AccessGenKey("abc"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(AccessGenKey("abc")))

	stored, err := c.SetJSONIfCounter(ctx, AccessKey("abc"), payload{Code: "abc"}, time.Second, AccessGenKey("abc"), 1)
	require.NoError(t, err)
	require.True(t, stored)
	assert.Equal(t, time.Second, mr.TTL(AccessKey("abc")))
}

func TestRedisCache_Unavailable(t *testing.T) {
	c, mr := setupRedis(t)
	mr.Close()

	_, err := c.Get(context.Background(), "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestAccessKeys(t *testing.T) {
	assert.Equal(t, []string{"access:a", "access:b"}, AccessKeys("a", "b"))
	assert.Empty(t, AccessKeys())
}

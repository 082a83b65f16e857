package service

import (
	"context"
	"log/slog"
	"time"

	"shortly/internal/cache"
)

// CacheInvalidator evicts cache entries made stale by a write. Eviction is
// unconditional and idempotent; failures are logged, never returned.
//
// Access decisions and user state are also fenced: their generation counter
// is bumped before the key is deleted, so a reader that loaded the row before
// the write cannot store its result afterwards.
type CacheInvalidator struct {
	cache  cache.Cache
	logger *slog.Logger
}

// NewCacheInvalidator creates a new cache invalidator
func NewCacheInvalidator(c cache.Cache, logger *slog.Logger) *CacheInvalidator {
	return &CacheInvalidator{
		cache:  c,
		logger: logger,
	}
}

// InvalidateURL evicts the access decisions of the given short codes
func (i *CacheInvalidator) InvalidateURL(ctx context.Context, shortCodes ...string) {
	if len(shortCodes) == 0 {
		return
	}
	i.bumpAccess(ctx, shortCodes)
	i.delete(ctx, cache.AccessKeys(shortCodes...)...)
}

// InvalidateUserURLs evicts a user's cached URL list
func (i *CacheInvalidator) InvalidateUserURLs(ctx context.Context, userID *string) {
	if userID == nil {
		return
	}
	i.delete(ctx, cache.UserURLsKey(*userID))
}

// InvalidateUserState evicts a user's cached status and role
func (i *CacheInvalidator) InvalidateUserState(ctx context.Context, userID string) {
	i.bump(ctx, cache.UserStateGenKey(userID), cache.UserGenTTL)
	i.delete(ctx, cache.UserStateKey(userID))
}

// InvalidateOwner evicts everything derived from a user's account state:
// the access decision of every code they own, their URL list and their state.
func (i *CacheInvalidator) InvalidateOwner(ctx context.Context, userID string, shortCodes []string) {
	i.bumpAccess(ctx, shortCodes)
	i.bump(ctx, cache.UserStateGenKey(userID), cache.UserGenTTL)
	keys := append(cache.AccessKeys(shortCodes...), cache.UserURLsKey(userID), cache.UserStateKey(userID))
	i.delete(ctx, keys...)
}

func (i *CacheInvalidator) bumpAccess(ctx context.Context, shortCodes []string) {
	for _, code := range shortCodes {
		i.bump(ctx, cache.AccessGenKey(code), cache.AccessGenTTL)
	}
}

func (i *CacheInvalidator) bump(ctx context.Context, key string, ttl time.Duration) {
	if _, err := i.cache.Incr(ctx, key, ttl); err != nil {
		i.logger.Error("cache generation bump failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (i *CacheInvalidator) delete(ctx context.Context, keys ...string) {
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.logger.Error("cache eviction failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

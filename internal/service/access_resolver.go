package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"shortly/internal/cache"
	"shortly/internal/entities"
	"shortly/internal/repository"
)

// lookupCodePattern is looser than the creation rule so that legacy codes
// shorter than three characters still resolve
var lookupCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,30}$`)

// AccessResolver decides, for every redirect hit, whether a short code may be served.
// Decisions are cached for cache.AccessTTL and must be evicted by every write
// that changes a URL's status, moderation fields or short code.
type AccessResolver struct {
	store  AccessStore
	cache  cache.Cache
	logger *slog.Logger
}

// NewAccessResolver creates a new access resolver
func NewAccessResolver(store AccessStore, c cache.Cache, logger *slog.Logger) *AccessResolver {
	return &AccessResolver{
		store:  store,
		cache:  c,
		logger: logger,
	}
}

// Resolve returns the access decision for a short code. Storage errors are
// returned and never cached; cache errors fall through to storage.
// A computed decision is written back only if no invalidation of the code
// happened since before the storage read.
func (r *AccessResolver) Resolve(ctx context.Context, shortCode string) (*entities.AccessDecision, error) {
	const op = "service.AccessResolver.Resolve"

	if !lookupCodePattern.MatchString(shortCode) {
		return entities.Deny(entities.DenyNotFound), nil
	}

	key := cache.AccessKey(shortCode)

	var cached entities.AccessDecision
	err := r.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return &cached, nil
	case !errors.Is(err, cache.ErrMiss):
		r.logger.Warn("access cache read failed", slog.String("short_code", shortCode), slog.Any("error", err))
	}

	genKey := cache.AccessGenKey(shortCode)
	gen, genErr := r.cache.Counter(ctx, genKey)
	if genErr != nil {
		r.logger.Warn("access generation read failed", slog.String("short_code", shortCode), slog.Any("error", genErr))
	}

	var decision *entities.AccessDecision
	rec, err := r.store.FindAccessRecord(ctx, shortCode)
	switch {
	case errors.Is(err, repository.ErrURLNotFound):
		decision = entities.Deny(entities.DenyNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		decision = Classify(rec)
	}

	if genErr != nil {
		return decision, nil
	}

	stored, err := r.cache.SetJSONIfCounter(ctx, key, decision, cache.AccessTTL, genKey, gen)
	switch {
	case err != nil:
		r.logger.Warn("access cache write failed", slog.String("short_code", shortCode), slog.Any("error", err))
	case !stored:
		r.logger.Debug("access decision invalidated while resolving, not cached", slog.String("short_code", shortCode))
	}

	return decision, nil
}

// Classify derives an access decision from a URL record and its owner's status.
// URLs without a live owner are not servable.
func Classify(rec *entities.AccessRecord) *entities.AccessDecision {
	if rec == nil || rec.UserID == nil || rec.OwnerStatus == nil {
		return entities.Deny(entities.DenyNotFound)
	}

	owner := *rec.OwnerStatus
	switch {
	case rec.Status == entities.URLStatusSuspended || owner == entities.UserStatusSuspended:
		return entities.Deny(entities.DenySuspended)
	case rec.Status == entities.URLStatusInactive || owner == entities.UserStatusInactive:
		return entities.Deny(entities.DenyInactive)
	}

	return entities.Allow(&rec.URL)
}

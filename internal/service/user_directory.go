package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shortly/internal/cache"
	"shortly/internal/entities"
	"shortly/internal/repository"
)

type userFinder interface {
	FindByID(ctx context.Context, id string) (*entities.User, error)
}

// UserDirectory serves the live status and role of a user through the user-state cache
type UserDirectory struct {
	users  userFinder
	cache  cache.Cache
	logger *slog.Logger
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(users userFinder, c cache.Cache, logger *slog.Logger) *UserDirectory {
	return &UserDirectory{
		users:  users,
		cache:  c,
		logger: logger,
	}
}

// State returns the caller's current status and role. Unknown users yield ErrNotFound.
func (d *UserDirectory) State(ctx context.Context, userID string) (*entities.UserState, error) {
	const op = "service.UserDirectory.State"

	key := cache.UserStateKey(userID)

	var state entities.UserState
	err := d.cache.GetJSON(ctx, key, &state)
	switch {
	case err == nil:
		return &state, nil
	case !errors.Is(err, cache.ErrMiss):
		d.logger.Warn("user state cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	genKey := cache.UserStateGenKey(userID)
	gen, genErr := d.cache.Counter(ctx, genKey)
	if genErr != nil {
		d.logger.Warn("user state generation read failed", slog.String("user_id", userID), slog.Any("error", genErr))
	}

	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	state = entities.UserState{Status: user.Status, Role: user.Role}
	if genErr != nil {
		return &state, nil
	}
	if _, err := d.cache.SetJSONIfCounter(ctx, key, state, cache.UserStateTTL, genKey, gen); err != nil {
		d.logger.Warn("user state cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return &state, nil
}

// ActiveState is State restricted to active accounts; others yield ErrAccountDisabled
func (d *UserDirectory) ActiveState(ctx context.Context, userID string) (*entities.UserState, error) {
	state, err := d.State(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Status != entities.UserStatusActive {
		return nil, ErrAccountDisabled
	}
	return state, nil
}

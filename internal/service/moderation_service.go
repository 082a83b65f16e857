package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"shortly/internal/entities"
	"shortly/internal/repository"
)

// ModerationService carries out administrator actions on URLs and users.
// Cached decisions are invalidated after every write. Invalidation bumps the
// code's access generation, so a resolver that read the pre-write row cannot
// store its decision afterwards.
type ModerationService struct {
	urls        ModerationStore
	users       UserStore
	invalidator *CacheInvalidator
	logger      *slog.Logger
}

// NewModerationService creates a new moderation service
func NewModerationService(urls ModerationStore, users UserStore, invalidator *CacheInvalidator, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		urls:        urls,
		users:       users,
		invalidator: invalidator,
		logger:      logger,
	}
}

// ListFlagged returns the review queue
func (s *ModerationService) ListFlagged(ctx context.Context, limit, offset int) ([]*entities.URL, error) {
	const op = "service.ModerationService.ListFlagged"

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	urls, err := s.urls.ListFlagged(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return urls, nil
}

// SetURLStatus suspends, deactivates or reactivates a URL
func (s *ModerationService) SetURLStatus(ctx context.Context, shortCode string, status entities.URLStatus) (*entities.URL, error) {
	const op = "service.ModerationService.SetURLStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	return s.mutateURL(ctx, op, shortCode, func() (*entities.URL, error) {
		return s.urls.UpdateStatus(ctx, shortCode, status)
	})
}

// Approve clears a URL's flag, threat and flag reason
func (s *ModerationService) Approve(ctx context.Context, shortCode string) (*entities.URL, error) {
	const op = "service.ModerationService.Approve"

	return s.mutateURL(ctx, op, shortCode, func() (*entities.URL, error) {
		return s.urls.Approve(ctx, shortCode)
	})
}

// DeleteURL removes any URL
func (s *ModerationService) DeleteURL(ctx context.Context, shortCode string) error {
	const op = "service.ModerationService.DeleteURL"

	_, err := s.mutateURL(ctx, op, shortCode, func() (*entities.URL, error) {
		return s.urls.Delete(ctx, shortCode, nil)
	})
	return err
}

func (s *ModerationService) mutateURL(ctx context.Context, op, shortCode string, write func() (*entities.URL, error)) (*entities.URL, error) {
	url, err := write()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	s.invalidator.InvalidateURL(ctx, shortCode)
	s.invalidator.InvalidateUserURLs(ctx, url.UserID)

	s.logger.Info("url moderated",
		slog.String("op", op),
		slog.String("short_code", shortCode),
		slog.String("status", string(url.Status)),
		slog.Bool("flagged", url.Flagged),
	)
	return url, nil
}

// SetUserStatus changes an account's status and evicts the access decision of
// every URL the user owns
func (s *ModerationService) SetUserStatus(ctx context.Context, actor *entities.Principal, userID string, status entities.UserStatus) (*entities.User, error) {
	const op = "service.ModerationService.SetUserStatus"

	if actor == nil || !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if actor.UserID == userID {
		return nil, fmt.Errorf("%s: %w", op, ErrSelfModeration)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	// Listed before the write too, so a failed relist still evicts the known codes
	codes, err := s.urls.ListShortCodesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.UpdateStatus(ctx, userID, status)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if fresh, err := s.urls.ListShortCodesByUser(ctx, userID); err != nil {
		s.logger.Error("failed to list codes for eviction", slog.String("user_id", userID), slog.Any("error", err))
	} else {
		codes = fresh
	}
	s.invalidator.InvalidateOwner(ctx, userID, codes)

	s.logger.Info("user status changed",
		slog.String("user_id", userID),
		slog.String("status", string(status)),
		slog.Int("urls", len(codes)),
	)
	return user, nil
}

// SetUserRole promotes or demotes a user. Administrators cannot demote themselves.
func (s *ModerationService) SetUserRole(ctx context.Context, actor *entities.Principal, userID string, role entities.Role) (*entities.User, error) {
	const op = "service.ModerationService.SetUserRole"

	if actor == nil || !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}
	if actor.UserID == userID && role != entities.RoleAdmin {
		return nil, fmt.Errorf("%s: %w", op, ErrSelfModeration)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidator.InvalidateUserState(ctx, userID)

	return user, nil
}

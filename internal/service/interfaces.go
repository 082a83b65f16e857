package service

import (
	"context"

	"shortly/internal/entities"
	"shortly/internal/repository"
)

// AccessStore reads URL records joined with their owner's status
type AccessStore interface {
	FindAccessRecord(ctx context.Context, shortCode string) (*entities.AccessRecord, error)
}

// ClickCounter atomically increments a URL's click counter
type ClickCounter interface {
	IncrementClicks(ctx context.Context, id int64) (int64, error)
}

// ClickSink accepts click events for asynchronous persistence.
// Enqueue never blocks and reports whether the event was accepted.
type ClickSink interface {
	Enqueue(e *entities.ClickEvent) bool
}

// URLStore is the URL registry as seen by owner-facing operations
type URLStore interface {
	Create(ctx context.Context, p repository.CreateURLParams) (*entities.URL, error)
	ExistsShortCode(ctx context.Context, shortCode string) (bool, error)
	GetStats(ctx context.Context, shortCode string, userID *string) (*entities.URL, error)
	GetByUserID(ctx context.Context, userID string) ([]*entities.URL, error)
	Update(ctx context.Context, shortCode string, userID *string, patch repository.URLPatch) (*entities.URL, error)
	Delete(ctx context.Context, shortCode string, userID *string) (*entities.URL, error)
}

// ModerationStore is the URL registry as seen by administrators
type ModerationStore interface {
	ListFlagged(ctx context.Context, limit, offset int) ([]*entities.URL, error)
	ListShortCodesByUser(ctx context.Context, userID string) ([]string, error)
	UpdateStatus(ctx context.Context, shortCode string, status entities.URLStatus) (*entities.URL, error)
	Approve(ctx context.Context, shortCode string) (*entities.URL, error)
	Delete(ctx context.Context, shortCode string, userID *string) (*entities.URL, error)
}

// UserStore is the user table
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, name *string) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	FindByID(ctx context.Context, id string) (*entities.User, error)
	UpdateStatus(ctx context.Context, id string, status entities.UserStatus) (*entities.User, error)
	UpdateRole(ctx context.Context, id string, role entities.Role) (*entities.User, error)
}

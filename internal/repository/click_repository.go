package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shortly/internal/entities"
)

// ClickRepository appends click events
type ClickRepository struct {
	db *sqlx.DB
}

// NewClickRepository creates a new click repository
func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

// Insert stores one click event. A zero ClickedAt uses the database clock.
func (r *ClickRepository) Insert(ctx context.Context, e *entities.ClickEvent) error {
	const op = "repository.ClickRepository.Insert"
	const query = `
		INSERT INTO url_clicks (url_id, clicked_at, user_id, browser, platform)
		VALUES ($1, COALESCE($2::timestamptz, NOW()), $3, $4, $5)`

	var clickedAt any
	if !e.ClickedAt.IsZero() {
		clickedAt = e.ClickedAt.UTC()
	}

	if _, err := r.db.ExecContext(ctx, query, e.URLID, clickedAt, e.UserID, e.Browser, e.Platform); err != nil {
		return fmt.Errorf("%s: failed to insert into url_clicks table: %w", op, err)
	}

	return nil
}

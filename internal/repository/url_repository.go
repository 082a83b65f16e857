package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"shortly/internal/entities"
)

const urlColumns = `urls.id, urls.short_code, urls.original_url, urls.name, urls.user_id, urls.clicks,
	urls.flagged, urls.threat, urls.flag_category, urls.flag_reason, urls.flag_confidence,
	urls.status, urls.created_at, urls.updated_at`

type urlDB struct {
	ID             int64     `db:"id"`
	ShortCode      string    `db:"short_code"`
	OriginalURL    string    `db:"original_url"`
	Name           *string   `db:"name"`
	UserID         *string   `db:"user_id"`
	Clicks         int64     `db:"clicks"`
	Flagged        bool      `db:"flagged"`
	Threat         *string   `db:"threat"`
	FlagCategory   *string   `db:"flag_category"`
	FlagReason     *string   `db:"flag_reason"`
	FlagConfidence *float64  `db:"flag_confidence"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (u *urlDB) toEntity() *entities.URL {
	url := &entities.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		Name:        u.Name,
		UserID:      u.UserID,
		Clicks:      u.Clicks,
		Moderation: entities.Moderation{
			Flagged:        u.Flagged,
			FlagReason:     u.FlagReason,
			FlagConfidence: u.FlagConfidence,
		},
		Status:    entities.URLStatus(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Threat != nil {
		threat := entities.ParseThreatType(*u.Threat)
		url.Threat = &threat
	}
	if u.FlagCategory != nil {
		category := entities.ParseFlagCategory(*u.FlagCategory)
		url.FlagCategory = &category
	}
	return url
}

type accessRecordDB struct {
	urlDB
	OwnerStatus *string `db:"owner_status"`
}

// moderationArgs flattens a verdict into driver values in column order
func moderationArgs(m entities.Moderation) []any {
	var threat, category *string
	if m.Threat != nil {
		s := string(*m.Threat)
		threat = &s
	}
	if m.FlagCategory != nil {
		s := string(*m.FlagCategory)
		category = &s
	}
	return []any{m.Flagged || m.Threat != nil, threat, category, m.FlagReason, m.FlagConfidence}
}

// CreateURLParams holds everything stored with a new URL
type CreateURLParams struct {
	ShortCode   string
	OriginalURL string
	Name        *string
	UserID      *string
	Moderation  entities.Moderation
}

// URLPatch is a partial update; nil fields keep their current value
type URLPatch struct {
	ShortCode   *string
	OriginalURL *string
	Name        *string
	// Moderation replaces the stored verdict when the destination changes
	Moderation *entities.Moderation
}

// URLRepository is the PostgreSQL URL registry
type URLRepository struct {
	db *sqlx.DB
}

// NewURLRepository creates a new URL repository
func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Create inserts a URL together with its initial moderation verdict
func (r *URLRepository) Create(ctx context.Context, p CreateURLParams) (*entities.URL, error) {
	const op = "repository.URLRepository.Create"
	const query = `
		INSERT INTO urls (short_code, original_url, name, user_id, flagged, threat, flag_category, flag_reason, flag_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + urlColumns

	args := append([]any{p.ShortCode, p.OriginalURL, p.Name, p.UserID}, moderationArgs(p.Moderation)...)

	var url urlDB
	if err := r.db.GetContext(ctx, &url, query, args...); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeExists)
		}
		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

// ExistsShortCode reports whether a short code is taken
func (r *URLRepository) ExistsShortCode(ctx context.Context, shortCode string) (bool, error) {
	const op = "repository.URLRepository.ExistsShortCode"
	const query = `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to query urls table: %w", op, err)
	}

	return exists, nil
}

// FindAccessRecord returns a URL joined with its owner's status
func (r *URLRepository) FindAccessRecord(ctx context.Context, shortCode string) (*entities.AccessRecord, error) {
	const op = "repository.URLRepository.FindAccessRecord"
	const query = `
		SELECT ` + urlColumns + `, users.status AS owner_status
		FROM urls
		LEFT JOIN users ON users.id = urls.user_id
		WHERE urls.short_code = $1`

	var rec accessRecordDB
	if err := r.db.GetContext(ctx, &rec, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	out := &entities.AccessRecord{URL: *rec.toEntity()}
	if rec.OwnerStatus != nil {
		status := entities.UserStatus(*rec.OwnerStatus)
		out.OwnerStatus = &status
	}
	return out, nil
}

// IncrementClicks atomically bumps the counter and returns the new value
func (r *URLRepository) IncrementClicks(ctx context.Context, id int64) (int64, error) {
	const op = "repository.URLRepository.IncrementClicks"
	const query = `UPDATE urls SET clicks = clicks + 1 WHERE id = $1 RETURNING clicks`

	var clicks int64
	if err := r.db.GetContext(ctx, &clicks, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return 0, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	return clicks, nil
}

// GetStats returns a URL, restricted to userID when it is set
func (r *URLRepository) GetStats(ctx context.Context, shortCode string, userID *string) (*entities.URL, error) {
	const op = "repository.URLRepository.GetStats"
	const query = `
		SELECT ` + urlColumns + ` FROM urls
		WHERE short_code = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)`

	var url urlDB
	if err := r.db.GetContext(ctx, &url, query, shortCode, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

// GetByUserID lists a user's URLs, newest first
func (r *URLRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.URL, error) {
	const op = "repository.URLRepository.GetByUserID"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE user_id = $1 ORDER BY created_at DESC`

	return r.selectURLs(ctx, op, query, userID)
}

// ListShortCodesByUser returns every short code a user owns
func (r *URLRepository) ListShortCodesByUser(ctx context.Context, userID string) ([]string, error) {
	const op = "repository.URLRepository.ListShortCodesByUser"
	const query = `SELECT short_code FROM urls WHERE user_id = $1`

	codes := []string{}
	if err := r.db.SelectContext(ctx, &codes, query, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	return codes, nil
}

// ListFlagged returns URLs awaiting review, newest first
func (r *URLRepository) ListFlagged(ctx context.Context, limit, offset int) ([]*entities.URL, error) {
	const op = "repository.URLRepository.ListFlagged"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE flagged ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	return r.selectURLs(ctx, op, query, limit, offset)
}

func (r *URLRepository) selectURLs(ctx context.Context, op, query string, args ...any) ([]*entities.URL, error) {
	var rows []urlDB
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	urls := make([]*entities.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}
	return urls, nil
}

// Update applies a patch to a URL, restricted to userID when it is set.
// A rename that collides returns ErrShortCodeExists.
func (r *URLRepository) Update(ctx context.Context, shortCode string, userID *string, patch URLPatch) (*entities.URL, error) {
	const op = "repository.URLRepository.Update"
	const query = `
		UPDATE urls SET
			short_code = COALESCE($3, short_code),
			original_url = COALESCE($4, original_url),
			name = COALESCE($5, name),
			updated_at = NOW()
		WHERE short_code = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)
		RETURNING ` + urlColumns
	const queryWithModeration = `
		UPDATE urls SET
			short_code = COALESCE($3, short_code),
			original_url = COALESCE($4, original_url),
			name = COALESCE($5, name),
			flagged = $6, threat = $7, flag_category = $8, flag_reason = $9, flag_confidence = $10,
			updated_at = NOW()
		WHERE short_code = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)
		RETURNING ` + urlColumns

	q := query
	args := []any{shortCode, userID, patch.ShortCode, patch.OriginalURL, patch.Name}
	if patch.Moderation != nil {
		q = queryWithModeration
		args = append(args, moderationArgs(*patch.Moderation)...)
	}

	var url urlDB
	if err := r.db.GetContext(ctx, &url, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeExists)
		}
		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	return url.toEntity(), nil
}

// UpdateStatus sets the moderation status of a URL
func (r *URLRepository) UpdateStatus(ctx context.Context, shortCode string, status entities.URLStatus) (*entities.URL, error) {
	const op = "repository.URLRepository.UpdateStatus"
	const query = `UPDATE urls SET status = $2, updated_at = NOW() WHERE short_code = $1 RETURNING ` + urlColumns

	return r.updateOne(ctx, op, query, shortCode, string(status))
}

// Approve clears flagged, threat and flag reason. Category and confidence stay
// as a record of the original verdict.
func (r *URLRepository) Approve(ctx context.Context, shortCode string) (*entities.URL, error) {
	const op = "repository.URLRepository.Approve"
	const query = `
		UPDATE urls SET flagged = FALSE, threat = NULL, flag_reason = NULL, updated_at = NOW()
		WHERE short_code = $1
		RETURNING ` + urlColumns

	return r.updateOne(ctx, op, query, shortCode)
}

func (r *URLRepository) updateOne(ctx context.Context, op, query string, args ...any) (*entities.URL, error) {
	var url urlDB
	if err := r.db.GetContext(ctx, &url, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}
	return url.toEntity(), nil
}

// Delete removes a URL, restricted to userID when it is set, and returns the
// deleted row. Click events cascade.
func (r *URLRepository) Delete(ctx context.Context, shortCode string, userID *string) (*entities.URL, error) {
	const op = "repository.URLRepository.Delete"
	const query = `
		DELETE FROM urls
		WHERE short_code = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)
		RETURNING ` + urlColumns

	var url urlDB
	if err := r.db.GetContext(ctx, &url, query, shortCode, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return nil, fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

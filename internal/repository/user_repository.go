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

const userColumns = `id, email, password_hash, name, role, status, created_at, updated_at`

type userDB struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         *string   `db:"name"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *userDB) toEntity() *entities.User {
	return &entities.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Role:         entities.Role(u.Role),
		Status:       entities.UserStatus(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// UserRepository is the PostgreSQL user store
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, name *string) (*entities.User, error) {
	const op = "repository.UserRepository.Create"
	const query = `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	var user userDB
	if err := r.db.GetContext(ctx, &user, query, email, passwordHash, name); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}
		return nil, fmt.Errorf("%s: failed to insert into users table: %w", op, err)
	}

	return user.toEntity(), nil
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	const op = "repository.UserRepository.FindByEmail"
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return r.getOne(ctx, op, query, email)
}

// FindByID finds a user by ID (UUID)
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	const op = "repository.UserRepository.FindByID"
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return r.getOne(ctx, op, query, id)
}

// UpdateStatus sets a user's account status
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status entities.UserStatus) (*entities.User, error) {
	const op = "repository.UserRepository.UpdateStatus"
	const query = `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	return r.getOne(ctx, op, query, id, string(status))
}

// UpdateRole sets a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role entities.Role) (*entities.User, error) {
	const op = "repository.UserRepository.UpdateRole"
	const query = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	return r.getOne(ctx, op, query, id, string(role))
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, args ...any) (*entities.User, error) {
	var user userDB
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: failed to query users table: %w", op, err)
	}
	return user.toEntity(), nil
}

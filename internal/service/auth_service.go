package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"shortly/internal/entities"
	"shortly/internal/repository"
)

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateToken(user *entities.User) (string, error)
}

// AuthService registers and logs in users
type AuthService struct {
	users  UserStore
	tokens TokenIssuer
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
	}
}

// Register creates a new user account and returns it with a token for automatic login
func (s *AuthService) Register(ctx context.Context, email, password string, name *string) (*entities.User, string, error) {
	const op = "service.AuthService.Register"

	email = strings.ToLower(strings.TrimSpace(email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := s.users.Create(ctx, email, string(hashedPassword), trimmed(name))
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	return user, token, nil
}

// Login authenticates a user. Unknown emails, wrong passwords and disabled
// accounts all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*entities.User, string, error) {
	const op = "service.AuthService.Login"

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if user.Status != entities.UserStatusActive {
		return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	return user, token, nil
}

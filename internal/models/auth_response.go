package models

import (
	"time"

	"shortly/internal/entities"
)

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	UserID    string    `json:"user_id"` // UUID
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Token     string    `json:"token"` // JWT token
}

// RegisterResponse represents the response after user registration
type RegisterResponse struct {
	Message string       `json:"message"`
	User    AuthResponse `json:"user"`
}

// NewAuthResponse builds the response for a logged-in user
func NewAuthResponse(u *entities.User, token string) AuthResponse {
	return AuthResponse{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		Token:     token,
	}
}

// UserResponse is a user as seen by administrators
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse converts a user entity
func NewUserResponse(u *entities.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
	}
}

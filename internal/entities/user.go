package entities

import "time"

// UserStatus is the account state of a user
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusInactive  UserStatus = "inactive"
)

// Valid reports whether s is a known user status
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended, UserStatusInactive:
		return true
	}
	return false
}

// Role is the authorization role of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a user entity in the database
type User struct {
	ID           string     `json:"id"` // UUID
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Don't expose password hash in JSON
	Name         *string    `json:"name,omitempty"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserState is the cached slice of a user consulted on every authenticated request
type UserState struct {
	Status UserStatus `json:"status"`
	Role   Role       `json:"role"`
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller is an administrator. A nil principal is anonymous.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

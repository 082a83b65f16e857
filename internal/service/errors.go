package service

import "errors"

// Validation errors
var (
	ErrInvalidURL        = errors.New("invalid URL format")
	ErrInvalidShortCode  = errors.New("short code must be 3-30 characters of letters, numbers, hyphens or underscores")
	ErrReservedShortCode = errors.New("short code is reserved")
	ErrShortCodeTaken    = errors.New("short code is already taken")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidRole       = errors.New("invalid role")
	ErrEmailTaken        = errors.New("user with this email already exists")
)

// ErrBlockedMalicious rejects creation of a URL classified as malicious with high confidence
var ErrBlockedMalicious = errors.New("url blocked: classified as malicious")

// ErrCodeAllocation is returned when no free short code was found within the attempt budget
var ErrCodeAllocation = errors.New("could not allocate short code")

// Authorization errors. ErrNotFound is also used when the caller may not see the resource.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not authorized")
	ErrSelfModeration     = errors.New("administrators cannot change their own status or demote themselves")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is not active")
)

package entities

import "time"

// URLStatus is the lifecycle state of a short link set by its owner or a moderator
type URLStatus string

const (
	URLStatusActive    URLStatus = "active"
	URLStatusSuspended URLStatus = "suspended"
	URLStatusInactive  URLStatus = "inactive"
)

// Valid reports whether s is a known URL status
func (s URLStatus) Valid() bool {
	switch s {
	case URLStatusActive, URLStatusSuspended, URLStatusInactive:
		return true
	}
	return false
}

// Moderation holds the safety verdict stored with a URL.
// Threat != nil implies Flagged.
type Moderation struct {
	Flagged        bool          `json:"flagged"`
	Threat         *ThreatType   `json:"threat,omitempty"`
	FlagCategory   *FlagCategory `json:"flag_category,omitempty"`
	FlagReason     *string       `json:"flag_reason,omitempty"`
	FlagConfidence *float64      `json:"flag_confidence,omitempty"`
}

// URL represents a shortened URL entity in the database
type URL struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Name        *string   `json:"name,omitempty"`
	UserID      *string   `json:"user_id,omitempty"` // nil for anonymous URLs, UUID otherwise
	Clicks      int64     `json:"clicks"`
	Moderation
	Status    URLStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccessRecord is a URL joined with its owner's account status.
// OwnerStatus is nil when the URL has no owner or the owner row is gone.
type AccessRecord struct {
	URL
	OwnerStatus *UserStatus
}

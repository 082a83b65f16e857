package entities

import "time"

// ClickEvent is an append-only record of one redirect hit
type ClickEvent struct {
	ID        int64     `json:"id"`
	URLID     int64     `json:"url_id"`
	ClickedAt time.Time `json:"clicked_at"`
	UserID    *string   `json:"user_id,omitempty"`
	Browser   *string   `json:"browser,omitempty"`
	Platform  *string   `json:"platform,omitempty"`
}

// ClickMeta is the parsed client metadata attached to a click
type ClickMeta struct {
	UserID   *string
	Browser  *string
	Platform *string
}

package models

import (
	"time"

	"shortly/internal/entities"
)

// URLResponse represents a short URL with its statistics and moderation verdict
type URLResponse struct {
	ShortCode      string     `json:"short_code"`
	OriginalURL    string     `json:"original_url"`
	ShortURL       string     `json:"short_url"` // Full short URL (base URL + short code)
	Name           *string    `json:"name,omitempty"`
	ClickCount     int64      `json:"click_count"`
	Status         string     `json:"status"`
	Flagged        bool       `json:"flagged"`
	Threat         *string    `json:"threat,omitempty"`
	FlagCategory   *string    `json:"flag_category,omitempty"`
	FlagReason     *string    `json:"flag_reason,omitempty"`
	FlagConfidence *float64   `json:"flag_confidence,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// NewURLResponse converts a URL entity
func NewURLResponse(u *entities.URL, baseURL string) URLResponse {
	resp := URLResponse{
		ShortCode:      u.ShortCode,
		OriginalURL:    u.OriginalURL,
		ShortURL:       baseURL + "/" + u.ShortCode,
		Name:           u.Name,
		ClickCount:     u.Clicks,
		Status:         string(u.Status),
		Flagged:        u.Flagged,
		FlagReason:     u.FlagReason,
		FlagConfidence: u.FlagConfidence,
		CreatedAt:      u.CreatedAt,
	}
	if u.Threat != nil {
		threat := string(*u.Threat)
		resp.Threat = &threat
	}
	if u.FlagCategory != nil {
		category := string(*u.FlagCategory)
		resp.FlagCategory = &category
	}
	if !u.UpdatedAt.IsZero() {
		updated := u.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// NewURLListResponse converts a list of URL entities
func NewURLListResponse(urls []*entities.URL, baseURL string) []URLResponse {
	resp := make([]URLResponse, 0, len(urls))
	for _, u := range urls {
		resp = append(resp, NewURLResponse(u, baseURL))
	}
	return resp
}

// RedirectResponse is the JSON form of a redirect decision.
// OriginalURL is withheld for denied and threat outcomes.
type RedirectResponse struct {
	Outcome     string  `json:"outcome"`
	OriginalURL *string `json:"original_url,omitempty"`
	Reason      *string `json:"reason,omitempty"`
	Threat      *string `json:"threat,omitempty"`
	Clicks      *int64  `json:"clicks,omitempty"`
}

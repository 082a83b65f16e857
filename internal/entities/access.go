package entities

// DenyReason explains why a short code cannot be served
type DenyReason string

const (
	DenyNotFound  DenyReason = "not_found"
	DenySuspended DenyReason = "suspended"
	DenyInactive  DenyReason = "inactive"
)

// RedirectOutcome is what the redirect handler should do with a decision
type RedirectOutcome string

const (
	OutcomeNotFound RedirectOutcome = "not_found"
	OutcomeBlocked  RedirectOutcome = "blocked"
	OutcomeThreat   RedirectOutcome = "threat"
	OutcomeWarning  RedirectOutcome = "warning"
	OutcomeDirect   RedirectOutcome = "direct"
)

// URLSnapshot is the part of a URL record an allow decision carries
type URLSnapshot struct {
	ID          int64   `json:"id"`
	ShortCode   string  `json:"short_code"`
	OriginalURL string  `json:"original_url"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Moderation
}

// AccessDecision is the cached result of resolving a short code.
// It must always be re-derivable from the URL registry.
type AccessDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenyReason   `json:"reason,omitempty"`
	URL     *URLSnapshot `json:"url,omitempty"`
}

// Deny builds a deny decision
func Deny(reason DenyReason) *AccessDecision {
	return &AccessDecision{Reason: reason}
}

// Allow builds an allow decision from a URL record
func Allow(u *URL) *AccessDecision {
	return &AccessDecision{
		Allowed: true,
		URL: &URLSnapshot{
			ID:          u.ID,
			ShortCode:   u.ShortCode,
			OriginalURL: u.OriginalURL,
			OwnerID:     u.UserID,
			Moderation:  u.Moderation,
		},
	}
}

// Outcome classifies the decision for the redirect handler
func (d *AccessDecision) Outcome() RedirectOutcome {
	switch {
	case !d.Allowed && d.Reason == DenyNotFound:
		return OutcomeNotFound
	case !d.Allowed:
		return OutcomeBlocked
	case d.URL.Threat != nil:
		return OutcomeThreat
	case d.URL.Flagged:
		return OutcomeWarning
	default:
		return OutcomeDirect
	}
}

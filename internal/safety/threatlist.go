package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"shortly/internal/entities"
)

// ThreatListChecker looks a URL up in a deterministic threat-intelligence list.
// A nil threat with a nil error means no match.
type ThreatListChecker interface {
	Check(ctx context.Context, url string) (*entities.ThreatType, error)
}

const defaultSafeBrowsingEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

// SafeBrowsingChecker queries the Safe Browsing v4 lookup API
type SafeBrowsingChecker struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// SafeBrowsingOption configures a SafeBrowsingChecker
type SafeBrowsingOption func(*SafeBrowsingChecker)

// WithSafeBrowsingEndpoint overrides the lookup endpoint
func WithSafeBrowsingEndpoint(endpoint string) SafeBrowsingOption {
	return func(c *SafeBrowsingChecker) {
		c.endpoint = endpoint
	}
}

// WithSafeBrowsingClient overrides the HTTP client
func WithSafeBrowsingClient(client *http.Client) SafeBrowsingOption {
	return func(c *SafeBrowsingChecker) {
		c.client = client
	}
}

// NewSafeBrowsingChecker builds a checker. rps caps outbound lookups per second;
// zero or less disables the cap.
func NewSafeBrowsingChecker(apiKey string, rps float64, opts ...SafeBrowsingOption) *SafeBrowsingChecker {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	c := &SafeBrowsingChecker{
		apiKey:   apiKey,
		endpoint: defaultSafeBrowsingEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []entities.ThreatType `json:"threatTypes"`
	PlatformTypes    []string              `json:"platformTypes"`
	ThreatEntryTypes []string              `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry         `json:"threatEntries"`
}

type findRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type findResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// Check returns the first matched threat type, or nil when the URL is clean
func (c *SafeBrowsingChecker) Check(ctx context.Context, url string) (*entities.ThreatType, error) {
	const op = "safety.SafeBrowsingChecker.Check"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var body findRequest
	body.Client.ClientID = "shortly"
	body.Client.ClientVersion = "1.0.0"
	body.ThreatInfo = threatInfo{
		ThreatTypes:      entities.ThreatTypes,
		PlatformTypes:    []string{"ANY_PLATFORM"},
		ThreatEntryTypes: []string{"URL"},
		ThreatEntries:    []threatEntry{{URL: url}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var out findResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(out.Matches) == 0 {
		return nil, nil
	}

	threat := entities.ParseThreatType(out.Matches[0].ThreatType)
	return &threat, nil
}

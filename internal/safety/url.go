package safety

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a submitted URL is not a well-formed absolute http(s) URL
var ErrInvalidURL = errors.New("invalid URL format")

// NormalizeURL returns an absolute URL. The scheme is forced to https unless
// the input already uses http or https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if i := strings.Index(raw, "://"); i >= 0 {
			raw = raw[i+3:]
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", ErrInvalidURL
	}
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") {
		return "", ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	return u.String(), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sethvargo/go-retry"

	"shortly/internal/cache"
	"shortly/internal/entities"
	"shortly/internal/repository"
	"shortly/internal/safety"
)

const (
	shortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	shortCodeLength   = 8
	allocAttempts     = 3
)

var shortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// Reserved short codes that cannot be used
var reservedCodes = map[string]bool{
	"admin":     true,
	"api":       true,
	"www":       true,
	"mail":      true,
	"ftp":       true,
	"localhost": true,
	"health":    true,
	"auth":      true,
	"login":     true,
	"register":  true,
	"signin":    true,
	"signup":    true,
	"signout":   true,
	"logout":    true,
	"shorten":   true,
	"urls":      true,
	"url":       true,
	"stats":     true,
	"analytics": true,
	"redirect":  true,
	"blocked":   true,
	"threat":    true,
	"warning":   true,
	"not-found": true,
	"qrcode":    true,
}

// ValidateShortCode checks a custom short code's format and reserved words
func ValidateShortCode(shortCode string) error {
	if !shortCodePattern.MatchString(shortCode) {
		return ErrInvalidShortCode
	}
	if reservedCodes[strings.ToLower(shortCode)] {
		return ErrReservedShortCode
	}
	return nil
}

// Classifier runs the safety pipeline over a submitted URL
type Classifier interface {
	Classify(ctx context.Context, rawURL string) (string, *safety.Verdict, error)
}

// CreateURLInput is a creation request
type CreateURLInput struct {
	URL       string
	Name      *string
	ShortCode *string
}

// UpdateURLInput is a partial update; nil fields are left alone
type UpdateURLInput struct {
	URL       *string
	Name      *string
	ShortCode *string
}

// URLService handles creation and owner management of short URLs
type URLService struct {
	urls        URLStore
	classifier  Classifier
	cache       cache.Cache
	invalidator *CacheInvalidator
	logger      *slog.Logger
	backoff     func() retry.Backoff
	generate    func() (string, error)
}

// NewURLService creates a new URL service
func NewURLService(urls URLStore, classifier Classifier, c cache.Cache, invalidator *CacheInvalidator, logger *slog.Logger) *URLService {
	return &URLService{
		urls:        urls,
		classifier:  classifier,
		cache:       c,
		invalidator: invalidator,
		logger:      logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(allocAttempts-1, retry.NewConstant(10*time.Millisecond))
		},
		generate: func() (string, error) {
			return gonanoid.Generate(shortCodeAlphabet, shortCodeLength)
		},
	}
}

// Create classifies the URL and stores it with its verdict. A high-confidence
// malicious verdict rejects non-admin callers without storing anything.
// principal is nil for anonymous callers.
func (s *URLService) Create(ctx context.Context, in CreateURLInput, principal *entities.Principal) (*entities.URL, error) {
	const op = "service.URLService.Create"

	var custom string
	if in.ShortCode != nil {
		custom = strings.TrimSpace(*in.ShortCode)
	}
	if custom != "" {
		if err := ValidateShortCode(custom); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	normalized, verdict, err := s.classifier.Classify(ctx, in.URL)
	if err != nil {
		if errors.Is(err, safety.ErrInvalidURL) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if verdict.ShouldBlock(principal.IsAdmin()) {
		s.logger.Warn("blocked malicious url",
			slog.String("url", normalized),
			slog.Float64("confidence", verdict.Confidence),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrBlockedMalicious)
	}

	params := repository.CreateURLParams{
		OriginalURL: normalized,
		Name:        trimmed(in.Name),
		Moderation:  verdict.Moderation(),
	}
	if principal != nil {
		params.UserID = &principal.UserID
	}

	var url *entities.URL
	if custom != "" {
		url, err = s.createCustom(ctx, custom, params)
	} else {
		url, err = s.createGenerated(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// A not_found decision may have been cached for this code before it existed.
	s.invalidator.InvalidateURL(ctx, url.ShortCode)
	s.invalidator.InvalidateUserURLs(ctx, url.UserID)

	if url.Flagged {
		s.logger.Info("url flagged for review",
			slog.String("short_code", url.ShortCode),
			slog.Bool("threat", url.Threat != nil),
		)
	}

	return url, nil
}

func (s *URLService) createCustom(ctx context.Context, code string, params repository.CreateURLParams) (*entities.URL, error) {
	exists, err := s.urls.ExistsShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrShortCodeTaken
	}

	params.ShortCode = code
	url, err := s.urls.Create(ctx, params)
	if errors.Is(err, repository.ErrShortCodeExists) {
		return nil, ErrShortCodeTaken
	}
	return url, err
}

// createGenerated picks random codes until one inserts, within allocAttempts.
// The unique constraint is what actually arbitrates concurrent creations.
func (s *URLService) createGenerated(ctx context.Context, params repository.CreateURLParams) (*entities.URL, error) {
	var url *entities.URL

	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		code, err := s.generate()
		if err != nil {
			return fmt.Errorf("failed to generate short code: %w", err)
		}

		exists, err := s.urls.ExistsShortCode(ctx, code)
		if err != nil {
			return err
		}
		if exists {
			return retry.RetryableError(repository.ErrShortCodeExists)
		}

		params.ShortCode = code
		url, err = s.urls.Create(ctx, params)
		if errors.Is(err, repository.ErrShortCodeExists) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, repository.ErrShortCodeExists) {
		return nil, ErrCodeAllocation
	}
	if err != nil {
		return nil, err
	}

	return url, nil
}

// List returns a user's URLs through the user-urls cache
func (s *URLService) List(ctx context.Context, userID string) ([]*entities.URL, error) {
	const op = "service.URLService.List"

	key := cache.UserURLsKey(userID)

	var urls []*entities.URL
	err := s.cache.GetJSON(ctx, key, &urls)
	switch {
	case err == nil:
		return urls, nil
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn("user urls cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	urls, err = s.urls.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.SetJSON(ctx, key, urls, cache.UserURLsTTL); err != nil {
		s.logger.Warn("user urls cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return urls, nil
}

// Get returns one URL. Non-admins only see their own; anything else is ErrNotFound.
func (s *URLService) Get(ctx context.Context, shortCode string, principal *entities.Principal) (*entities.URL, error) {
	const op = "service.URLService.Get"

	owner, err := ownerFilter(principal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.urls.GetStats(ctx, shortCode, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return url, nil
}

// Update renames a URL, changes its destination or its name. A destination
// change runs the safety pipeline again and replaces the stored verdict.
func (s *URLService) Update(ctx context.Context, shortCode string, in UpdateURLInput, principal *entities.Principal) (*entities.URL, error) {
	const op = "service.URLService.Update"

	owner, err := ownerFilter(principal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Ownership first so a non-owner never reaches the classifier or the cache
	if _, err := s.urls.GetStats(ctx, shortCode, owner); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	patch := repository.URLPatch{Name: trimmed(in.Name)}
	codes := []string{shortCode}

	if in.ShortCode != nil {
		newCode := strings.TrimSpace(*in.ShortCode)
		if newCode != shortCode {
			if err := ValidateShortCode(newCode); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			exists, err := s.urls.ExistsShortCode(ctx, newCode)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			if exists {
				return nil, fmt.Errorf("%s: %w", op, ErrShortCodeTaken)
			}
			patch.ShortCode = &newCode
			codes = append(codes, newCode)
		}
	}

	if in.URL != nil {
		normalized, verdict, err := s.classifier.Classify(ctx, *in.URL)
		if err != nil {
			if errors.Is(err, safety.ErrInvalidURL) {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if verdict.ShouldBlock(principal.IsAdmin()) {
			return nil, fmt.Errorf("%s: %w", op, ErrBlockedMalicious)
		}
		moderation := verdict.Moderation()
		patch.OriginalURL = &normalized
		patch.Moderation = &moderation
	}

	url, err := s.urls.Update(ctx, shortCode, owner, patch)
	if err != nil {
		if errors.Is(err, repository.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	s.invalidator.InvalidateURL(ctx, codes...)
	s.invalidator.InvalidateUserURLs(ctx, url.UserID)

	return url, nil
}

// Delete removes a URL owned by the caller (any URL for admins)
func (s *URLService) Delete(ctx context.Context, shortCode string, principal *entities.Principal) error {
	const op = "service.URLService.Delete"

	owner, err := ownerFilter(principal)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.urls.Delete(ctx, shortCode, owner)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}

	s.invalidator.InvalidateURL(ctx, shortCode)
	s.invalidator.InvalidateUserURLs(ctx, url.UserID)

	return nil
}

// ownerFilter restricts storage queries to the caller's rows unless they are an admin
func ownerFilter(p *entities.Principal) (*string, error) {
	switch {
	case p == nil:
		return nil, ErrForbidden
	case p.IsAdmin():
		return nil, nil
	}
	return &p.UserID, nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrURLNotFound) {
		return ErrNotFound
	}
	return err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

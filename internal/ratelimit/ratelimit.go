// Package ratelimit implements fixed-window request counters keyed by
// limiter name and caller identity.
//
// A window starts at a wall-clock boundary that is a multiple of the policy's
// window duration (counted from the Unix epoch), so every caller's quota
// resets at the same instants. The counter key embeds the window start and
// expires with the window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Limiter names used by the HTTP layer
const (
	Auth   = "auth"
	Create = "create"
	Modify = "modify"
	Click  = "click"
)

// ErrUnknownLimiter is returned by Check for a limiter name with no policy
var ErrUnknownLimiter = errors.New("unknown limiter")

// Policy is a fixed capacity per fixed window
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicies are the static limits of the service
var DefaultPolicies = map[string]Policy{
	Auth:   {Limit: 5, Window: 2 * time.Minute},
	Modify: {Limit: 10, Window: time.Minute},
	Click:  {Limit: 100, Window: time.Minute},
	Create: {Limit: 5, Window: time.Minute},
}

// Store atomically increments the counter at key and returns the new value.
// The key must expire after ttl counted from its first increment.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Result is the outcome of one Check
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithBypass disables enforcement. Every Check is allowed and a warning is
// logged once when the limiter is built. Meant for development and tests only.
func WithBypass(bypass bool) Option {
	return func(l *Limiter) {
		l.bypass = bypass
	}
}

// Limiter checks named fixed-window policies against a Store
type Limiter struct {
	store    Store
	policies map[string]Policy
	bypass   bool
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Limiter
func New(store Store, policies map[string]Policy, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		policies: policies,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.bypass {
		l.logger.Warn("rate limiting is DISABLED by configuration (rate_limit.disabled=true)")
	}

	return l
}

// Now returns the limiter's current time
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Check counts one hit for identity against the named policy.
// A store failure is logged and the hit is allowed.
func (l *Limiter) Check(ctx context.Context, name, identity string) (Result, error) {
	const op = "ratelimit.Limiter.Check"

	p, ok := l.policies[name]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownLimiter, name)
	}

	now := l.now()
	start := windowStart(now, p.Window)
	resetAt := start.Add(p.Window)

	if l.bypass {
		return Result{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAt: resetAt}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s:%d", name, identity, start.Unix())

	count, err := l.store.Incr(ctx, key, resetAt.Sub(now))
	if err != nil {
		l.logger.Error("rate limit store unavailable, allowing request",
			slog.String("op", op),
			slog.String("limiter", name),
			slog.Any("err", err),
		)
		return Result{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAt: resetAt}, nil
	}

	remaining := p.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(p.Limit),
		Limit:     p.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func windowStart(now time.Time, window time.Duration) time.Time {
	w := window.Nanoseconds()
	return time.Unix(0, now.UnixNano()/w*w).UTC()
}

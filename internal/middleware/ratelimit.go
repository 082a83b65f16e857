package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httplog/v2"

	"shortly/internal/ratelimit"
)

// RateLimiter applies named fixed-window limits to routes
type RateLimiter struct {
	limiter *ratelimit.Limiter
}

// NewRateLimiter creates a new rate limiter middleware factory
func NewRateLimiter(limiter *ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{limiter: limiter}
}

// LimitMiddleware returns a Gin middleware that counts each request against
// the named limiter. Authenticated callers are counted per user, others per IP,
// so it should run after the auth middleware of the route.
func (rl *RateLimiter) LimitMiddleware(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rl.limiter.Check(c.Request.Context(), name, Identity(c))
		if err != nil {
			httplog.LogEntrySetFields(c.Request.Context(), map[string]any{"op": "middleware.LimitMiddleware", "err": err})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := math.Ceil(res.RetryAfter(rl.limiter.Now()).Seconds())
			c.Header("Retry-After", strconv.Itoa(int(retryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

// Identity is the rate-limit identity of the caller
func Identity(c *gin.Context) string {
	if p := Principal(c); p != nil {
		return "user:" + p.UserID
	}
	return "ip:" + c.ClientIP()
}

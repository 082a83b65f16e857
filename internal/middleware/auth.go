package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httplog/v2"

	"shortly/internal/entities"
	"shortly/internal/jwt"
	"shortly/internal/service"
)

// Context keys set by the auth middleware
const (
	UserIDKey    = "user_id"
	principalKey = "principal"
)

// TokenValidator parses bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// StateReader returns the live state of an active account
type StateReader interface {
	ActiveState(ctx context.Context, userID string) (*entities.UserState, error)
}

// AuthMiddleware rejects requests without a valid token for an active account.
// The role comes from the live account state, not from the token.
func AuthMiddleware(tokens TokenValidator, users StateReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		principal, err := authenticate(c, tokens, users, token)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrInvalidToken):
				abortUnauthorized(c, "Invalid or expired token")
			case errors.Is(err, service.ErrAccountDisabled), errors.Is(err, service.ErrNotFound):
				abortUnauthorized(c, "Account is not active")
			default:
				httplog.LogEntrySetFields(c.Request.Context(), map[string]any{"op": "middleware.AuthMiddleware", "err": err})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuth attaches a principal when the request carries a valid token for
// an active account and lets every request through.
func OptionalAuth(tokens TokenValidator, users StateReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if principal, err := authenticate(c, tokens, users, token); err == nil {
				setPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Principal(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller, or nil for anonymous requests
func Principal(c *gin.Context) *entities.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*entities.Principal)
	return p
}

func authenticate(c *gin.Context, tokens TokenValidator, users StateReader, token string) (*entities.Principal, error) {
	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	state, err := users.ActiveState(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, err
	}

	return &entities.Principal{UserID: claims.UserID, Role: state.Role}, nil
}

func setPrincipal(c *gin.Context, p *entities.Principal) {
	c.Set(principalKey, p)
	c.Set(UserIDKey, p.UserID)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

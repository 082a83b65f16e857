package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortly/internal/entities"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	user := &entities.User{ID: "u-1", Email: "a@example.com", Role: entities.RoleAdmin}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, entities.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	user := &entities.User{ID: "u-1", Email: "a@example.com", Role: entities.RoleUser}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTService("other", time.Hour).GenerateToken(user)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateToken(user)
		require.NoError(t, err)

		late := NewJWTService("secret", time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err = late.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "u-1"}).
			SignedString(jwtlib.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

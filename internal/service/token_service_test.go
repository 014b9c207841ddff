package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-api/internal/repository/memstore"
)

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService(" ", time.Minute, time.Hour, memstore.NewTokenStore())
	require.Error(t, err)

	_, err = NewTokenService("s", 0, time.Hour, memstore.NewTokenStore())
	require.Error(t, err)
}

func TestIssuePersistsRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewTokenStore()
	tokens, err := NewTokenService(testSecret, time.Minute, time.Hour, store)
	require.NoError(t, err)

	pair, err := tokens.Issue(ctx, "user-1")
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	stored, err := store.Find(ctx, claims.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.True(t, stored.Active(time.Now()))
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	tokens, err := NewTokenService(testSecret, time.Minute, time.Hour, memstore.NewTokenStore())
	require.NoError(t, err)

	pair, err := tokens.Issue(ctx, "user-1")
	require.NoError(t, err)

	t.Run("wrong type", func(t *testing.T) {
		_, err := tokens.ValidateToken(pair.Refresh, TokenTypeAccess)
		requireAPIError(t, err, http.StatusUnauthorized, "Token has wrong type")
	})

	t.Run("expired", func(t *testing.T) {
		later := *tokens
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := later.ValidateToken(pair.Access, TokenTypeAccess)
		requireAPIError(t, err, http.StatusUnauthorized, "Token is invalid or expired")
	})

	t.Run("foreign signature", func(t *testing.T) {
		other, err := NewTokenService("another-secret", time.Minute, time.Hour, memstore.NewTokenStore())
		require.NoError(t, err)
		_, err = other.ValidateToken(pair.Access, TokenTypeAccess)
		requireAPIError(t, err, http.StatusUnauthorized, "Token is invalid or expired")
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "user-1", "typ": "access", "jti": "x", "exp": time.Now().Add(time.Minute).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.ValidateToken(raw, TokenTypeAccess)
		requireAPIError(t, err, http.StatusUnauthorized, "")
	})
}

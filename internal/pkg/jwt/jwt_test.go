package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manager = auth.Claims{UserID: "user-1", CompanyID: "co-1", Role: auth.RoleManager}

func TestSSEToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret")

	token, expiresIn, err := svc.GenerateSSEToken(manager)
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	claims, err := svc.ValidateSSEToken(token)
	require.NoError(t, err)
	assert.Equal(t, manager, claims)
}

func TestValidateSSEToken_RejectsAccessTokens(t *testing.T) {
	svc := NewJWTService("secret")

	token, _, err := svc.GenerateAccessToken(manager, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateSSEToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateSSEToken_RejectsForeignSignature(t *testing.T) {
	token, _, err := NewJWTService("other").GenerateSSEToken(manager)
	require.NoError(t, err)

	_, err = NewJWTService("secret").ValidateSSEToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateSSEToken_RejectsRevoked(t *testing.T) {
	svc := NewJWTService("secret")
	token, _, err := svc.GenerateSSEToken(manager)
	require.NoError(t, err)

	svc.RevokeToken(token)
	assert.True(t, svc.IsTokenRevoked(token))

	_, err = svc.ValidateSSEToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}

func TestAccessToken_DecodesWithJWTAuth(t *testing.T) {
	svc := NewJWTService("secret")
	token, expiresAt, err := svc.GenerateAccessToken(manager, time.Hour)
	require.NoError(t, err)
	assert.Greater(t, expiresAt, time.Now().Unix())

	decoded, err := jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)
	raw, err := decoded.AsMap(context.Background())
	require.NoError(t, err)

	claims, err := svc.ClaimsFromMap(raw)
	require.NoError(t, err)
	assert.Equal(t, manager, claims)
	assert.Equal(t, TokenTypeAccess, raw["type"])
}

func TestClaimsFromMap_RequiresUser(t *testing.T) {
	_, err := NewJWTService("secret").ClaimsFromMap(map[string]interface{}{"role": "owner"})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

package identity_test

import (
	"testing"
	"time"

	identity "github.com/dztabib/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() *identity.SimpleConfig {
	cfg := identity.NewConfig("access-signing-key", "refresh-signing-key")
	cfg.Issuer = "dztabib"
	cfg.Audience = []string{"dztabib-clients"}
	return cfg
}

func TestTokenService_IssuePair(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	id := testIdentity{
		id:        "acc-123",
		username:  "amine",
		email:     "amine@example.com",
		role:      identity.RoleDoctor,
		profileID: "doc-456",
	}

	pair, err := service.IssuePair(id)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	// lifetimes: 1 hour access, 15 day refresh
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(15*24*time.Hour), pair.RefreshExpiresAt, 5*time.Second)

	claims, err := service.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-123", claims.AccountID())
	assert.Equal(t, identity.RoleDoctor, claims.Role())
	assert.Equal(t, "doc-456", claims.ProfileID())
	assert.True(t, claims.HasRole(identity.RoleDoctor))
	assert.False(t, claims.HasRole(identity.RolePatient))

	refreshClaims, err := service.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-123", refreshClaims.AccountID())
}

func TestTokenService_DistinctSecrets(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	pair, err := service.IssuePair(testIdentity{id: "acc-123", role: identity.RolePatient})
	require.NoError(t, err)

	// neither token verifies under the other secret
	_, err = service.VerifyAccess(pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, identity.IsMalformedError(err), "expected signature failure, got: %v", err)

	_, err = service.VerifyRefresh(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, identity.IsMalformedError(err), "expected signature failure, got: %v", err)
}

func TestTokenService_RejectsNilIdentity(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	_, err := service.IssuePair(nil)
	assert.Error(t, err)
}

func TestTokenService_Rotate(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	id := testIdentity{
		id:        "acc-123",
		role:      identity.RolePatient,
		profileID: "pat-789",
	}

	pair, err := service.IssuePair(id)
	require.NoError(t, err)

	rotated, err := service.Rotate(pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, rotated)

	// the refresh token rides along untouched
	assert.Equal(t, pair.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, pair.RefreshExpiresAt.Unix(), rotated.RefreshExpiresAt.Unix())

	// the new access token carries the same identity claims
	claims, err := service.VerifyAccess(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-123", claims.AccountID())
	assert.Equal(t, identity.RolePatient, claims.Role())
	assert.Equal(t, "pat-789", claims.ProfileID())
}

func TestTokenService_RotateRejectsAccessToken(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	pair, err := service.IssuePair(testIdentity{id: "acc-123", role: identity.RolePatient})
	require.NoError(t, err)

	_, err = service.Rotate(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, identity.IsMalformedError(err))
}

func TestTokenService_ExpiredToken(t *testing.T) {
	cfg := testTokenConfig()
	service := identity.NewTokenService(cfg, nil)

	// sign an already expired token with the access secret
	claims := &identity.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   "acc-123",
			Audience:  jwt.ClaimStrings(cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
		},
		UID:      "acc-123",
		UserRole: identity.RolePatient,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.AccessSigningKey))
	require.NoError(t, err)

	_, err = service.VerifyAccess(signed)
	require.Error(t, err)
	assert.True(t, identity.IsTokenExpiredError(err))
}

func TestTokenService_VerifyRejectsGarbage(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	_, err := service.VerifyAccess("not.a.token")
	require.Error(t, err)
	assert.True(t, identity.IsMalformedError(err))
}

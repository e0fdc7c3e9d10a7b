package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface. Access and
// refresh tokens are signed with distinct secrets so neither can stand in
// for the other.
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		accessKey:  []byte(cfg.GetAccessSigningKey()),
		refreshKey: []byte(cfg.GetRefreshSigningKey()),
		accessTTL:  time.Duration(cfg.GetAccessTokenExpiration()) * time.Hour,
		refreshTTL: time.Duration(cfg.GetRefreshTokenExpiration()) * 24 * time.Hour,
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		logger:     logger,
	}
}

// IssuePair signs a fresh access/refresh pair for the given identity
func (ts *TokenServiceImpl) IssuePair(identity Identity) (*TokenPair, error) {
	if identity == nil {
		return nil, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := time.Now()

	accessClaims := ts.claimsFor(identity, now, ts.accessTTL)
	access, err := ts.signClaims(accessClaims, ts.accessKey)
	if err != nil {
		return nil, err
	}

	refreshClaims := ts.claimsFor(identity, now, ts.refreshTTL)
	refresh, err := ts.signClaims(refreshClaims, ts.refreshKey)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// VerifyAccess parses and validates an access token, returning structured claims
func (ts *TokenServiceImpl) VerifyAccess(token string) (AuthClaims, error) {
	return ts.validate(token, ts.accessKey)
}

// VerifyRefresh parses and validates a refresh token, returning structured claims
func (ts *TokenServiceImpl) VerifyRefresh(token string) (AuthClaims, error) {
	return ts.validate(token, ts.refreshKey)
}

// Rotate verifies the refresh token and re-signs a new access token with
// the same identity claims. The refresh token rides along unchanged, its
// original expiry intact.
func (ts *TokenServiceImpl) Rotate(refreshToken string) (*TokenPair, error) {
	claims, err := ts.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	accessClaims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   claims.Subject(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
		UID:      claims.AccountID(),
		UserRole: claims.Role(),
		Profile:  claims.ProfileID(),
	}
	ensureTokenID(&accessClaims.RegisteredClaims)

	access, err := ts.signClaims(accessClaims, ts.accessKey)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: claims.Expires(),
	}, nil
}

func (ts *TokenServiceImpl) claimsFor(identity Identity, now time.Time, ttl time.Duration) *JWTClaims {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		Profile:  identity.ProfileID(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) validate(tokenString string, key []byte) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

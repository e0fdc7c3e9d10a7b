package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
	// ProfileID returns the doctor or patient row identifier for the
	// account, or the empty string for roles without a profile row.
	ProfileID() string
}

// Session holds attributes decoded from a verified access token
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// TokenPair carries the two signed tokens produced at login. The access
// token authorizes requests, the refresh token only mints replacements.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService signs and verifies the access/refresh token pair
type TokenService interface {
	IssuePair(identity Identity) (*TokenPair, error)
	VerifyAccess(token string) (AuthClaims, error)
	VerifyRefresh(token string) (AuthClaims, error)
	// Rotate verifies the refresh token and re-signs a fresh access token
	// carrying the same identity claims. The refresh token is returned
	// untouched.
	Rotate(refreshToken string) (*TokenPair, error)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*TokenPair, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	Refresh(c router.Context) error
	Logout(c router.Context)
}

// Config holds token and cookie options
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	// GetAccessTokenExpiration is the access token lifetime in hours
	GetAccessTokenExpiration() int
	// GetRefreshTokenExpiration is the refresh token lifetime in days
	GetRefreshTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers reset codes and account notices out of band
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

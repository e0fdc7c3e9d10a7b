package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents verified JWT claims for an account. Authorization
// decisions read these claims as issued; a role or suspension change after
// signing is not visible until the token expires.
type AuthClaims interface {
	Subject() string
	AccountID() string
	Role() string
	ProfileID() string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	// Profile is the single "pid" claim holding the profile row id bound
	// to the account. The role claim says which table it points at: a
	// doctor row for doctors, a patient row for patients. Admins carry
	// no profile and the claim is omitted.
	Profile string `json:"pid,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account identifier
func (c *JWTClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// ProfileID returns the doctor or patient row id, empty for admins
func (c *JWTClaims) ProfileID() string {
	return c.Profile
}

// HasRole checks if the claims carry the given role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// HasAnyRole checks membership against a set of allowed roles
func (c *JWTClaims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.UserRole == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// HasRole checks the role recorded in the session data.
func (s *SessionObject) HasRole(role string) bool {
	return s.role() == role
}

// ProfileID returns the doctor or patient row id carried by the session.
func (s *SessionObject) ProfileID() string {
	if s.Data == nil {
		return ""
	}
	if pid, ok := s.Data["profile_id"].(string); ok {
		return pid
	}
	return ""
}

func (s *SessionObject) role() string {
	if s.Data == nil {
		return ""
	}
	if role, ok := s.Data["role"].(string); ok {
		return role
	}
	return ""
}

// TODO: enable only in development!
func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromAuthClaims creates a SessionObject from verified claims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	data := make(map[string]any)
	data["role"] = claims.Role()
	if claims.ProfileID() != "" {
		data["profile_id"] = claims.ProfileID()
	}

	var audience []string
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.AccountID(),
		Audience:       audience,
		Issuer:         issuerFromClaims(claims),
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

func issuerFromClaims(claims AuthClaims) string {
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if jwtClaims.RegisteredClaims.Issuer != "" {
			return jwtClaims.RegisteredClaims.Issuer
		}
	}
	return claims.Subject()
}

package identity

import (
	"context"
	"reflect"
	"time"
)

type Auther struct {
	provider     IdentityProvider
	logger       Logger
	tokenService TokenService
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	return &Auther{
		provider:     provider,
		logger:       defLogger{},
		tokenService: NewTokenService(opts, defLogger{}),
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service, mostly useful in tests.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and issues a fresh access/refresh pair.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrAccountNotFound.Message,
		})
		return nil, ErrAccountNotFound
	}

	pair, err := s.tokenService.IssuePair(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh verifies the refresh token and re-issues the access token.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.tokenService.Rotate(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token rotation failed: %v", err)
		return nil, err
	}

	claims, _ := s.tokenService.VerifyRefresh(refreshToken)
	accountID := ""
	if claims != nil {
		accountID = claims.AccountID()
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, ActorRef{ID: accountID, Type: "user"}, accountID, nil)

	return pair, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())

	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

// SessionFromToken validates an access token and maps its claims to a Session.
func (s Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.VerifyAccess(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

var _ Authenticator = (*Auther)(nil)

package jwtware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup       = "cookie:accesstoken"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator interface for validating tokens without import cycles
type TokenValidator interface {
	VerifyAccess(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles.
// This mirrors the AuthClaims interface from the identity package.
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

// ValidationListener is invoked after a token has been validated but before authorization checks.
type ValidationListener func(ctx router.Context, claims AuthClaims) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	SigningKey     SigningKey
	ContextKey     string
	TokenLookup    string
	AuthScheme     string

	// TokenValidator overrides local parsing; when nil the middleware
	// parses and verifies the token itself with SigningKey.
	TokenValidator TokenValidator

	// RequiredRoles, when set, rejects validated tokens whose role is not
	// a member of the set.
	RequiredRoles []string

	// ContextEnricher is an optional function to propagate claims to the standard
	// Go context. If provided, it will be called after successful token validation.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners are invoked after token validation succeeds. Use them to
	// emit events or perform bookkeeping before the request proceeds.
	ValidationListeners []ValidationListener
}

type SigningKey struct {
	JWTAlg string
	Key    any
}

func New(config ...Config) router.HandlerFunc {
	cfg := GetDefaultConfig(config...)
	return func(ctx router.Context) error {
		if cfg.Filter != nil && cfg.Filter(ctx) {
			return ctx.Next()
		}

		raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
		if err != nil {
			return cfg.ErrorHandler(ctx, err)
		}

		claims, err := cfg.validate(raw)
		if err != nil {
			return cfg.ErrorHandler(ctx, err)
		}

		if err := cfg.runValidationListeners(ctx, claims); err != nil {
			return cfg.ErrorHandler(ctx, err)
		}

		if len(cfg.RequiredRoles) > 0 && !claims.HasAnyRole(cfg.RequiredRoles...) {
			return cfg.ErrorHandler(ctx, fmt.Errorf("access denied: role %q is not allowed", claims.Role()))
		}

		ctx.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			stdCtx := ctx.Context()
			stdCtxWithClaims := cfg.ContextEnricher(stdCtx, claims)
			ctx.SetContext(stdCtxWithClaims)
		}

		return cfg.SuccessHandler(ctx)
	}
}

// tokenClaims is the local claims shape parsed when no TokenValidator is
// configured. It mirrors the identity package's JWT payload.
type tokenClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Profile  string `json:"pid,omitempty"`
}

func (c *tokenClaims) Subject() string { return c.RegisteredClaims.Subject }

func (c *tokenClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

func (c *tokenClaims) Role() string { return c.UserRole }

func (c *tokenClaims) ProfileID() string { return c.Profile }

func (c *tokenClaims) HasRole(role string) bool { return c.UserRole == role }

func (c *tokenClaims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.UserRole == role {
			return true
		}
	}
	return false
}

func (c *tokenClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

func (c *tokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func (cfg *Config) validate(raw string) (AuthClaims, error) {
	if cfg.TokenValidator != nil {
		return cfg.TokenValidator.VerifyAccess(raw)
	}

	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, signingKeyFunc(cfg.SigningKey))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrJWTMissingOrMalformed
	}

	return claims, nil
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if err.Error() == ErrJWTMissingOrMalformed.Error() {
				return c.Status(router.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil && cfg.SigningKey.Key == nil {
		panic("IDENTITY: JWT middleware configuration: one of TokenValidator or SigningKey is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// cookie:accesstoken,header:Authorization,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			fmt.Println("[WARNING] Missing auth scheme in config definition")
			return "", ErrJWTMissingOrMalformed
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func signingKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg != "" {
			alg, ok := token.Header["alg"].(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing json type", key.JWTAlg)
			}
			if alg != key.JWTAlg {
				return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
			}
		}
		return key.Key, nil
	}
}

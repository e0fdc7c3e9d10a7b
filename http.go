package identity

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/dztabib/identity/middleware/jwtware"
)

// Cookie names are an externally observed contract; clients and reverse
// proxies depend on them.
const (
	AccessTokenCookie  = "accesstoken"
	RefreshTokenCookie = "refreshtoken"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

type RouteAuthenticator struct {
	auth                  *Auther
	cfg                   Config
	accessCookieDuration  time.Duration
	refreshCookieDuration time.Duration
	Logger                Logger
	ErrorHandler          func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	accessCookieDuration := time.Hour
	if cfg.GetAccessTokenExpiration() > 0 {
		accessCookieDuration = time.Duration(cfg.GetAccessTokenExpiration()) * time.Hour
	}

	refreshCookieDuration := 15 * 24 * time.Hour
	if cfg.GetRefreshTokenExpiration() > 0 {
		refreshCookieDuration = time.Duration(cfg.GetRefreshTokenExpiration()) * 24 * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                   cfg,
		auth:                  auther,
		Logger:                defLogger{},
		accessCookieDuration:  accessCookieDuration,
		refreshCookieDuration: refreshCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetAccessCookieDuration() time.Duration {
	return a.accessCookieDuration
}

func (a RouteAuthenticator) GetRefreshCookieDuration() time.Duration {
	return a.refreshCookieDuration
}

// ProtectedRoute verifies the access token cookie and attaches its claims to
// the request before the handler runs.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetAccessSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:  cfg.GetAuthScheme(),
			ContextKey:  cfg.GetContextKey(),
			TokenLookup: cfg.GetTokenLookup(),
		})
	}
}

// Login authenticates the payload and delivers both tokens as cookies.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	pair, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	a.setTokenCookie(ctx, AccessTokenCookie, pair.AccessToken, a.accessCookieDuration)
	a.setTokenCookie(ctx, RefreshTokenCookie, pair.RefreshToken, a.refreshCookieDuration)
	return nil
}

// Refresh reads the refresh token cookie and re-issues the access cookie.
// The refresh cookie itself is left in place with its original expiry.
func (a *RouteAuthenticator) Refresh(ctx router.Context) error {
	refreshToken := ctx.Cookies(RefreshTokenCookie)
	if refreshToken == "" {
		return ErrTokenMissing.WithMetadata(map[string]any{
			"cookie": RefreshTokenCookie,
		})
	}

	pair, err := a.auth.Refresh(ctx.Context(), refreshToken)
	if err != nil {
		a.Logger.Error("Refresh error: %s", err)
		return err
	}

	a.setTokenCookie(ctx, AccessTokenCookie, pair.AccessToken, a.accessCookieDuration)
	return nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, AccessTokenCookie)
	a.cookieDel(ctx, RefreshTokenCookie)
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setTokenCookie(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler error=%s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(richErr.Code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

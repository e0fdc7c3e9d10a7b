package identity

// SimpleConfig is a plain-struct Config implementation with the defaults the
// subsystem ships with: 1 hour access tokens, 15 day refresh tokens, cookie
// transport.
type SimpleConfig struct {
	AccessSigningKey       string
	RefreshSigningKey      string
	SigningMethod          string
	ContextKey             string
	AccessTokenExpiration  int
	RefreshTokenExpiration int
	TokenLookup            string
	AuthScheme             string
	Issuer                 string
	Audience               []string
}

// NewConfig builds a SimpleConfig with defaults for everything but the keys.
func NewConfig(accessKey, refreshKey string) *SimpleConfig {
	return &SimpleConfig{
		AccessSigningKey:       accessKey,
		RefreshSigningKey:      refreshKey,
		SigningMethod:          "HS256",
		ContextKey:             "user",
		AccessTokenExpiration:  1,
		RefreshTokenExpiration: 15,
		TokenLookup:            "cookie:" + AccessTokenCookie,
		AuthScheme:             "Bearer",
	}
}

func (c *SimpleConfig) GetAccessSigningKey() string    { return c.AccessSigningKey }
func (c *SimpleConfig) GetRefreshSigningKey() string   { return c.RefreshSigningKey }
func (c *SimpleConfig) GetSigningMethod() string       { return c.SigningMethod }
func (c *SimpleConfig) GetContextKey() string          { return c.ContextKey }
func (c *SimpleConfig) GetAccessTokenExpiration() int  { return c.AccessTokenExpiration }
func (c *SimpleConfig) GetRefreshTokenExpiration() int { return c.RefreshTokenExpiration }
func (c *SimpleConfig) GetTokenLookup() string         { return c.TokenLookup }
func (c *SimpleConfig) GetAuthScheme() string          { return c.AuthScheme }
func (c *SimpleConfig) GetIssuer() string              { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string          { return c.Audience }

var _ Config = (*SimpleConfig)(nil)

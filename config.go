package kvoauth

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/session"
	"github.com/giantswarm/kv-oauth/storage"
)

const (
	// DefaultRedirectURL is where the browser lands after sign-in, sign-out
	// or a failed callback unless configured otherwise
	DefaultRedirectURL = "/"

	// DefaultSignInRate is sign-in requests per second allowed per client IP
	DefaultSignInRate = 1.0

	// DefaultSignInBurst is the sign-in burst allowed per client IP
	DefaultSignInBurst = 10
)

// Config holds the handler configuration
type Config struct {
	// Providers lists the identity providers users can sign in with.
	// At least one is required.
	Providers []providers.ProviderConfig

	// SuccessRedirectURL is where a completed sign-in lands (default "/")
	SuccessRedirectURL string

	// ErrorRedirectURL is where a rejected callback lands, with a generic
	// error code appended as the "error" query parameter (default "/")
	ErrorRedirectURL string

	// SignOutRedirectURL is where sign-out lands when the caller passes no
	// explicit target (default "/")
	SignOutRedirectURL string

	// Cookie settings for the session cookie
	Cookie CookieConfig

	// Rate limiting of sign-in requests
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// TransactionTTL is how long a sign-in may wait for its callback.
	// Default: 10 minutes
	TransactionTTL time.Duration

	// TokenTTL expires stored tokens. Zero keeps them until sign-out.
	TokenTTL time.Duration

	// ExchangeTimeout bounds the code exchange with the provider.
	// Default: 30 seconds
	ExchangeTimeout time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// CookieConfig holds session cookie settings
type CookieConfig struct {
	// Name is the base cookie name. On secure transport the "__Host-"
	// prefix is added. Default: "site-session"
	Name string

	// MaxAge of the session cookie. Zero makes it a browser-session cookie.
	MaxAge time.Duration
}

// RateLimitConfig holds sign-in rate limiting configuration
type RateLimitConfig struct {
	// Rate is sign-in requests per second allowed per IP. Negative disables
	// limiting; zero uses DefaultSignInRate.
	Rate float64

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// MaxEntries caps the number of tracked IPs.
	MaxEntries int
}

// SecurityConfig holds security settings (secure by default)
type SecurityConfig struct {
	// TrustProxy enables trusting X-Forwarded-For and X-Forwarded-Proto.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of proxies in front of the server
	// when TrustProxy is set.
	TrustedProxyCount int

	// EncryptionKey is the AES-256 key (32 bytes) for token encryption at
	// rest. Takes precedence over EncryptionSecret.
	EncryptionKey []byte

	// EncryptionSecret derives the encryption key with HKDF when
	// EncryptionKey is empty. Both empty disables encryption.
	EncryptionSecret string

	// EnableAuditLogging enables security audit logging (identifiers hashed)
	EnableAuditLogging bool
}

// applyDefaults fills unset values
func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.SuccessRedirectURL == "" {
		c.SuccessRedirectURL = DefaultRedirectURL
	}
	if c.ErrorRedirectURL == "" {
		c.ErrorRedirectURL = DefaultRedirectURL
	}
	if c.SignOutRedirectURL == "" {
		c.SignOutRedirectURL = DefaultRedirectURL
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = session.DefaultCookieName
	}
	if c.RateLimit.Rate == 0 {
		c.RateLimit.Rate = DefaultSignInRate
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultSignInBurst
	}
	if c.RateLimit.MaxEntries <= 0 {
		c.RateLimit.MaxEntries = security.DefaultMaxLimiters
	}
	if c.TransactionTTL <= 0 {
		c.TransactionTTL = storage.DefaultTransactionTTL
	}
}

// Validate checks the configuration after defaults are applied
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[providers.Kind]bool, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Kind] {
			return fmt.Errorf("provider %q configured twice", p.Kind)
		}
		seen[p.Kind] = true
	}
	return c.validateSettings()
}

// validateSettings checks everything except the provider list
func (c *Config) validateSettings() error {
	if strings.ContainsAny(c.Cookie.Name, "=;, \t") {
		return fmt.Errorf("invalid cookie name %q", c.Cookie.Name)
	}
	if c.Cookie.Name == session.FlowCookieName {
		return fmt.Errorf("cookie name %q is reserved for the sign-in flow", c.Cookie.Name)
	}

	for name, target := range map[string]string{
		"success redirect URL":  c.SuccessRedirectURL,
		"error redirect URL":    c.ErrorRedirectURL,
		"sign-out redirect URL": c.SignOutRedirectURL,
	} {
		if _, err := url.Parse(target); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if len(c.Security.EncryptionKey) > 0 && len(c.Security.EncryptionKey) != security.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", security.KeySize, len(c.Security.EncryptionKey))
	}
	if c.Security.TrustedProxyCount < 0 {
		return fmt.Errorf("trusted proxy count cannot be negative")
	}
	return nil
}

// configEnv holds raw env values. A provider is configured when its client
// ID is set.
type configEnv struct {
	DiscordClientID     string   `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string   `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string   `env:"DISCORD_REDIRECT_URI"`
	DiscordScopes       []string `env:"DISCORD_SCOPES"         envSeparator:"," envDefault:"identify,email"`
	GitHubClientID      string   `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret  string   `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI   string   `env:"GITHUB_REDIRECT_URI"`
	GitHubScopes        []string `env:"GITHUB_SCOPES"          envSeparator:","`
	GoogleClientID      string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI   string   `env:"GOOGLE_REDIRECT_URI"`
	GoogleScopes        []string `env:"GOOGLE_SCOPES"          envSeparator:"," envDefault:"openid,email,profile"`

	SuccessRedirectURL string `env:"KV_OAUTH_SUCCESS_REDIRECT_URL"`
	ErrorRedirectURL   string `env:"KV_OAUTH_ERROR_REDIRECT_URL"`
	SignOutRedirectURL string `env:"KV_OAUTH_SIGNOUT_REDIRECT_URL"`

	CookieName   string        `env:"KV_OAUTH_COOKIE_NAME"`
	CookieMaxAge time.Duration `env:"KV_OAUTH_COOKIE_MAX_AGE"`

	TransactionTTL  time.Duration `env:"KV_OAUTH_TRANSACTION_TTL" envDefault:"10m"`
	TokenTTL        time.Duration `env:"KV_OAUTH_TOKEN_TTL"`
	ExchangeTimeout time.Duration `env:"KV_OAUTH_EXCHANGE_TIMEOUT" envDefault:"30s"`

	RateLimit      float64 `env:"KV_OAUTH_SIGNIN_RATE"`
	RateLimitBurst int     `env:"KV_OAUTH_SIGNIN_BURST"`

	TrustProxy         bool   `env:"KV_OAUTH_TRUST_PROXY"`
	TrustedProxyCount  int    `env:"KV_OAUTH_TRUSTED_PROXY_COUNT" envDefault:"1"`
	EncryptionKey      string `env:"KV_OAUTH_ENCRYPTION_KEY"`
	EncryptionSecret   string `env:"KV_OAUTH_ENCRYPTION_SECRET"`
	EnableAuditLogging bool   `env:"KV_OAUTH_AUDIT_LOG" envDefault:"true"`
}

// LoadConfigFromEnv builds a Config from environment variables. The
// returned config is not validated; New validates it.
func LoadConfigFromEnv() (*Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{
		SuccessRedirectURL: raw.SuccessRedirectURL,
		ErrorRedirectURL:   raw.ErrorRedirectURL,
		SignOutRedirectURL: raw.SignOutRedirectURL,
		Cookie: CookieConfig{
			Name:   raw.CookieName,
			MaxAge: raw.CookieMaxAge,
		},
		RateLimit: RateLimitConfig{
			Rate:  raw.RateLimit,
			Burst: raw.RateLimitBurst,
		},
		Security: SecurityConfig{
			TrustProxy:         raw.TrustProxy,
			TrustedProxyCount:  raw.TrustedProxyCount,
			EncryptionSecret:   raw.EncryptionSecret,
			EnableAuditLogging: raw.EnableAuditLogging,
		},
		TransactionTTL:  raw.TransactionTTL,
		TokenTTL:        raw.TokenTTL,
		ExchangeTimeout: raw.ExchangeTimeout,
	}

	if raw.EncryptionKey != "" {
		key, err := security.KeyFromBase64(raw.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("KV_OAUTH_ENCRYPTION_KEY: %w", err)
		}
		cfg.Security.EncryptionKey = key
	}

	if raw.DiscordClientID != "" {
		cfg.Providers = append(cfg.Providers, providers.ProviderConfig{
			Kind:         providers.KindDiscord,
			ClientID:     raw.DiscordClientID,
			ClientSecret: raw.DiscordClientSecret,
			RedirectURL:  raw.DiscordRedirectURI,
			Scopes:       raw.DiscordScopes,
		})
	}
	if raw.GitHubClientID != "" {
		cfg.Providers = append(cfg.Providers, providers.ProviderConfig{
			Kind:         providers.KindGitHub,
			ClientID:     raw.GitHubClientID,
			ClientSecret: raw.GitHubClientSecret,
			RedirectURL:  raw.GitHubRedirectURI,
			Scopes:       raw.GitHubScopes,
		})
	}
	if raw.GoogleClientID != "" {
		cfg.Providers = append(cfg.Providers, providers.ProviderConfig{
			Kind:         providers.KindGoogle,
			ClientID:     raw.GoogleClientID,
			ClientSecret: raw.GoogleClientSecret,
			RedirectURL:  raw.GoogleRedirectURI,
			Scopes:       raw.GoogleScopes,
		})
	}

	return cfg, nil
}

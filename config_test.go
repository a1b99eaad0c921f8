package kvoauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/session"
	"github.com/giantswarm/kv-oauth/storage"
)

func githubConfig() providers.ProviderConfig {
	return providers.ProviderConfig{Kind: providers.KindGitHub, ClientID: "id", ClientSecret: "secret"}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, "/", cfg.SuccessRedirectURL)
	assert.Equal(t, "/", cfg.ErrorRedirectURL)
	assert.Equal(t, "/", cfg.SignOutRedirectURL)
	assert.Equal(t, session.DefaultCookieName, cfg.Cookie.Name)
	assert.Equal(t, DefaultSignInRate, cfg.RateLimit.Rate)
	assert.Equal(t, DefaultSignInBurst, cfg.RateLimit.Burst)
	assert.Equal(t, security.DefaultMaxLimiters, cfg.RateLimit.MaxEntries)
	assert.Equal(t, storage.DefaultTransactionTTL, cfg.TransactionTTL)
	assert.Zero(t, cfg.TokenTTL)
}

func TestConfig_ApplyDefaultsKeepsValues(t *testing.T) {
	cfg := &Config{
		SuccessRedirectURL: "/home",
		Cookie:             CookieConfig{Name: "my-session"},
		RateLimit:          RateLimitConfig{Rate: -1},
		TransactionTTL:     time.Minute,
	}
	cfg.applyDefaults()

	assert.Equal(t, "/home", cfg.SuccessRedirectURL)
	assert.Equal(t, "my-session", cfg.Cookie.Name)
	assert.Equal(t, -1.0, cfg.RateLimit.Rate)
	assert.Equal(t, time.Minute, cfg.TransactionTTL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:    "no providers",
			modify:  func(c *Config) { c.Providers = nil },
			wantErr: true,
		},
		{
			name:    "duplicate provider",
			modify:  func(c *Config) { c.Providers = append(c.Providers, githubConfig()) },
			wantErr: true,
		},
		{
			name: "discord without redirect",
			modify: func(c *Config) {
				c.Providers = []providers.ProviderConfig{{
					Kind: providers.KindDiscord, ClientID: "id", ClientSecret: "secret", Scopes: []string{"identify"},
				}}
			},
			wantErr: true,
		},
		{
			name:    "cookie name with separator",
			modify:  func(c *Config) { c.Cookie.Name = "a;b" },
			wantErr: true,
		},
		{
			name:    "cookie name reserved for flow",
			modify:  func(c *Config) { c.Cookie.Name = session.FlowCookieName },
			wantErr: true,
		},
		{
			name:    "short encryption key",
			modify:  func(c *Config) { c.Security.EncryptionKey = []byte("short") },
			wantErr: true,
		},
		{
			name:    "negative proxy count",
			modify:  func(c *Config) { c.Security.TrustedProxyCount = -1 },
			wantErr: true,
		},
		{
			name:    "unparseable redirect",
			modify:  func(c *Config) { c.ErrorRedirectURL = "http://[::1" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Providers: []providers.ProviderConfig{githubConfig()}}
			cfg.applyDefaults()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("DISCORD_CLIENT_ID", "dc-id")
	t.Setenv("DISCORD_CLIENT_SECRET", "dc-secret")
	t.Setenv("DISCORD_REDIRECT_URI", "https://app.example.com/callback")
	t.Setenv("KV_OAUTH_TRANSACTION_TTL", "5m")
	t.Setenv("KV_OAUTH_SUCCESS_REDIRECT_URL", "/welcome")
	t.Setenv("KV_OAUTH_TRUST_PROXY", "true")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, providers.KindDiscord, cfg.Providers[0].Kind)
	assert.Equal(t, []string{"identify", "email"}, cfg.Providers[0].Scopes)
	assert.Equal(t, "https://app.example.com/callback", cfg.Providers[0].RedirectURL)
	assert.Equal(t, providers.KindGitHub, cfg.Providers[1].Kind)
	assert.Equal(t, "gh-secret", cfg.Providers[1].ClientSecret)

	assert.Equal(t, 5*time.Minute, cfg.TransactionTTL)
	assert.Equal(t, 30*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, "/welcome", cfg.SuccessRedirectURL)
	assert.True(t, cfg.Security.TrustProxy)
	assert.Equal(t, 1, cfg.Security.TrustedProxyCount)
	assert.True(t, cfg.Security.EnableAuditLogging)

	cfg.applyDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_EncryptionKey(t *testing.T) {
	key, err := security.GenerateKey()
	require.NoError(t, err)
	t.Setenv("KV_OAUTH_ENCRYPTION_KEY", security.KeyToBase64(key))

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, key, cfg.Security.EncryptionKey)
}

func TestLoadConfigFromEnv_InvalidValues(t *testing.T) {
	t.Run("bad key", func(t *testing.T) {
		t.Setenv("KV_OAUTH_ENCRYPTION_KEY", "not base64!")
		_, err := LoadConfigFromEnv()
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("KV_OAUTH_TOKEN_TTL", "forever")
		_, err := LoadConfigFromEnv()
		assert.Error(t, err)
	})
}

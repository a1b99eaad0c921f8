package discord

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kv-oauth/internal/testutil"
	"github.com/giantswarm/kv-oauth/providers"
)

func validConfig() providers.ProviderConfig {
	return providers.ProviderConfig{
		ClientID:     "discord-id",
		ClientSecret: "discord-secret",
		RedirectURL:  "https://app.example.com/callback",
		Scopes:       []string{"identify"},
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(validConfig())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "discord" {
		t.Errorf("Name() = %q, want discord", p.Name())
	}
	cfg := p.OAuth2Config()
	if cfg.Endpoint.AuthURL != "https://discord.com/oauth2/authorize" {
		t.Errorf("AuthURL = %q", cfg.Endpoint.AuthURL)
	}
	if cfg.Endpoint.TokenURL != "https://discord.com/api/oauth2/token" {
		t.Errorf("TokenURL = %q", cfg.Endpoint.TokenURL)
	}
}

func TestNewProvider_Validation(t *testing.T) {
	noRedirect := validConfig()
	noRedirect.RedirectURL = ""
	if _, err := NewProvider(noRedirect); !errors.Is(err, providers.ErrMissingRequiredField) {
		t.Errorf("missing redirect: error = %v, want ErrMissingRequiredField", err)
	}

	noScopes := validConfig()
	noScopes.Scopes = nil
	if _, err := NewProvider(noScopes); !errors.Is(err, providers.ErrMissingRequiredField) {
		t.Errorf("missing scopes: error = %v, want ErrMissingRequiredField", err)
	}

	wrongKind := validConfig()
	wrongKind.Kind = providers.KindGoogle
	if _, err := NewProvider(wrongKind); !errors.Is(err, providers.ErrUnsupportedProvider) {
		t.Errorf("wrong kind: error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestProvider_Flow(t *testing.T) {
	te := testutil.NewTokenEndpoint(t)
	cfg := validConfig()
	cfg.Endpoint = &oauth2.Endpoint{AuthURL: Endpoint.AuthURL, TokenURL: te.URL()}

	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	raw := p.AuthorizationURL("state", "challenge")
	if !strings.HasPrefix(raw, Endpoint.AuthURL) {
		t.Errorf("AuthorizationURL() = %q", raw)
	}
	u, _ := url.Parse(raw)
	if u.Query().Get("scope") != "identify" {
		t.Errorf("scope = %q, want identify", u.Query().Get("scope"))
	}

	token, err := p.ExchangeCode(context.Background(), "code", "verifier")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if token.AccessToken != "test-access-token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
}

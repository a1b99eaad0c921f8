package providers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kv-oauth/internal/testutil"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"discord", "github", "google"} {
		if k, err := ParseKind(name); err != nil || string(k) != name {
			t.Errorf("ParseKind(%q) = %q, %v", name, k, err)
		}
	}

	for _, name := range []string{"", "facebook", "GitHub"} {
		if _, err := ParseKind(name); !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("ParseKind(%q) error = %v, want ErrUnsupportedProvider", name, err)
		}
	}
}

func TestProviderConfig_Validate(t *testing.T) {
	base := func(kind Kind) ProviderConfig {
		return ProviderConfig{
			Kind:         kind,
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "https://app.example.com/callback",
			Scopes:       []string{"identify"},
		}
	}

	tests := []struct {
		name    string
		modify  func(c *ProviderConfig)
		kind    Kind
		wantErr error
	}{
		{name: "discord complete", kind: KindDiscord},
		{name: "google complete", kind: KindGoogle},
		{name: "github complete", kind: KindGitHub},
		{
			name:   "github without redirect and scopes",
			kind:   KindGitHub,
			modify: func(c *ProviderConfig) { c.RedirectURL = ""; c.Scopes = nil },
		},
		{
			name:    "discord without redirect",
			kind:    KindDiscord,
			modify:  func(c *ProviderConfig) { c.RedirectURL = "" },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "discord without scopes",
			kind:    KindDiscord,
			modify:  func(c *ProviderConfig) { c.Scopes = nil },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "google without redirect",
			kind:    KindGoogle,
			modify:  func(c *ProviderConfig) { c.RedirectURL = "" },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "google without scopes",
			kind:    KindGoogle,
			modify:  func(c *ProviderConfig) { c.Scopes = []string{} },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "missing client id",
			kind:    KindGitHub,
			modify:  func(c *ProviderConfig) { c.ClientID = "" },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "missing client secret",
			kind:    KindGitHub,
			modify:  func(c *ProviderConfig) { c.ClientSecret = "" },
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "unknown kind",
			kind:    Kind("gitlab"),
			wantErr: ErrUnsupportedProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(tt.kind)
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func newTestProvider(t *testing.T, te *testutil.TokenEndpoint) *OAuth2Provider {
	t.Helper()
	p, err := NewOAuth2Provider(ProviderConfig{
		Kind:         KindDiscord,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/callback",
		Scopes:       []string{"identify", "email"},
		Endpoint: &oauth2.Endpoint{
			AuthURL:  "https://provider.example.com/authorize",
			TokenURL: te.URL(),
		},
	}, oauth2.Endpoint{})
	if err != nil {
		t.Fatalf("NewOAuth2Provider() error = %v", err)
	}
	return p
}

func TestOAuth2Provider_AuthorizationURL(t *testing.T) {
	p := newTestProvider(t, testutil.NewTokenEndpoint(t))

	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	raw := p.AuthorizationURL("state-123", challenge)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if !strings.HasPrefix(raw, "https://provider.example.com/authorize?") {
		t.Errorf("URL = %q, want provider authorize endpoint", raw)
	}

	q := u.Query()
	want := map[string]string{
		"state":                 "state-123",
		"client_id":             "client-id",
		"redirect_uri":          "https://app.example.com/callback",
		"response_type":         "code",
		"scope":                 "identify email",
		"code_challenge":        challenge,
		"code_challenge_method": "S256",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if q.Has("code_verifier") {
		t.Error("verifier must never appear in the authorization URL")
	}
}

func TestOAuth2Provider_AuthorizationURL_NoPKCE(t *testing.T) {
	p := newTestProvider(t, testutil.NewTokenEndpoint(t))

	u, _ := url.Parse(p.AuthorizationURL("s", ""))
	if u.Query().Has("code_challenge") {
		t.Error("empty challenge should omit PKCE parameters")
	}
}

func TestOAuth2Provider_ExchangeCode(t *testing.T) {
	te := testutil.NewTokenEndpoint(t)
	p := newTestProvider(t, te)

	token, err := p.ExchangeCode(context.Background(), "the-code", "the-verifier")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if token.AccessToken != "test-access-token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if token.RefreshToken != "test-refresh-token" {
		t.Errorf("RefreshToken = %q", token.RefreshToken)
	}
	if token.Expiry.IsZero() {
		t.Error("Expiry should be derived from expires_in")
	}

	form := te.LastRequest()
	if form.Get("code") != "the-code" {
		t.Errorf("code = %q, want the-code", form.Get("code"))
	}
	if form.Get("code_verifier") != "the-verifier" {
		t.Errorf("code_verifier = %q, want the-verifier", form.Get("code_verifier"))
	}
	if form.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", form.Get("grant_type"))
	}
}

func TestOAuth2Provider_ExchangeCode_Error(t *testing.T) {
	te := testutil.NewTokenEndpoint(t)
	te.Fail("invalid_grant")
	p := newTestProvider(t, te)

	if _, err := p.ExchangeCode(context.Background(), "bad", "v"); err == nil {
		t.Fatal("ExchangeCode() should fail when the provider rejects the code")
	}
}

func TestOAuth2Provider_OAuth2Config(t *testing.T) {
	p := newTestProvider(t, testutil.NewTokenEndpoint(t))

	cfg := p.OAuth2Config()
	cfg.Scopes[0] = "mutated"
	if p.OAuth2Config().Scopes[0] != "identify" {
		t.Error("OAuth2Config() should return a copy")
	}
	if p.Name() != "discord" {
		t.Errorf("Name() = %q, want discord", p.Name())
	}
}

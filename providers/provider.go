package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	// ErrUnsupportedProvider is returned for a provider kind or name that is not configured
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingRequiredField is returned when a provider config lacks a field its kind requires
	ErrMissingRequiredField = errors.New("missing required provider field")
)

// Provider is an OAuth2 client for one identity provider.
type Provider interface {
	// Name returns the provider name, e.g. "github"
	Name() string

	// AuthorizationURL returns the URL that starts the provider login.
	// codeChallenge is the S256 PKCE challenge; an empty value disables PKCE.
	AuthorizationURL(state, codeChallenge string) string

	// ExchangeCode trades an authorization code for tokens.
	// codeVerifier must match the challenge sent with AuthorizationURL.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)
}

// Kind identifies a supported provider
type Kind string

const (
	KindDiscord Kind = "discord"
	KindGitHub  Kind = "github"
	KindGoogle  Kind = "google"
)

// ParseKind returns the Kind named by s, or ErrUnsupportedProvider.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDiscord, KindGitHub, KindGoogle:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// ProviderConfig is the configuration of a single provider. Which fields are
// required depends on Kind: Discord and Google need RedirectURL and at least
// one scope, GitHub falls back to the redirect URL registered with the app.
type ProviderConfig struct {
	Kind         Kind
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides the provider's well-known endpoints. Used in tests.
	Endpoint *oauth2.Endpoint

	// HTTPClient is used for the token exchange (default: 30s timeout)
	HTTPClient *http.Client
}

// Validate checks the fields Kind requires.
func (c ProviderConfig) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: %s client ID", ErrMissingRequiredField, c.Kind)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%w: %s client secret", ErrMissingRequiredField, c.Kind)
	}

	switch c.Kind {
	case KindDiscord, KindGoogle:
		if c.RedirectURL == "" {
			return fmt.Errorf("%w: %s redirect URL", ErrMissingRequiredField, c.Kind)
		}
		if len(c.Scopes) == 0 {
			return fmt.Errorf("%w: %s scopes", ErrMissingRequiredField, c.Kind)
		}
	}
	return nil
}

package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds a token exchange when no HTTP client is configured
const DefaultHTTPTimeout = 30 * time.Second

// OAuth2ConfigExchanger is the Exchange method of oauth2.Config
type OAuth2ConfigExchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// ExchangeCodeWithPKCE exchanges code using httpClient, sending verifier as
// the PKCE code_verifier when it is not empty.
func ExchangeCodeWithPKCE(ctx context.Context, config OAuth2ConfigExchanger, httpClient *http.Client, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	token, err := config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// AuthCodeURLWithPKCE builds the authorization URL for state, adding an S256
// code challenge when codeChallenge is not empty.
func AuthCodeURLWithPKCE(config *oauth2.Config, state, codeChallenge string, extra ...oauth2.AuthCodeOption) string {
	opts := append([]oauth2.AuthCodeOption{}, extra...)
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return config.AuthCodeURL(state, opts...)
}

// OAuth2Provider implements Provider on top of an oauth2.Config. The
// concrete providers embed it and only supply endpoints and defaults.
type OAuth2Provider struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client
	authOpts   []oauth2.AuthCodeOption
}

var _ Provider = (*OAuth2Provider)(nil)

// NewOAuth2Provider validates cfg and builds a provider named after its kind
// that talks to endpoint unless cfg.Endpoint overrides it.
func NewOAuth2Provider(cfg ProviderConfig, endpoint oauth2.Endpoint, authOpts ...oauth2.AuthCodeOption) (*OAuth2Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &OAuth2Provider{
		name: string(cfg.Kind),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
		authOpts:   authOpts,
	}, nil
}

// Name returns the provider name
func (p *OAuth2Provider) Name() string {
	return p.name
}

// AuthorizationURL returns the provider login URL for state and codeChallenge
func (p *OAuth2Provider) AuthorizationURL(state, codeChallenge string) string {
	return AuthCodeURLWithPKCE(p.config, state, codeChallenge, p.authOpts...)
}

// ExchangeCode trades code for tokens at the provider's token endpoint
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	return ExchangeCodeWithPKCE(ctx, p.config, p.httpClient, code, codeVerifier)
}

// OAuth2Config returns a copy of the underlying client configuration
func (p *OAuth2Provider) OAuth2Config() oauth2.Config {
	cfg := *p.config
	cfg.Scopes = append([]string(nil), p.config.Scopes...)
	return cfg
}

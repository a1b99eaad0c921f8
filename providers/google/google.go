package google

import (
	"fmt"

	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/giantswarm/kv-oauth/providers"
)

// Provider is the Google OAuth2 client
type Provider struct {
	*providers.OAuth2Provider
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a Google provider. cfg.Kind may be left empty.
func NewProvider(cfg providers.ProviderConfig) (*Provider, error) {
	if cfg.Kind == "" {
		cfg.Kind = providers.KindGoogle
	}
	if cfg.Kind != providers.KindGoogle {
		return nil, fmt.Errorf("%w: %q is not google", providers.ErrUnsupportedProvider, cfg.Kind)
	}

	p, err := providers.NewOAuth2Provider(cfg, oauthgoogle.Endpoint)
	if err != nil {
		return nil, err
	}
	return &Provider{OAuth2Provider: p}, nil
}

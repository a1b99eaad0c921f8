package github

import (
	"fmt"

	oauthgithub "golang.org/x/oauth2/github"

	"github.com/giantswarm/kv-oauth/providers"
)

// Provider is the GitHub OAuth2 client
type Provider struct {
	*providers.OAuth2Provider
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a GitHub provider. cfg.Kind may be left empty.
func NewProvider(cfg providers.ProviderConfig) (*Provider, error) {
	if cfg.Kind == "" {
		cfg.Kind = providers.KindGitHub
	}
	if cfg.Kind != providers.KindGitHub {
		return nil, fmt.Errorf("%w: %q is not github", providers.ErrUnsupportedProvider, cfg.Kind)
	}

	p, err := providers.NewOAuth2Provider(cfg, oauthgithub.Endpoint)
	if err != nil {
		return nil, err
	}
	return &Provider{OAuth2Provider: p}, nil
}

package discord

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kv-oauth/providers"
)

// Endpoint is Discord's OAuth2 endpoint
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// Provider is the Discord OAuth2 client
type Provider struct {
	*providers.OAuth2Provider
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a Discord provider. cfg.Kind may be left empty.
func NewProvider(cfg providers.ProviderConfig) (*Provider, error) {
	if cfg.Kind == "" {
		cfg.Kind = providers.KindDiscord
	}
	if cfg.Kind != providers.KindDiscord {
		return nil, fmt.Errorf("%w: %q is not discord", providers.ErrUnsupportedProvider, cfg.Kind)
	}

	p, err := providers.NewOAuth2Provider(cfg, Endpoint)
	if err != nil {
		return nil, err
	}
	return &Provider{OAuth2Provider: p}, nil
}

package kvoauth

import (
	"fmt"

	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/providers/discord"
	"github.com/giantswarm/kv-oauth/providers/github"
	"github.com/giantswarm/kv-oauth/providers/google"
)

// NewProvider builds the provider cfg.Kind names
func NewProvider(cfg providers.ProviderConfig) (providers.Provider, error) {
	var (
		p   providers.Provider
		err error
	)
	switch cfg.Kind {
	case providers.KindDiscord:
		p, err = discord.NewProvider(cfg)
	case providers.KindGitHub:
		p, err = github.NewProvider(cfg)
	case providers.KindGoogle:
		p, err = google.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", providers.ErrUnsupportedProvider, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewProviders builds every configured provider
func NewProviders(cfgs []providers.ProviderConfig) ([]providers.Provider, error) {
	out := make([]providers.Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := NewProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", cfg.Kind, err)
		}
		out = append(out, p)
	}
	return out, nil
}

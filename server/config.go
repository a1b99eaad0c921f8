package server

import (
	"log/slog"
	"time"

	"github.com/giantswarm/kv-oauth/storage"
)

// DefaultExchangeTimeout bounds a single code exchange with a provider
const DefaultExchangeTimeout = 30 * time.Second

// Config holds the lifecycle settings of the Server
type Config struct {
	// TransactionTTL is how long a started sign-in may wait for its callback.
	// Default: 10 minutes
	TransactionTTL time.Duration

	// TokenTTL expires stored tokens. Zero keeps them until sign-out or
	// session replacement.
	TokenTTL time.Duration

	// ExchangeTimeout bounds the code exchange with the provider.
	// Default: 30 seconds
	ExchangeTimeout time.Duration
}

// applySecureDefaults fills unset values and warns about risky ones.
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	if config.TransactionTTL <= 0 {
		config.TransactionTTL = storage.DefaultTransactionTTL
	} else if config.TransactionTTL > time.Hour {
		logger.Warn("Long sign-in transaction TTL widens the window for replaying a stolen flow cookie",
			"transaction_ttl", config.TransactionTTL)
	}

	if config.TokenTTL < 0 {
		config.TokenTTL = 0
	}

	if config.ExchangeTimeout <= 0 {
		config.ExchangeTimeout = DefaultExchangeTimeout
	}

	return config
}

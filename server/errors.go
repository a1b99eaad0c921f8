package server

import (
	"errors"

	"github.com/giantswarm/kv-oauth/providers"
)

var (
	// ErrInvalidState is returned when a callback names an unknown, expired
	// or already consumed flow, or carries a state that does not match it.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrInvalidCallback is returned when a callback lacks its flow ID, state
	// or code, or the provider reported an error.
	ErrInvalidCallback = errors.New("invalid oauth callback")

	// ErrTokenExchangeFailed is returned when the provider refused the code.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrUnsupportedProvider is returned for a provider name that is not configured
	ErrUnsupportedProvider = providers.ErrUnsupportedProvider
)

package kvoauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/server"
	"github.com/giantswarm/kv-oauth/storage"
)

// Error codes placed in the "error" query parameter of the error redirect.
// They are deliberately coarse; details stay in the logs.
const (
	ErrorCodeInvalidState        = "invalid_state"
	ErrorCodeInvalidCallback     = "invalid_callback"
	ErrorCodeExchangeFailed      = "exchange_failed"
	ErrorCodeUnsupportedProvider = "unsupported_provider"
	ErrorCodeRateLimitExceeded   = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
)

// Sentinel errors, re-exported for callers of the root package
var (
	ErrInvalidState         = server.ErrInvalidState
	ErrInvalidCallback      = server.ErrInvalidCallback
	ErrTokenExchangeFailed  = server.ErrTokenExchangeFailed
	ErrUnsupportedProvider  = providers.ErrUnsupportedProvider
	ErrMissingRequiredField = providers.ErrMissingRequiredField
	ErrStoreUnavailable     = storage.ErrUnavailable
	ErrNotFound             = storage.ErrNotFound
)

// FlowError is the HTTP outcome of a failed sign-in step
type FlowError struct {
	Code        string // generic error code, safe to show to the browser
	Description string // human-readable description, for logs only
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewFlowError creates a new flow error
func NewFlowError(code, description string, status int) *FlowError {
	return &FlowError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Redirects reports whether the browser should be sent to the error
// redirect URL rather than shown an error page.
func (e *FlowError) Redirects() bool {
	return e.Status == http.StatusFound
}

// flowErrorFor maps a domain error to its HTTP outcome. Business errors
// become redirects; storage failures and anything unknown become 500.
func flowErrorFor(err error) *FlowError {
	var fe *FlowError
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrInvalidState):
		return NewFlowError(ErrorCodeInvalidState, err.Error(), http.StatusFound)
	case errors.Is(err, ErrInvalidCallback):
		return NewFlowError(ErrorCodeInvalidCallback, err.Error(), http.StatusFound)
	case errors.Is(err, ErrTokenExchangeFailed):
		return NewFlowError(ErrorCodeExchangeFailed, err.Error(), http.StatusFound)
	case errors.Is(err, ErrUnsupportedProvider):
		return NewFlowError(ErrorCodeUnsupportedProvider, err.Error(), http.StatusNotFound)
	default:
		return NewFlowError(ErrorCodeServerError, err.Error(), http.StatusInternalServerError)
	}
}

// Package storage defines the key-value adapter contract used for OAuth session
// and token persistence, plus the typed stores built on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Key namespaces used by the typed stores.
const (
	// NamespaceOAuthSessions holds pending handshake state keyed by flow ID.
	NamespaceOAuthSessions = "oauth_sessions"

	// NamespaceTokens holds provider token bags keyed by session ID.
	NamespaceTokens = "tokens_by_session"
)

var (
	// ErrNotFound is returned when a key has no live value. It is a normal
	// control-flow outcome, not a failure of the backend.
	ErrNotFound = errors.New("storage: key not found")

	// ErrUnavailable is returned when the backend cannot be reached or fails
	// an operation. Callers must fail the request rather than guess.
	ErrUnavailable = errors.New("storage: backend unavailable")

	// ErrInvalidKey is returned for empty keys or key parts.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Key is a composite key, e.g. {"tokens_by_session", sessionID}.
type Key []string

// String joins the key parts with ':'.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Validate reports ErrInvalidKey when the key or any of its parts is empty.
func (k Key) Validate() error {
	if len(k) == 0 {
		return ErrInvalidKey
	}
	for _, part := range k {
		if part == "" {
			return fmt.Errorf("%w: empty part in %q", ErrInvalidKey, k.String())
		}
	}
	return nil
}

// Store is the key-value adapter. Every operation is independently atomic for
// a single key and may block on I/O, so all of them take a context.
//
// Implementations must be safe for concurrent use by many request handlers.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set writes value under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Take atomically returns the value for key and removes it. Of any number
	// of concurrent Take calls for the same key at most one observes the value;
	// the rest get ErrNotFound.
	Take(ctx context.Context, key Key) ([]byte, error)
}

// Unavailable wraps a backend failure so that errors.Is(err, ErrUnavailable)
// holds while keeping the underlying cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

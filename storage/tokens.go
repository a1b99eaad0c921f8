package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/kv-oauth/internal/util"
	"github.com/giantswarm/kv-oauth/security"
)

// sessionIDLogLength is the number of characters of a session ID included in logs
const sessionIDLogLength = 8

// TokenStore maps browser session IDs to the provider token bag.
//
// Writes are unconditional upserts. Two logins completing concurrently for the
// same session leave whichever write landed last.
type TokenStore struct {
	store     Store
	ttl       time.Duration
	encryptor *security.Encryptor
	logger    *slog.Logger
}

// NewTokenStore creates a token store on top of store. A ttl <= 0 stores
// tokens without expiry.
func NewTokenStore(store Store, ttl time.Duration) *TokenStore {
	if ttl < 0 {
		ttl = 0
	}
	return &TokenStore{
		store:  store,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (t *TokenStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetEncryptor enables encryption at rest for access and refresh tokens.
func (t *TokenStore) SetEncryptor(enc *security.Encryptor) {
	t.encryptor = enc
}

func tokensKey(sessionID string) Key {
	return Key{NamespaceTokens, sessionID}
}

// Get returns the tokens stored for sessionID. A session without tokens is
// not an error: Get returns (nil, nil).
func (t *TokenStore) Get(ctx context.Context, sessionID string) (*Tokens, error) {
	key := tokensKey(sessionID)
	if err := key.Validate(); err != nil {
		return nil, nil
	}

	data, err := t.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	var j tokensJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}

	tokens := fromTokensJSON(&j)
	if err := t.decrypt(tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Set stores tokens for sessionID, replacing any previous value.
func (t *TokenStore) Set(ctx context.Context, sessionID string, tokens *Tokens) error {
	if tokens == nil {
		return fmt.Errorf("tokens cannot be nil")
	}
	key := tokensKey(sessionID)
	if err := key.Validate(); err != nil {
		return err
	}

	stored := *tokens
	if err := t.encrypt(&stored); err != nil {
		return err
	}

	data, err := json.Marshal(toTokensJSON(&stored))
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := t.store.Set(ctx, key, data, t.ttl); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	t.logger.Debug("Stored tokens",
		"session_id_prefix", util.SafeTruncate(sessionID, sessionIDLogLength),
		"encrypted", t.encryptionEnabled())
	return nil
}

// Delete removes the tokens for sessionID. Deleting tokens that do not exist
// is not an error.
func (t *TokenStore) Delete(ctx context.Context, sessionID string) error {
	key := tokensKey(sessionID)
	if err := key.Validate(); err != nil {
		return nil
	}

	if err := t.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	t.logger.Debug("Deleted tokens",
		"session_id_prefix", util.SafeTruncate(sessionID, sessionIDLogLength))
	return nil
}

func (t *TokenStore) encryptionEnabled() bool {
	return t.encryptor != nil && t.encryptor.IsEnabled()
}

func (t *TokenStore) encrypt(tokens *Tokens) error {
	if !t.encryptionEnabled() {
		return nil
	}

	access, err := t.encryptor.Encrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	tokens.AccessToken = access

	if tokens.RefreshToken != "" {
		refresh, err := t.encryptor.Encrypt(tokens.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		tokens.RefreshToken = refresh
	}
	return nil
}

func (t *TokenStore) decrypt(tokens *Tokens) error {
	if !t.encryptionEnabled() {
		return nil
	}

	access, err := t.encryptor.Decrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	tokens.AccessToken = access

	if tokens.RefreshToken != "" {
		refresh, err := t.encryptor.Decrypt(tokens.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		tokens.RefreshToken = refresh
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/kv-oauth/internal/util"
)

const (
	// DefaultTransactionTTL bounds how long a handshake may stay pending.
	DefaultTransactionTTL = 10 * time.Minute

	// flowIDLogLength is the number of characters of a flow ID included in logs
	flowIDLogLength = 8
)

// TransactionStore keeps pending OAuth handshake state keyed by flow ID.
type TransactionStore struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewTransactionStore creates a transaction store on top of store.
// A ttl <= 0 uses DefaultTransactionTTL.
func NewTransactionStore(store Store, ttl time.Duration) *TransactionStore {
	if ttl <= 0 {
		ttl = DefaultTransactionTTL
	}
	return &TransactionStore{
		store:  store,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (t *TransactionStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// TTL returns the expiration applied to new transactions.
func (t *TransactionStore) TTL() time.Duration {
	return t.ttl
}

func transactionKey(flowID string) Key {
	return Key{NamespaceOAuthSessions, flowID}
}

// Start persists the handshake state for flowID with the store's TTL.
// Flow IDs are fresh random values, so no uniqueness check is made.
func (t *TransactionStore) Start(ctx context.Context, flowID string, session *OAuthSession) error {
	if session == nil {
		return fmt.Errorf("oauth session cannot be nil")
	}
	key := transactionKey(flowID)
	if err := key.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toOAuthSessionJSON(session))
	if err != nil {
		return fmt.Errorf("failed to marshal oauth session: %w", err)
	}

	if err := t.store.Set(ctx, key, data, t.ttl); err != nil {
		return fmt.Errorf("failed to save oauth session: %w", err)
	}

	t.logger.Debug("Started oauth transaction",
		"flow_id_prefix", util.SafeTruncate(flowID, flowIDLogLength),
		"provider", session.Provider,
		"ttl", t.ttl)
	return nil
}

// Consume takes the handshake state for flowID, removing it in the same
// operation. A second Consume for the same flow returns ErrNotFound, as does
// a flow that expired or never existed.
func (t *TransactionStore) Consume(ctx context.Context, flowID string) (*OAuthSession, error) {
	key := transactionKey(flowID)
	if err := key.Validate(); err != nil {
		return nil, ErrNotFound
	}

	data, err := t.store.Take(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume oauth session: %w", err)
	}

	var j oauthSessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth session: %w", err)
	}

	t.logger.Debug("Consumed oauth transaction",
		"flow_id_prefix", util.SafeTruncate(flowID, flowIDLogLength))
	return fromOAuthSessionJSON(&j), nil
}

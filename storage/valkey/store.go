package valkey

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "kvoauth:"

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// MaxValueSize is the maximum size of a stored value (64KB).
	// Token bags are small; anything larger is rejected before it reaches Valkey.
	MaxValueSize = 64 * 1024
)

var errValueTooLarge = fmt.Errorf("value exceeds maximum allowed size")

// luaTake returns the value under KEYS[1] and deletes it in one step.
// A missing key yields a nil reply.
const luaTake = `
local v = redis.call('GET', KEYS[1])
if v then
  redis.call('DEL', KEYS[1])
end
return v
`

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "kvoauth:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Valkey-backed storage.Store.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

var _ storage.Store = (*Store)(nil)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetInstrumentation enables spans and storage metrics.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) key(k storage.Key) string {
	return s.prefix + k.String()
}

// Get returns the value stored under key, or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key storage.Key) (value []byte, err error) {
	ctx, span := s.startStorageSpan(ctx, "get", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "get", err, startTime)
	}()

	if err := key.Validate(); err != nil {
		return nil, err
	}

	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).AsBytes()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Unavailable("get", err)
	}
	return data, nil
}

// Set writes value under key. A ttl <= 0 stores the value without expiry;
// Valkey enforces positive TTLs itself.
func (s *Store) Set(ctx context.Context, key storage.Key, value []byte, ttl time.Duration) (err error) {
	ctx, span := s.startStorageSpan(ctx, "set", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "set", err, startTime)
	}()

	if err := key.Validate(); err != nil {
		return err
	}
	if len(value) > MaxValueSize {
		return errValueTooLarge
	}

	k := s.key(key)
	var execErr error
	if ttl > 0 {
		execErr = s.client.Do(ctx, s.client.B().Set().Key(k).Value(valkeygo.BinaryString(value)).Ex(ttl).Build()).Error()
	} else {
		execErr = s.client.Do(ctx, s.client.B().Set().Key(k).Value(valkeygo.BinaryString(value)).Build()).Error()
	}
	if execErr != nil {
		return storage.Unavailable("set", execErr)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, key storage.Key) (err error) {
	ctx, span := s.startStorageSpan(ctx, "delete", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "delete", err, startTime)
	}()

	if err := key.Validate(); err != nil {
		return err
	}

	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return storage.Unavailable("delete", err)
	}
	return nil
}

// Take atomically reads and deletes key via a Lua script, so only one of any
// number of concurrent callers, across all instances, receives the value.
func (s *Store) Take(ctx context.Context, key storage.Key) (value []byte, err error) {
	ctx, span := s.startStorageSpan(ctx, "take", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "take", err, startTime)
	}()

	if err := key.Validate(); err != nil {
		return nil, err
	}

	data, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaTake).
			Numkeys(1).
			Key(s.key(key)).
			Build(),
	).AsBytes()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Unavailable("take", err)
	}
	return data, nil
}

// startStorageSpan starts a new span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string, key storage.Key) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, tracenoop.Span{}
	}

	namespace := ""
	if len(key) > 0 {
		namespace = key[0]
	}
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation))
	instrumentation.AddStorageAttributes(span, operation, "valkey", namespace)
	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	result := "success"
	switch {
	case errors.Is(err, storage.ErrNotFound):
		result = "not_found"
		span.SetStatus(codes.Ok, "")
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}

// isNilError checks if the error is a Valkey nil reply (key not found)
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}

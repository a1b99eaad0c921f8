package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/storage"
)

// DefaultCleanupInterval is how often expired entries are swept
const DefaultCleanupInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-memory storage.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	transactionsCountAtomic atomic.Int64
	tokensCountAtomic       atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger

	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store with the default cleanup interval
func New() *Store {
	return NewWithInterval(DefaultCleanupInterval)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, DefaultCleanupInterval is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &Store{
		entries:         make(map[string]*entry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
		now:             time.Now,
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.recount()
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.transactionsCountAtomic.Load() },
			func() int64 { return s.tokensCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// Get returns the live value stored under key.
func (s *Store) Get(ctx context.Context, key storage.Key) (value []byte, err error) {
	ctx, span := s.startStorageSpan(ctx, "get", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "get", err, startTime)
	}()

	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("get", err)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.String()]
	if !ok || e.expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return copyBytes(e.value), nil
}

// Set stores value under key. A ttl <= 0 stores the entry without expiry.
func (s *Store) Set(ctx context.Context, key storage.Key, value []byte, ttl time.Duration) (err error) {
	ctx, span := s.startStorageSpan(ctx, "set", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "set", err, startTime)
	}()

	if err := ctx.Err(); err != nil {
		return storage.Unavailable("set", err)
	}
	if err := key.Validate(); err != nil {
		return err
	}

	e := &entry{value: copyBytes(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, exists := s.entries[k]; !exists {
		s.adjustCount(key, 1)
	}
	s.entries[k] = e
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

	if err := ctx.Err(); err != nil {
		return storage.Unavailable("delete", err)
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key.String())
	return nil
}

// Take returns the value under key and removes it while holding the write lock,
// so concurrent Takes for one key yield the value exactly once.
func (s *Store) Take(ctx context.Context, key storage.Key) (value []byte, err error) {
	ctx, span := s.startStorageSpan(ctx, "take", key)
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "take", err, startTime)
	}()

	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("take", err)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	e, ok := s.entries[k]
	if !ok {
		return nil, storage.ErrNotFound
	}
	s.removeLocked(k)
	if e.expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return e.value, nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// removeLocked deletes k; s.mu must be held for writing.
func (s *Store) removeLocked(k string) {
	if _, ok := s.entries[k]; !ok {
		return
	}
	delete(s.entries, k)
	s.adjustCount(keyFromString(k), -1)
}

func (s *Store) adjustCount(key storage.Key, delta int64) {
	if len(key) == 0 {
		return
	}
	switch key[0] {
	case storage.NamespaceOAuthSessions:
		s.transactionsCountAtomic.Add(delta)
	case storage.NamespaceTokens:
		s.tokensCountAtomic.Add(delta)
	}
}

// recount resets the atomic counters from the map; s.mu must be held.
func (s *Store) recount() {
	var transactions, tokens int64
	for k := range s.entries {
		switch keyFromString(k)[0] {
		case storage.NamespaceOAuthSessions:
			transactions++
		case storage.NamespaceTokens:
			tokens++
		}
	}
	s.transactionsCountAtomic.Store(transactions)
	s.tokensCountAtomic.Store(tokens)
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0
	for k, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(k)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
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
	instrumentation.AddStorageAttributes(span, operation, "memory", namespace)
	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status.
// ErrNotFound is a normal outcome and does not mark the span as failed.
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

func keyFromString(k string) storage.Key {
	return strings.Split(k, ":")
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

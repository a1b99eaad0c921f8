// Package mock provides a mock storage.Store for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/kv-oauth/storage"
)

// MockStore is a mock implementation of storage.Store.
//
// By default it behaves like a simple map without expiry. Override the Func
// fields to inject failures, e.g. storage.Unavailable errors.
type MockStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration

	GetFunc    func(ctx context.Context, key storage.Key) ([]byte, error)
	SetFunc    func(ctx context.Context, key storage.Key, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key storage.Key) error
	TakeFunc   func(ctx context.Context, key storage.Key) ([]byte, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int
}

var _ storage.Store = (*MockStore)(nil)

// NewMockStore creates a new mock store with map-backed default implementations
func NewMockStore() *MockStore {
	m := &MockStore{
		entries:    make(map[string][]byte),
		ttls:       make(map[string]time.Duration),
		CallCounts: make(map[string]int),
	}

	m.GetFunc = func(_ context.Context, key storage.Key) ([]byte, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		v, ok := m.entries[key.String()]
		if !ok {
			return nil, storage.ErrNotFound
		}
		return v, nil
	}

	m.SetFunc = func(_ context.Context, key storage.Key, value []byte, ttl time.Duration) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.entries[key.String()] = value
		m.ttls[key.String()] = ttl
		return nil
	}

	m.DeleteFunc = func(_ context.Context, key storage.Key) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.entries, key.String())
		delete(m.ttls, key.String())
		return nil
	}

	m.TakeFunc = func(_ context.Context, key storage.Key) ([]byte, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		v, ok := m.entries[key.String()]
		if !ok {
			return nil, storage.ErrNotFound
		}
		delete(m.entries, key.String())
		delete(m.ttls, key.String())
		return v, nil
	}

	return m
}

func (m *MockStore) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Get calls GetFunc
func (m *MockStore) Get(ctx context.Context, key storage.Key) ([]byte, error) {
	m.count("Get")
	return m.GetFunc(ctx, key)
}

// Set calls SetFunc
func (m *MockStore) Set(ctx context.Context, key storage.Key, value []byte, ttl time.Duration) error {
	m.count("Set")
	return m.SetFunc(ctx, key, value, ttl)
}

// Delete calls DeleteFunc
func (m *MockStore) Delete(ctx context.Context, key storage.Key) error {
	m.count("Delete")
	return m.DeleteFunc(ctx, key)
}

// Take calls TakeFunc
func (m *MockStore) Take(ctx context.Context, key storage.Key) ([]byte, error) {
	m.count("Take")
	return m.TakeFunc(ctx, key)
}

// Calls returns the call count for method
func (m *MockStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// Mutations returns the number of Set, Delete and Take calls
func (m *MockStore) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts["Set"] + m.CallCounts["Delete"] + m.CallCounts["Take"]
}

// TTL returns the ttl passed to the last Set for key
func (m *MockStore) TTL(key storage.Key) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key.String()]
}

// Len returns the number of stored entries
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ResetCallCounts resets all call counters
func (m *MockStore) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}

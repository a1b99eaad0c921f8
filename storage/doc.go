// Package storage defines the key-value adapter used to persist sign-in state,
// and the two typed stores built on it.
//
//   - Store: the adapter contract (Get, Set with TTL, Delete, atomic Take)
//   - TransactionStore: pending handshake state keyed by a random flow ID,
//     short-lived and consumed exactly once
//   - TokenStore: the provider token bag keyed by browser session ID
//
// Absence is reported with ErrNotFound and is a normal outcome. Backend
// failures are wrapped in ErrUnavailable and must fail the request.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and single instances
//   - storage/mock: mock storage for unit testing
//   - storage/valkey: Valkey/Redis-compatible distributed storage for production
package storage

// Package valkey provides a Valkey storage backend for kv-oauth.
//
// Valkey is wire-compatible with Redis. Use this backend when several
// application instances must share sign-in transactions and sessions, or when
// sessions must survive restarts.
//
// # Key Schema
//
// Keys are the storage.Key parts joined with ':' behind a configurable prefix
// (default "kvoauth:"):
//
//	{prefix}oauth_sessions:{flowID}       -> JSON(OAuthSession), with TTL
//	{prefix}tokens_by_session:{sessionID} -> JSON(Tokens)
//
// # Atomic Take
//
// Take runs a Lua GET+DEL script, so a pending transaction is handed to at
// most one callback even when the same flow ID arrives at several instances.
//
// # Configuration
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "myapp:",
//	})
//
// With TLS:
//
//	store, err := valkey.New(valkey.Config{
//	    Address:  "valkey.example.com:6379",
//	    Password: os.Getenv("VALKEY_PASSWORD"),
//	    TLS:      &tls.Config{MinVersion: tls.VersionTLS12},
//	})
//
// Backend failures are returned wrapped in storage.ErrUnavailable. The store
// does not retry.
package valkey

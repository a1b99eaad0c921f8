// Package security holds the protective pieces around the sign-in flow:
// token encryption at rest, per-client rate limiting, request IDs, client IP
// extraction, response security headers and the audit log.
//
// # Rate limiting
//
// RateLimiter keeps one token bucket per key, normally the client IP from
// GetClientIP. The number of tracked keys is capped (DefaultMaxLimiters) and
// the least recently used key is evicted when the cap is reached, so a flood
// of distinct addresses cannot grow memory without bound. Idle keys are also
// swept every few minutes.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.GetClientIP(r, trustProxy, 1)) {
//	    http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
//	    return
//	}
//
// # Encryption
//
// Encryptor seals token values with AES-256-GCM before they reach the
// key-value store. Keys are either 32 random bytes (GenerateKey) or derived
// from a secret with HKDF-SHA256 (NewEncryptorFromSecret).
//
// # Audit
//
// Auditor writes one structured log line per security relevant event. Token
// values, codes and state never appear in it; session and flow IDs are
// hashed first.
package security

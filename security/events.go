package security

// Audit event types
const (
	// EventSignInStarted is logged when a sign-in transaction is created
	EventSignInStarted = "signin_started"

	// EventCallbackSucceeded is logged when a callback stored a new token bag
	EventCallbackSucceeded = "callback_succeeded"

	// EventCallbackRejected is logged when a callback names an unknown or
	// already used flow, or its state does not match
	EventCallbackRejected = "callback_rejected"

	// EventTokenExchangeFailed is logged when the provider refused the code
	EventTokenExchangeFailed = "token_exchange_failed" //nolint:gosec // event name, not a credential

	// EventSessionRotated is logged when a login replaced an existing session
	EventSessionRotated = "session_rotated"

	// EventSignedOut is logged when a session's tokens were discarded
	EventSignedOut = "signed_out"

	// EventRateLimitExceeded is logged when a client hit the sign-in rate limit
	EventRateLimitExceeded = "rate_limit_exceeded"
)

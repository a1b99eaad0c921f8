package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/giantswarm/kv-oauth/instrumentation"
)

// Auditor writes security events to the log. Session and flow IDs are
// hashed; token values, codes and state are never accepted.
type Auditor struct {
	logger          *slog.Logger
	enabled         bool
	instrumentation *instrumentation.Instrumentation
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetInstrumentation counts every logged event in the audit metric
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.instrumentation = inst
}

// Event is one audit record
type Event struct {
	Type      string
	SessionID string
	FlowID    string
	Provider  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs event. A nil or disabled Auditor does nothing.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"session_id_hash", hashForLogging(event.SessionID),
		"flow_id_hash", hashForLogging(event.FlowID),
		"provider", event.Provider,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.instrumentation != nil {
		a.instrumentation.Metrics().RecordAuditEvent(context.Background(), event.Type)
	}
}

// LogSignInStarted logs a new sign-in transaction
func (a *Auditor) LogSignInStarted(flowID, provider, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventSignInStarted,
		FlowID:    flowID,
		Provider:  provider,
		IPAddress: ipAddress,
	})
}

// LogCallbackSucceeded logs a completed login
func (a *Auditor) LogCallbackSucceeded(sessionID, provider, ipAddress string, hasRefresh bool) {
	a.LogEvent(Event{
		Type:      EventCallbackSucceeded,
		SessionID: sessionID,
		Provider:  provider,
		IPAddress: ipAddress,
		Details: map[string]any{
			"has_refresh_token": hasRefresh,
		},
	})
}

// LogCallbackRejected logs a callback refused before any token exchange
func (a *Auditor) LogCallbackRejected(flowID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventCallbackRejected,
		FlowID:    flowID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenExchangeFailed logs a provider refusing the authorization code
func (a *Auditor) LogTokenExchangeFailed(flowID, provider, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventTokenExchangeFailed,
		FlowID:    flowID,
		Provider:  provider,
		IPAddress: ipAddress,
	})
}

// LogSessionRotated logs a login that replaced oldSessionID
func (a *Auditor) LogSessionRotated(oldSessionID, provider, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventSessionRotated,
		SessionID: oldSessionID,
		Provider:  provider,
		IPAddress: ipAddress,
	})
}

// LogSignedOut logs a sign-out
func (a *Auditor) LogSignedOut(sessionID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventSignedOut,
		SessionID: sessionID,
		IPAddress: ipAddress,
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging returns a short SHA-256 prefix of sensitive, enough to
// correlate log lines without revealing the value.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}

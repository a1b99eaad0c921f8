package security

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/giantswarm/kv-oauth/instrumentation"
)

func newTestAuditor(t *testing.T, enabled bool) (*Auditor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func decodeAuditLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("audit output is not a single JSON line: %v\n%s", err, buf.String())
	}
	return rec
}

func TestNewAuditor(t *testing.T) {
	a := NewAuditor(nil, true)
	if a.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if !a.enabled {
		t.Error("enabled should be true")
	}
}

func TestAuditor_Disabled(t *testing.T) {
	a, buf := newTestAuditor(t, false)
	a.LogSignedOut("session", "192.0.2.1")
	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote %q", buf.String())
	}
}

func TestAuditor_NilSafe(t *testing.T) {
	var a *Auditor
	a.LogSignInStarted("flow", "github", "192.0.2.1")
}

func TestAuditor_Events(t *testing.T) {
	const (
		sessionID = "session-secret-id"
		flowID    = "flow-secret-id"
	)

	tests := []struct {
		name      string
		log       func(a *Auditor)
		wantType  string
		wantField string
	}{
		{
			name:      "sign-in started",
			log:       func(a *Auditor) { a.LogSignInStarted(flowID, "github", "192.0.2.1") },
			wantType:  EventSignInStarted,
			wantField: "flow_id_hash",
		},
		{
			name:      "callback succeeded",
			log:       func(a *Auditor) { a.LogCallbackSucceeded(sessionID, "google", "192.0.2.1", true) },
			wantType:  EventCallbackSucceeded,
			wantField: "session_id_hash",
		},
		{
			name:      "callback rejected",
			log:       func(a *Auditor) { a.LogCallbackRejected(flowID, "192.0.2.1", "invalid_state") },
			wantType:  EventCallbackRejected,
			wantField: "flow_id_hash",
		},
		{
			name:      "token exchange failed",
			log:       func(a *Auditor) { a.LogTokenExchangeFailed(flowID, "discord", "192.0.2.1") },
			wantType:  EventTokenExchangeFailed,
			wantField: "flow_id_hash",
		},
		{
			name:      "session rotated",
			log:       func(a *Auditor) { a.LogSessionRotated(sessionID, "github", "192.0.2.1") },
			wantType:  EventSessionRotated,
			wantField: "session_id_hash",
		},
		{
			name:      "signed out",
			log:       func(a *Auditor) { a.LogSignedOut(sessionID, "192.0.2.1") },
			wantType:  EventSignedOut,
			wantField: "session_id_hash",
		},
		{
			name:     "rate limit exceeded",
			log:      func(a *Auditor) { a.LogRateLimitExceeded("192.0.2.1", "/signin") },
			wantType: EventRateLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buf := newTestAuditor(t, true)
			tt.log(a)

			out := buf.String()
			if strings.Contains(out, sessionID) || strings.Contains(out, flowID) {
				t.Fatalf("audit line leaks a raw identifier: %s", out)
			}

			rec := decodeAuditLine(t, buf)
			if rec["event_type"] != tt.wantType {
				t.Errorf("event_type = %v, want %s", rec["event_type"], tt.wantType)
			}
			if tt.wantField != "" {
				got, _ := rec[tt.wantField].(string)
				if len(got) != 16 {
					t.Errorf("%s = %q, want a 16 char hash", tt.wantField, got)
				}
			}
		})
	}
}

func TestAuditor_WithInstrumentation(t *testing.T) {
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(t.Context()) }()

	a, buf := newTestAuditor(t, true)
	a.SetInstrumentation(inst)
	a.LogSignedOut("session", "192.0.2.1")

	if buf.Len() == 0 {
		t.Error("expected an audit line")
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}

	h1 := hashForLogging("data1")
	if len(h1) != 16 {
		t.Errorf("hash length = %d, want 16", len(h1))
	}
	if h1 != hashForLogging("data1") {
		t.Error("hash should be deterministic")
	}
	if h1 == hashForLogging("data2") {
		t.Error("different inputs should hash differently")
	}
}

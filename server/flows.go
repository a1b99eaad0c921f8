package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/internal/util"
	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/storage"
)

// Callback rejection reasons, used in metrics and audit events
const (
	reasonMissingParameters = "missing_parameters"
	reasonUnknownFlow       = "unknown_flow"
	reasonStateMismatch     = "state_mismatch"
	reasonUnknownProvider   = "unknown_provider"
)

// SignInResult is the outcome of SignIn
type SignInResult struct {
	// AuthURL is where the browser must be sent
	AuthURL string

	// FlowID names the pending transaction; the caller hands it back to
	// Callback, usually through a short-lived cookie.
	FlowID string
}

// CallbackResult is the outcome of a successful Callback
type CallbackResult struct {
	// SessionID is the new session; the caller must replace the browser's
	// session cookie with it.
	SessionID string

	Provider string
	Tokens   *storage.Tokens

	// Rotated is true when a previous session ID was replaced
	Rotated bool
}

// SignIn starts a login with the named provider for the browser holding
// sessionID. It persists the state and PKCE verifier under a new flow ID.
func (s *Server) SignIn(ctx context.Context, providerName, sessionID string) (result *SignInResult, err error) {
	ctx, span := s.startSpan(ctx, "server.SignIn")
	defer span.End()
	defer func() {
		if err != nil {
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
	}()

	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, providerName)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", storage.ErrInvalidKey)
	}

	flowID := s.newID()
	if flowID == sessionID {
		return nil, fmt.Errorf("%w: flow ID collides with session ID", storage.ErrInvalidKey)
	}

	state := s.newID()
	verifier := oauth2.GenerateVerifier()

	txn := &storage.OAuthSession{
		State:        state,
		CodeVerifier: verifier,
		Provider:     providerName,
		CreatedAt:    time.Now(),
	}
	if err := s.transactions.Start(ctx, flowID, txn); err != nil {
		return nil, err
	}

	authURL := provider.AuthorizationURL(state, oauth2.S256ChallengeFromVerifier(verifier))

	instrumentation.AddSignInAttributes(span, providerName, "S256")
	if m := s.metrics(); m != nil {
		m.RecordSignInStarted(ctx, providerName)
	}
	s.Auditor.LogSignInStarted(flowID, providerName, security.ClientIPFromContext(ctx))

	s.Logger.Info("Sign-in started",
		"provider", providerName,
		"flow_id_prefix", util.SafeTruncate(flowID, idLogLength))

	return &SignInResult{AuthURL: authURL, FlowID: flowID}, nil
}

// Callback completes the login identified by flowID. The transaction is
// consumed before anything else is checked, so a flow can be attempted only
// once. On success the tokens are stored under a new session ID and the
// tokens of oldSessionID, if any, are deleted.
func (s *Server) Callback(ctx context.Context, flowID, state, code, oldSessionID string) (result *CallbackResult, err error) {
	ctx, span := s.startSpan(ctx, "server.Callback")
	defer span.End()

	providerName := ""
	defer func() {
		outcome := "success"
		if err != nil {
			instrumentation.RecordError(span, err)
			outcome = callbackOutcome(err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		if m := s.metrics(); m != nil {
			m.RecordCallbackProcessed(ctx, providerName, outcome)
		}
	}()

	clientIP := security.ClientIPFromContext(ctx)

	if flowID == "" || state == "" || code == "" {
		s.rejectCallback(ctx, flowID, clientIP, reasonMissingParameters)
		return nil, ErrInvalidCallback
	}

	txn, err := s.transactions.Consume(ctx, flowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.rejectCallback(ctx, flowID, clientIP, reasonUnknownFlow)
			return nil, ErrInvalidState
		}
		return nil, err
	}
	providerName = txn.Provider

	if subtle.ConstantTimeCompare([]byte(txn.State), []byte(state)) != 1 {
		s.rejectCallback(ctx, flowID, clientIP, reasonStateMismatch)
		return nil, ErrInvalidState
	}

	provider, ok := s.providers[txn.Provider]
	if !ok {
		s.rejectCallback(ctx, flowID, clientIP, reasonUnknownProvider)
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, txn.Provider)
	}

	token, err := s.exchange(ctx, provider, code, txn.CodeVerifier)
	if err != nil {
		s.Auditor.LogTokenExchangeFailed(flowID, txn.Provider, clientIP)
		s.Logger.Warn("Token exchange failed",
			"provider", txn.Provider,
			"flow_id_prefix", util.SafeTruncate(flowID, idLogLength),
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	tokens := storage.TokensFromOAuth2(token)
	newSessionID := s.newID()
	if err := s.tokens.Set(ctx, newSessionID, tokens); err != nil {
		return nil, err
	}

	rotated := false
	if oldSessionID != "" && oldSessionID != newSessionID {
		rotated = s.dropReplacedSession(ctx, oldSessionID)
	}
	if rotated {
		s.Auditor.LogSessionRotated(oldSessionID, txn.Provider, clientIP)
		if m := s.metrics(); m != nil {
			m.RecordSessionRotated(ctx, txn.Provider)
		}
	}

	instrumentation.AddTokenAttributes(span, tokens.TokenType, tokens.RefreshToken != "")
	s.Auditor.LogCallbackSucceeded(newSessionID, txn.Provider, clientIP, tokens.RefreshToken != "")
	s.Logger.Info("Sign-in completed",
		"provider", txn.Provider,
		"session_id_prefix", util.SafeTruncate(newSessionID, idLogLength),
		"rotated", rotated)

	return &CallbackResult{
		SessionID: newSessionID,
		Provider:  txn.Provider,
		Tokens:    tokens,
		Rotated:   rotated,
	}, nil
}

// SignOut deletes the tokens of sessionID. An empty sessionID means the
// browser had no session; nothing is touched.
func (s *Server) SignOut(ctx context.Context, sessionID string) (err error) {
	ctx, span := s.startSpan(ctx, "server.SignOut")
	defer span.End()
	defer func() {
		if err != nil {
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		if m := s.metrics(); m != nil {
			m.RecordSignOut(ctx, sessionID != "")
		}
	}()

	if sessionID == "" {
		return nil
	}

	if err := s.tokens.Delete(ctx, sessionID); err != nil {
		return err
	}

	s.Auditor.LogSignedOut(sessionID, security.ClientIPFromContext(ctx))
	s.Logger.Info("Signed out",
		"session_id_prefix", util.SafeTruncate(sessionID, idLogLength))
	return nil
}

// GetTokens returns the tokens stored for sessionID, or nil when the
// session is not signed in.
func (s *Server) GetTokens(ctx context.Context, sessionID string) (*storage.Tokens, error) {
	return s.tokens.Get(ctx, sessionID)
}

// dropReplacedSession deletes the tokens of a session whose cookie is about
// to be replaced and reports whether it held any. A session created at
// sign-in that never completed a login is left alone. Failures are logged only.
func (s *Server) dropReplacedSession(ctx context.Context, sessionID string) bool {
	prev, err := s.tokens.Get(ctx, sessionID)
	if err == nil && prev == nil {
		return false
	}
	if err := s.tokens.Delete(ctx, sessionID); err != nil {
		s.Logger.Warn("Failed to delete tokens of replaced session",
			"session_id_prefix", util.SafeTruncate(sessionID, idLogLength),
			"error", err)
	}
	return true
}

func (s *Server) exchange(ctx context.Context, provider providers.Provider, code, verifier string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Config.ExchangeTimeout)
	defer cancel()

	ctx, span := s.startSpan(ctx, "provider.ExchangeCode")
	defer span.End()
	instrumentation.AddProviderAttributes(span, provider.Name(), "exchange_code")

	start := time.Now()
	token, err := provider.ExchangeCode(ctx, code, verifier)
	if m := s.metrics(); m != nil {
		m.RecordProviderAPICall(ctx, provider.Name(), "exchange_code",
			float64(time.Since(start).Microseconds())/1000, err)
	}
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		err := fmt.Errorf("provider returned no access token")
		instrumentation.RecordError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return token, nil
}

func (s *Server) rejectCallback(ctx context.Context, flowID, clientIP, reason string) {
	if m := s.metrics(); m != nil {
		m.RecordStateMismatch(ctx, reason)
	}
	s.Auditor.LogCallbackRejected(flowID, clientIP, reason)
	s.Logger.Warn("Callback rejected",
		"reason", reason,
		"flow_id_prefix", util.SafeTruncate(flowID, idLogLength))
}

func callbackOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCallback):
		return "invalid_callback"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrTokenExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, storage.ErrUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

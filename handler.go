package kvoauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/server"
	"github.com/giantswarm/kv-oauth/session"
	"github.com/giantswarm/kv-oauth/storage"
)

// HTTP endpoint names used in metrics and spans
const (
	endpointSignIn   = "signin"
	endpointCallback = "callback"
	endpointSignOut  = "signout"
	endpointSession  = "session"
)

// Handler is a thin HTTP adapter for the sign-in flows of a server.Server.
// It owns cookies, redirects and rate limiting; the Server owns storage.
type Handler struct {
	server      *server.Server
	config      *Config
	logger      *slog.Logger
	rateLimiter *security.RateLimiter
	routes      http.Handler

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New builds the configured providers and returns a Handler storing its
// state in store.
func New(cfg *Config, store storage.Store) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provs, err := NewProviders(cfg.Providers)
	if err != nil {
		return nil, err
	}
	return newHandler(cfg, store, provs)
}

// NewWithProviders returns a Handler over already constructed providers.
// cfg.Providers is ignored.
func NewWithProviders(cfg *Config, store storage.Store, provs []providers.Provider) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.applyDefaults()
	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return newHandler(cfg, store, provs)
}

func newHandler(cfg *Config, store storage.Store, provs []providers.Provider) (*Handler, error) {
	srv, err := server.New(store, provs, &server.Config{
		TransactionTTL:  cfg.TransactionTTL,
		TokenTTL:        cfg.TokenTTL,
		ExchangeTimeout: cfg.ExchangeTimeout,
	}, cfg.Logger)
	if err != nil {
		return nil, err
	}

	enc, err := newEncryptor(cfg.Security)
	if err != nil {
		return nil, err
	}
	if enc.IsEnabled() {
		srv.SetEncryptor(enc)
	} else {
		cfg.Logger.Warn("Token encryption at rest is disabled; set an encryption key or secret")
	}
	srv.SetAuditor(security.NewAuditor(cfg.Logger, cfg.Security.EnableAuditLogging))

	h := &Handler{
		server: srv,
		config: cfg,
		logger: cfg.Logger,
	}
	if cfg.RateLimit.Rate > 0 {
		h.rateLimiter = security.NewRateLimiterWithConfig(
			cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.MaxEntries, cfg.Logger)
	}
	h.routes = security.RequestIDMiddleware(h.ServeMux())

	return h, nil
}

func newEncryptor(cfg SecurityConfig) (*security.Encryptor, error) {
	switch {
	case len(cfg.EncryptionKey) > 0:
		return security.NewEncryptor(cfg.EncryptionKey)
	case cfg.EncryptionSecret != "":
		return security.NewEncryptorFromSecret(cfg.EncryptionSecret)
	default:
		return security.NewEncryptor(nil)
	}
}

// SetInstrumentation enables spans and metrics for the handler, the
// server and audit events.
func (h *Handler) SetInstrumentation(inst *instrumentation.Instrumentation) {
	h.instrumentation = inst
	if inst != nil {
		h.tracer = inst.Tracer("http")
	}
	h.server.SetInstrumentation(inst)
	if h.server.Auditor != nil {
		h.server.Auditor.SetInstrumentation(inst)
	}
}

// Server returns the underlying flow orchestrator
func (h *Handler) Server() *server.Server {
	return h.server
}

// Close releases background resources
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// ServeHTTP serves the routes of ServeMux behind the request ID middleware
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.routes.ServeHTTP(w, r)
}

// ServeMux returns a mux with the sign-in routes registered:
//
//	GET  /signin/{provider}
//	GET  /callback
//	GET  /signout, POST /signout
//	GET  /session
func (h *Handler) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /signin/{provider}", h.HandleSignInRoute)
	mux.HandleFunc("GET /callback", h.HandleCallback)
	signOut := func(w http.ResponseWriter, r *http.Request) {
		h.HandleSignOut(w, r, "")
	}
	mux.HandleFunc("GET /signout", signOut)
	mux.HandleFunc("POST /signout", signOut)
	mux.HandleFunc("GET /session", h.HandleSession)
	return mux
}

// HandleSignInRoute is HandleSignIn for a pattern with a {provider}
// wildcard, e.g. mux.HandleFunc("GET /login/{provider}", h.HandleSignInRoute).
func (h *Handler) HandleSignInRoute(w http.ResponseWriter, r *http.Request) {
	h.HandleSignIn(w, r, r.PathValue("provider"))
}

// HandleSignIn starts a login with the named provider. A browser without a
// session cookie gets one; the flow ID travels in a short-lived cookie of its
// own and the browser is redirected to the provider.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request, providerName string) {
	startTime := time.Now()
	ctx, span, secure := h.begin(w, r, "http.SignIn")
	defer span.End()

	clientIP := security.ClientIPFromContext(ctx)
	if h.rateLimiter != nil && !h.rateLimiter.Allow(clientIP) {
		h.requestLogger(ctx).Warn("Sign-in rate limit exceeded", "ip", clientIP)
		h.server.Auditor.LogRateLimitExceeded(clientIP, endpointSignIn)
		if m := h.metrics(); m != nil {
			m.RecordRateLimitExceeded(ctx, "ip")
		}
		fe := NewFlowError(ErrorCodeRateLimitExceeded, "too many sign-in attempts", http.StatusTooManyRequests)
		h.fail(ctx, w, r, span, endpointSignIn, fe, startTime)
		return
	}

	cookieName := session.CookieName(h.config.Cookie.Name, secure)
	sessionID, isNew := session.GetOrCreateID(r, cookieName)

	result, err := h.server.SignIn(ctx, providerName, sessionID)
	if err != nil {
		h.fail(ctx, w, r, span, endpointSignIn, err, startTime)
		return
	}

	if isNew {
		session.SetCookie(w, cookieName, sessionID, secure, h.config.Cookie.MaxAge)
	}
	session.SetCookie(w, session.CookieName(session.FlowCookieName, secure), result.FlowID, secure, h.config.TransactionTTL)

	instrumentation.AddSignInAttributes(span, providerName, "S256")
	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, span, r, endpointSignIn, http.StatusFound, startTime)
	session.Redirect(w, result.AuthURL)
}

// HandleCallback completes a login. The flow cookie is cleared whatever the
// outcome. On success the session cookie is replaced with the new session.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span, secure := h.begin(w, r, "http.Callback")
	defer span.End()

	flowCookie := session.CookieName(session.FlowCookieName, secure)
	cookieName := session.CookieName(h.config.Cookie.Name, secure)
	session.DeleteCookie(w, flowCookie, secure)

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.requestLogger(ctx).Warn("Provider returned error",
			"error", providerErr,
			"description", query.Get("error_description"))
		h.fail(ctx, w, r, span, endpointCallback,
			fmt.Errorf("%w: provider returned %q", ErrInvalidCallback, providerErr), startTime)
		return
	}

	flowID, _ := session.ID(r, flowCookie)
	oldSessionID, _ := session.ID(r, cookieName)

	result, err := h.server.Callback(ctx, flowID, query.Get("state"), query.Get("code"), oldSessionID)
	if err != nil {
		h.fail(ctx, w, r, span, endpointCallback, err, startTime)
		return
	}

	session.SetCookie(w, cookieName, result.SessionID, secure, h.config.Cookie.MaxAge)

	instrumentation.AddProviderAttributes(span, result.Provider, "callback")
	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, span, r, endpointCallback, http.StatusFound, startTime)
	session.Redirect(w, h.config.SuccessRedirectURL)
}

// HandleSignOut deletes the tokens of the browser's session, clears the
// session cookie and redirects to redirectTo (default
// Config.SignOutRedirectURL). A browser without a session cookie is only
// redirected; the store is not touched.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request, redirectTo string) {
	startTime := time.Now()
	ctx, span, secure := h.begin(w, r, "http.SignOut")
	defer span.End()

	if redirectTo == "" {
		redirectTo = h.config.SignOutRedirectURL
	}

	cookieName := session.CookieName(h.config.Cookie.Name, secure)
	sessionID, ok := session.ID(r, cookieName)

	if err := h.server.SignOut(ctx, sessionID); err != nil {
		h.fail(ctx, w, r, span, endpointSignOut, err, startTime)
		return
	}
	if ok {
		session.DeleteCookie(w, cookieName, secure)
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, span, r, endpointSignOut, http.StatusFound, startTime)
	session.Redirect(w, redirectTo)
}

// sessionStatus is the body of HandleSession
type sessionStatus struct {
	SignedIn bool   `json:"signed_in"`
	Expired  bool   `json:"expired,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// HandleSession reports whether the browser is signed in. Token values are
// never included.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span, _ := h.begin(w, r, "http.Session")
	defer span.End()

	tokens, err := h.Tokens(ctx, r)
	if err != nil {
		h.fail(ctx, w, r, span, endpointSession, err, startTime)
		return
	}

	status := sessionStatus{SignedIn: tokens != nil}
	if tokens != nil {
		status.Expired = security.IsTokenExpired(tokens.Expiry)
		status.Scope = tokens.Scope
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, span, r, endpointSession, http.StatusOK, startTime)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

// SessionID returns the session ID carried by r, if any
func (h *Handler) SessionID(r *http.Request) (string, bool) {
	secure := session.IsSecure(r, h.config.Security.TrustProxy)
	return session.ID(r, session.CookieName(h.config.Cookie.Name, secure))
}

// Tokens returns the tokens of the session carried by r, or nil when the
// browser is not signed in.
func (h *Handler) Tokens(ctx context.Context, r *http.Request) (*storage.Tokens, error) {
	sessionID, ok := h.SessionID(r)
	if !ok {
		return nil, nil
	}
	return h.server.GetTokens(ctx, sessionID)
}

// AccessToken returns the access token of the session carried by r, or ""
// when the browser is not signed in or the token has expired.
func (h *Handler) AccessToken(ctx context.Context, r *http.Request) (string, error) {
	tokens, err := h.Tokens(ctx, r)
	if err != nil || tokens == nil {
		return "", err
	}
	if security.IsTokenExpired(tokens.Expiry) {
		return "", nil
	}
	return tokens.AccessToken, nil
}

// begin starts the span, sets the security headers and stores the client
// IP in the context. It reports whether the request arrived over HTTPS.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request, spanName string) (context.Context, trace.Span, bool) {
	ctx := r.Context()
	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, spanName)
	} else {
		span = tracenoop.Span{}
	}

	secure := session.IsSecure(r, h.config.Security.TrustProxy)
	security.SetSecurityHeaders(w, secure)

	clientIP := security.GetClientIP(r, h.config.Security.TrustProxy, h.config.Security.TrustedProxyCount)
	ctx = security.WithClientIP(ctx, clientIP)
	if h.instrumentation != nil && h.instrumentation.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, clientIP)
	}
	return ctx, span, secure
}

// fail turns err into a redirect to the error URL or a small JSON error.
// The browser only ever sees the generic code.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, endpoint string, err error, startTime time.Time) {
	fe := flowErrorFor(err)
	instrumentation.RecordError(span, err)

	logger := h.requestLogger(ctx)
	if fe.Status >= http.StatusInternalServerError {
		logger.Error("Request failed", "endpoint", endpoint, "code", fe.Code, "error", err)
	} else {
		logger.Warn("Request rejected", "endpoint", endpoint, "code", fe.Code, "error", err)
	}

	h.recordHTTP(ctx, span, r, endpoint, fe.Status, startTime)

	if fe.Redirects() {
		session.Redirect(w, h.errorRedirectURL(fe.Code))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(fe.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": fe.Code,
	})
}

// errorRedirectURL appends code to Config.ErrorRedirectURL
func (h *Handler) errorRedirectURL(code string) string {
	u, err := url.Parse(h.config.ErrorRedirectURL)
	if err != nil {
		return DefaultRedirectURL + "?error=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) requestLogger(ctx context.Context) *slog.Logger {
	if id := security.GetRequestID(ctx); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

func (h *Handler) metrics() *instrumentation.Metrics {
	if h.instrumentation == nil {
		return nil
	}
	return h.instrumentation.Metrics()
}

func (h *Handler) recordHTTP(ctx context.Context, span trace.Span, r *http.Request, endpoint string, status int, startTime time.Time) {
	instrumentation.AddHTTPAttributes(span, r.Method, endpoint, status)
	if m := h.metrics(); m != nil {
		m.RecordHTTPRequest(ctx, r.Method, endpoint, status, float64(time.Since(startTime).Microseconds())/1000)
	}
}

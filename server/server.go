package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/kv-oauth/instrumentation"
	"github.com/giantswarm/kv-oauth/providers"
	"github.com/giantswarm/kv-oauth/security"
	"github.com/giantswarm/kv-oauth/session"
	"github.com/giantswarm/kv-oauth/storage"
)

// idLogLength is the number of characters of an identifier included in logs
const idLogLength = 8

// Server runs sign-in, callback and sign-out against a key-value store and a
// set of providers.
type Server struct {
	providers    map[string]providers.Provider
	transactions *storage.TransactionStore
	tokens       *storage.TokenStore

	Auditor *security.Auditor
	Logger  *slog.Logger
	Config  *Config

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// newID draws flow IDs, states and session IDs
	newID func() string
}

// New creates a Server. Provider names must be unique.
func New(store storage.Store, provs []providers.Provider, config *Config, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	byName := make(map[string]providers.Provider, len(provs))
	for _, p := range provs {
		if p == nil {
			return nil, fmt.Errorf("provider cannot be nil")
		}
		name := p.Name()
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		byName[name] = p
	}

	transactions := storage.NewTransactionStore(store, config.TransactionTTL)
	transactions.SetLogger(logger)
	tokens := storage.NewTokenStore(store, config.TokenTTL)
	tokens.SetLogger(logger)

	return &Server{
		providers:    byName,
		transactions: transactions,
		tokens:       tokens,
		Config:       config,
		Logger:       logger,
		newID:        session.NewID,
	}, nil
}

// SetEncryptor enables encryption of stored access and refresh tokens
func (s *Server) SetEncryptor(enc *security.Encryptor) {
	s.tokens.SetEncryptor(enc)
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation enables spans and flow metrics
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
}

// Provider returns the configured provider named name
func (s *Server) Provider(name string) (providers.Provider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// ProviderNames returns the configured provider names in sorted order
func (s *Server) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tokens returns the token store, for application code that reads tokens
// outside a request
func (s *Server) Tokens() *storage.TokenStore {
	return s.tokens
}

func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, tracenoop.Span{}
	}
	return s.tracer.Start(ctx, name)
}

func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

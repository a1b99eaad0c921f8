// Package mock provides a Provider implementation for tests.
package mock

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kv-oauth/providers"
)

// MockProvider is a scriptable providers.Provider
type MockProvider struct {
	NameFunc             func() string
	AuthorizationURLFunc func(state, codeChallenge string) string
	ExchangeCodeFunc     func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	mu         sync.Mutex
	CallCounts map[string]int

	// LastCode and LastVerifier hold the arguments of the latest exchange
	LastCode     string
	LastVerifier string
}

var _ providers.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock named name that always exchanges successfully
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return name
		},
		AuthorizationURLFunc: func(state, codeChallenge string) string {
			q := url.Values{}
			q.Set("state", state)
			q.Set("code_challenge", codeChallenge)
			q.Set("code_challenge_method", "S256")
			return "https://" + name + ".example.com/authorize?" + q.Encode()
		},
		ExchangeCodeFunc: func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken:  "mock-access-token",
				TokenType:    "Bearer",
				RefreshToken: "mock-refresh-token",
			}, nil
		},
	}
}

func (m *MockProvider) incrementCallCount(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Calls returns how many times method was invoked
func (m *MockProvider) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// Name returns the mock's name
func (m *MockProvider) Name() string {
	m.incrementCallCount("Name")
	return m.NameFunc()
}

// AuthorizationURL returns a URL carrying state and the challenge
func (m *MockProvider) AuthorizationURL(state, codeChallenge string) string {
	m.incrementCallCount("AuthorizationURL")
	return m.AuthorizationURLFunc(state, codeChallenge)
}

// ExchangeCode records its arguments and calls ExchangeCodeFunc
func (m *MockProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	m.incrementCallCount("ExchangeCode")
	m.mu.Lock()
	m.LastCode = code
	m.LastVerifier = codeVerifier
	m.mu.Unlock()
	return m.ExchangeCodeFunc(ctx, code, codeVerifier)
}

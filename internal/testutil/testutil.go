package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by d
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// TokenResponse is the JSON body a TokenEndpoint answers with
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenEndpoint is a fake provider token endpoint. It records every form it
// receives and answers with Response, or with an OAuth2 error body when
// ErrorCode is set.
type TokenEndpoint struct {
	Server *httptest.Server

	mu        sync.Mutex
	Response  TokenResponse
	ErrorCode string
	requests  []url.Values
}

// NewTokenEndpoint starts a TokenEndpoint that is closed with the test.
func NewTokenEndpoint(t *testing.T) *TokenEndpoint {
	t.Helper()

	te := &TokenEndpoint{
		Response: TokenResponse{
			AccessToken:  "test-access-token",
			TokenType:    "Bearer",
			RefreshToken: "test-refresh-token",
			ExpiresIn:    3600,
			Scope:        "identify email",
		},
	}
	te.Server = httptest.NewServer(http.HandlerFunc(te.serveHTTP))
	t.Cleanup(te.Server.Close)
	return te
}

func (te *TokenEndpoint) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	form := url.Values{}
	for k, v := range r.PostForm {
		form[k] = v
	}
	if user, pass, ok := r.BasicAuth(); ok {
		form.Set("basic_client_id", user)
		form.Set("basic_client_secret", pass)
	}

	te.mu.Lock()
	te.requests = append(te.requests, form)
	resp := te.Response
	errCode := te.ErrorCode
	te.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if errCode != "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode})
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// URL returns the token endpoint URL
func (te *TokenEndpoint) URL() string {
	return te.Server.URL + "/token"
}

// Fail makes every following exchange answer with the OAuth2 error code
func (te *TokenEndpoint) Fail(code string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.ErrorCode = code
}

// Requests returns a copy of the forms received so far
func (te *TokenEndpoint) Requests() []url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	out := make([]url.Values, len(te.requests))
	copy(out, te.requests)
	return out
}

// LastRequest returns the most recent form, or nil
func (te *TokenEndpoint) LastRequest() url.Values {
	reqs := te.Requests()
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// GenerateTestToken creates an OAuth2 token expiring in an hour
func GenerateTestToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  GenerateRandomString(32),
		TokenType:    "Bearer",
		RefreshToken: GenerateRandomString(32),
		Expiry:       time.Now().Add(time.Hour),
	}
}

// GenerateRandomString generates a random URL-safe string of length characters
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

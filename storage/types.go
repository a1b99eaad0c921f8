package storage

import (
	"time"

	"golang.org/x/oauth2"
)

// OAuthSession is the pending handshake state for one authorization flow.
// It is keyed by a random flow ID and is consumed exactly once.
type OAuthSession struct {
	State        string // anti-CSRF token echoed back by the provider
	CodeVerifier string // PKCE verifier
	Provider     string // provider name the flow was started against
	CreatedAt    time.Time
}

// Tokens is the opaque token bag stored for a signed-in browser session.
type Tokens struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresIn    int64 // seconds, as reported by the provider
	Expiry       time.Time
	Scope        string
}

// TokensFromOAuth2 converts a token returned by an exchange.
func TokensFromOAuth2(t *oauth2.Token) *Tokens {
	if t == nil {
		return nil
	}
	tokens := &Tokens{
		AccessToken:  t.AccessToken,
		TokenType:    t.Type(),
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		Expiry:       t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		tokens.Scope = scope
	}
	return tokens
}

// OAuth2Token returns the bag as an oauth2.Token, e.g. for use with
// oauth2.StaticTokenSource when calling the provider API.
func (t *Tokens) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		ExpiresIn:    t.ExpiresIn,
	}
}

// oauthSessionJSON is the persisted representation of an OAuthSession.
type oauthSessionJSON struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	Provider     string `json:"provider,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

func toOAuthSessionJSON(s *OAuthSession) *oauthSessionJSON {
	j := &oauthSessionJSON{
		State:        s.State,
		CodeVerifier: s.CodeVerifier,
		Provider:     s.Provider,
	}
	if !s.CreatedAt.IsZero() {
		j.CreatedAt = s.CreatedAt.Unix()
	}
	return j
}

func fromOAuthSessionJSON(j *oauthSessionJSON) *OAuthSession {
	s := &OAuthSession{
		State:        j.State,
		CodeVerifier: j.CodeVerifier,
		Provider:     j.Provider,
	}
	if j.CreatedAt > 0 {
		s.CreatedAt = time.Unix(j.CreatedAt, 0)
	}
	return s
}

// tokensJSON is the persisted representation of Tokens.
type tokensJSON struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scope        string    `json:"scope,omitempty"`
}

func toTokensJSON(t *Tokens) *tokensJSON {
	j := &tokensJSON{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		Expiry:       t.Expiry,
		Scope:        t.Scope,
	}
	return j
}

func fromTokensJSON(j *tokensJSON) *Tokens {
	t := &Tokens{
		AccessToken:  j.AccessToken,
		TokenType:    j.TokenType,
		RefreshToken: j.RefreshToken,
		ExpiresIn:    j.ExpiresIn,
		Expiry:       j.Expiry,
		Scope:        j.Scope,
	}
	return t
}

package storage

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokensFromOAuth2(t *testing.T) {
	expiry := time.Unix(1700000000, 0)
	tok := (&oauth2.Token{
		AccessToken:  "access",
		TokenType:    "bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
		ExpiresIn:    3600,
	}).WithExtra(map[string]any{"scope": "read:user"})

	got := TokensFromOAuth2(tok)
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("tokens = %+v", got)
	}
	if got.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want %q", got.TokenType, "Bearer")
	}
	if got.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", got.ExpiresIn)
	}
	if got.Scope != "read:user" {
		t.Errorf("Scope = %q, want %q", got.Scope, "read:user")
	}
	if !got.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", got.Expiry, expiry)
	}

	back := got.OAuth2Token()
	if back.AccessToken != "access" || back.RefreshToken != "refresh" || !back.Expiry.Equal(expiry) {
		t.Errorf("OAuth2Token() = %+v", back)
	}

	if TokensFromOAuth2(nil) != nil {
		t.Error("TokensFromOAuth2(nil) should be nil")
	}
	if (*Tokens)(nil).OAuth2Token() != nil {
		t.Error("nil Tokens should convert to nil")
	}
}

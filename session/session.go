package session

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultCookieName carries the session ID
	DefaultCookieName = "site-session"

	// FlowCookieName carries the flow ID between sign-in and callback
	FlowCookieName = "oauth-session"

	// SecurePrefix is prepended to cookie names on secure transport
	SecurePrefix = "__Host-"
)

// NewID returns a new session identifier: 32 random bytes, base64url
// encoded without padding.
func NewID() string {
	return oauth2.GenerateVerifier()
}

// ID returns the value of the named cookie and whether it was present and
// not empty.
func ID(r *http.Request, cookieName string) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// GetOrCreateID returns the session ID carried by the named cookie, or a new
// one with isNew set. It never touches storage; the caller sets the cookie
// when isNew is true.
func GetOrCreateID(r *http.Request, cookieName string) (id string, isNew bool) {
	if id, ok := ID(r, cookieName); ok {
		return id, false
	}
	return NewID(), true
}

// CookieName returns base, prefixed with SecurePrefix when secure.
func CookieName(base string, secure bool) string {
	if secure {
		return SecurePrefix + base
	}
	return base
}

// IsSecure reports whether r arrived over HTTPS. X-Forwarded-Proto is only
// honoured when trustProxy is set.
func IsSecure(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	if trustProxy {
		proto := r.Header.Get("X-Forwarded-Proto")
		// the first value is the one the client used
		if i := strings.IndexByte(proto, ','); i >= 0 {
			proto = proto[:i]
		}
		return strings.EqualFold(strings.TrimSpace(proto), "https")
	}
	return false
}

// SetCookie writes a cookie with Path=/, HttpOnly and SameSite=Lax, adding
// Secure when secure. A maxAge of 0 makes it a browser-session cookie.
func SetCookie(w http.ResponseWriter, name, value string, secure bool, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, c)
}

// DeleteCookie expires the named cookie with the same attributes SetCookie uses.
func DeleteCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// Redirect answers 302 Found with an empty body and location copied verbatim
// into the Location header. location is not validated; callers pass only
// configured or provider-issued URLs.
func Redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

package security

import "net/http"

// SetSecurityHeaders sets headers for sign-in, callback and sign-out
// responses. These responses are redirects or tiny JSON bodies and must never
// be cached or framed. HSTS is only sent over secure transport.
func SetSecurityHeaders(w http.ResponseWriter, secure bool) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// the provider must not learn the callback URL, which carries the code
	h.Set("Referrer-Policy", "no-referrer")

	if secure {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
}

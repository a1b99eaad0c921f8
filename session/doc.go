// Package session manages the browser side of a login: the random session
// identifier, the cookies that carry it and the redirects that move the
// browser between the application and the provider.
//
// The session ID cookie is named "site-session" on plain HTTP and
// "__Host-site-session" on secure transport, which pins it to the exact host
// and path "/". Cookies are HttpOnly and SameSite=Lax so they survive the
// top-level redirect back from the provider.
package session

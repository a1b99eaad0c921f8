// Package google implements the Google OAuth2 provider.
//
// Google requires a redirect URL and at least one scope, for example
// "openid" and "email".
package google

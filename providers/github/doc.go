// Package github implements the GitHub OAuth2 provider.
//
// Redirect URL and scopes are optional: GitHub falls back to the callback
// URL registered with the OAuth app and grants public read access.
package github

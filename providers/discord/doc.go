// Package discord implements the Discord OAuth2 provider.
//
// Discord requires a redirect URL and at least one scope, for example
// "identify".
package discord

// Package testutil provides test helpers: a fake OAuth2 token endpoint,
// token fixtures and a controllable clock.
package testutil

// Package providers defines the OAuth2 client abstraction used by the sign-in
// flow and the tagged configuration shared by the concrete providers in the
// discord, github and google subpackages.
//
// A provider only builds authorization URLs and exchanges authorization codes.
// It never inspects the tokens it receives; they are stored as an opaque bag.
package providers

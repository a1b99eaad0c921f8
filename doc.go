// Package kvoauth signs users in with third-party OAuth2 providers and keeps
// their provider tokens in a key-value store, keyed by a random session ID
// carried in a browser cookie.
//
// A sign-in stores the state and PKCE verifier under a fresh flow ID, which
// travels to the callback in its own short-lived cookie. The callback
// consumes that entry exactly once, exchanges the code and stores the tokens
// under a newly issued session ID; the tokens of any previous session of the
// browser are deleted. Sign-out deletes the tokens and clears the cookie.
//
// Basic usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	h, err := kvoauth.New(&kvoauth.Config{
//		Providers: []providers.ProviderConfig{{
//			Kind:         providers.KindGitHub,
//			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
//			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
//		}},
//	}, store)
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.Handle("/", h)
//
// Application handlers read the signed-in user's tokens with
// Handler.Tokens or Handler.AccessToken.
package kvoauth

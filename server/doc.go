// Package server implements the session-and-token lifecycle of an OAuth2
// login, independent of HTTP.
//
// A login runs in two steps. SignIn creates a single-use transaction holding
// the state and PKCE verifier under a fresh random flow ID and returns the
// provider's authorization URL. Callback consumes that transaction, checks
// the state, exchanges the code and stores the resulting tokens under a new
// session ID, discarding whatever the previous session held. SignOut deletes
// the tokens of a session.
//
// Example usage:
//
//	store := memory.New()
//	gh, _ := github.NewProvider(providers.ProviderConfig{
//	    ClientID:     clientID,
//	    ClientSecret: clientSecret,
//	})
//
//	srv, err := server.New(store, []providers.Provider{gh}, &server.Config{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := srv.SignIn(ctx, "github", sessionID)
//	// redirect the browser to res.AuthURL, remember res.FlowID
package server

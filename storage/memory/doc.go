// Package memory provides an in-memory storage.Store.
//
// Entries live in a map guarded by a sync.RWMutex. Expired entries are hidden
// from reads immediately and swept by a background goroutine; call Stop to end
// it. Take runs under the write lock, so a pending sign-in transaction can be
// consumed at most once even under concurrent callbacks.
//
// The store is suitable for development, tests and single-instance deployments.
// Use storage/valkey when several instances share sessions.
//
//	store := memory.New()
//	defer store.Stop()
//
//	transactions := storage.NewTransactionStore(store, 10*time.Minute)
//	tokens := storage.NewTokenStore(store, 0)
package memory

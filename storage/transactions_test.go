package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/kv-oauth/storage"
	"github.com/giantswarm/kv-oauth/storage/memory"
	"github.com/giantswarm/kv-oauth/storage/mock"
)

func newTransactionStore(t *testing.T) *storage.TransactionStore {
	t.Helper()
	backend := memory.New()
	t.Cleanup(backend.Stop)
	return storage.NewTransactionStore(backend, time.Minute)
}

func TestTransactionStore_StartConsume(t *testing.T) {
	ts := newTransactionStore(t)
	ctx := context.Background()

	flowID := uuid.NewString()
	want := &storage.OAuthSession{
		State:        uuid.NewString(),
		CodeVerifier: uuid.NewString(),
		Provider:     "github",
		CreatedAt:    time.Unix(1700000000, 0),
	}

	if err := ts.Start(ctx, flowID, want); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := ts.Consume(ctx, flowID)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got.State != want.State || got.CodeVerifier != want.CodeVerifier {
		t.Errorf("Consume() = %+v, want %+v", got, want)
	}
	if got.Provider != want.Provider || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Consume() = %+v, want %+v", got, want)
	}
}

func TestTransactionStore_ConsumeIsSingleUse(t *testing.T) {
	ts := newTransactionStore(t)
	ctx := context.Background()

	flowID := uuid.NewString()
	if err := ts.Start(ctx, flowID, &storage.OAuthSession{State: "s", CodeVerifier: "v"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := ts.Consume(ctx, flowID); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := ts.Consume(ctx, flowID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Consume() #%d error = %v, want ErrNotFound", i+2, err)
		}
	}
}

func TestTransactionStore_ConsumeUnknown(t *testing.T) {
	ts := newTransactionStore(t)

	tests := []struct {
		name   string
		flowID string
	}{
		{"never started", uuid.NewString()},
		{"empty flow id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Consume(context.Background(), tt.flowID)
			if !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("Consume() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestTransactionStore_ConcurrentDistinctFlows(t *testing.T) {
	ts := newTransactionStore(t)
	ctx := context.Background()

	const flows = 50
	ids := make([]string, flows)
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_ = ts.Start(ctx, id, &storage.OAuthSession{
				State:        fmt.Sprintf("state-%d", i),
				CodeVerifier: fmt.Sprintf("verifier-%d", i),
			})
		}(i, id)
	}
	wg.Wait()

	errs := make(chan error, flows*2)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			got, err := ts.Consume(ctx, id)
			if err != nil {
				errs <- fmt.Errorf("flow %d: %w", i, err)
				return
			}
			if got.State != fmt.Sprintf("state-%d", i) || got.CodeVerifier != fmt.Sprintf("verifier-%d", i) {
				errs <- fmt.Errorf("flow %d: got %+v", i, got)
			}
			if _, err := ts.Consume(ctx, id); !errors.Is(err, storage.ErrNotFound) {
				errs <- fmt.Errorf("flow %d: second consume error = %v", i, err)
			}
		}(i, id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestTransactionStore_TTL(t *testing.T) {
	backend := mock.NewMockStore()
	ctx := context.Background()

	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"explicit", 5 * time.Minute, 5 * time.Minute},
		{"zero uses default", 0, storage.DefaultTransactionTTL},
		{"negative uses default", -time.Second, storage.DefaultTransactionTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := storage.NewTransactionStore(backend, tt.ttl)
			if ts.TTL() != tt.want {
				t.Errorf("TTL() = %v, want %v", ts.TTL(), tt.want)
			}

			flowID := uuid.NewString()
			if err := ts.Start(ctx, flowID, &storage.OAuthSession{State: "s", CodeVerifier: "v"}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if got := backend.TTL(storage.Key{storage.NamespaceOAuthSessions, flowID}); got != tt.want {
				t.Errorf("backend ttl = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransactionStore_Expired(t *testing.T) {
	backend := memory.New()
	defer backend.Stop()
	ts := storage.NewTransactionStore(backend, 10*time.Millisecond)
	ctx := context.Background()

	flowID := uuid.NewString()
	if err := ts.Start(ctx, flowID, &storage.OAuthSession{State: "s", CodeVerifier: "v"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := ts.Consume(ctx, flowID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Consume() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestTransactionStore_Start_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("nil session", func(t *testing.T) {
		ts := storage.NewTransactionStore(mock.NewMockStore(), 0)
		if err := ts.Start(ctx, "flow", nil); err == nil {
			t.Error("Start() with nil session should fail")
		}
	})

	t.Run("empty flow id", func(t *testing.T) {
		ts := storage.NewTransactionStore(mock.NewMockStore(), 0)
		err := ts.Start(ctx, "", &storage.OAuthSession{})
		if !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Start() error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("backend unavailable", func(t *testing.T) {
		backend := mock.NewMockStore()
		backend.SetFunc = func(context.Context, storage.Key, []byte, time.Duration) error {
			return storage.Unavailable("set", errors.New("connection refused"))
		}
		ts := storage.NewTransactionStore(backend, 0)

		err := ts.Start(ctx, "flow", &storage.OAuthSession{State: "s"})
		if !errors.Is(err, storage.ErrUnavailable) {
			t.Errorf("Start() error = %v, want ErrUnavailable", err)
		}
	})
}

func TestTransactionStore_Consume_Unavailable(t *testing.T) {
	backend := mock.NewMockStore()
	backend.TakeFunc = func(context.Context, storage.Key) ([]byte, error) {
		return nil, storage.Unavailable("take", errors.New("timeout"))
	}
	ts := storage.NewTransactionStore(backend, 0)

	_, err := ts.Consume(context.Background(), "flow")
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Consume() error = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("unavailable backend must not be reported as not found")
	}
}

func TestTransactionStore_Consume_UsesTake(t *testing.T) {
	backend := mock.NewMockStore()
	ts := storage.NewTransactionStore(backend, 0)
	ctx := context.Background()

	_ = ts.Start(ctx, "flow", &storage.OAuthSession{State: "s", CodeVerifier: "v"})
	backend.ResetCallCounts()

	if _, err := ts.Consume(ctx, "flow"); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if backend.Calls("Take") != 1 || backend.Calls("Get") != 0 || backend.Calls("Delete") != 0 {
		t.Errorf("Consume() calls = %v, want a single Take", backend.CallCounts)
	}
}

package session

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/controller"
)

func newTestStore(capacity int, ttl time.Duration) *Store {
	return NewStore(capacity, ttl, func(id string) *controller.Controller {
		return controller.New(nil, zap.NewNop(), controller.WithSessionID(id))
	})
}

func TestGetOrCreateReusesSession(t *testing.T) {
	store := newTestStore(10, time.Hour)

	id, first, created := store.GetOrCreate("")
	if !created || id == "" || first == nil {
		t.Fatalf("expected new session, got id=%q created=%v", id, created)
	}

	again, second, created := store.GetOrCreate(id)
	if created || again != id || second != first {
		t.Fatal("expected the existing session to be returned")
	}
}

func TestUnknownSessionIsReplaced(t *testing.T) {
	store := newTestStore(10, time.Hour)
	id, _, created := store.GetOrCreate("forged-id")
	if !created || id == "forged-id" {
		t.Fatalf("expected a fresh id, got %q", id)
	}
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store := newTestStore(2, time.Hour)
	a, _ := store.Create()
	b, _ := store.Create()
	_, _ = store.Get(a)
	store.Create()

	if _, ok := store.Get(b); ok {
		t.Fatal("expected least recently used session to be evicted")
	}
	if _, ok := store.Get(a); !ok {
		t.Fatal("expected recently used session to survive")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", store.Len())
	}
}

func TestStoreExpiresSessions(t *testing.T) {
	store := newTestStore(10, 20*time.Millisecond)
	id, _ := store.Create()
	time.Sleep(60 * time.Millisecond)
	if _, ok := store.Get(id); ok {
		t.Fatal("expected session to expire")
	}
}

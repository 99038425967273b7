package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/ocap-chat/internal/model/chat"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	data := &Data{ID: "browser-1"}
	if err := store.Create(ctx, data); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if data.Version != 1 {
		t.Fatalf("expected version 1, got %d", data.Version)
	}

	got, err := store.Get(ctx, "browser-1")
	if err != nil || got == nil {
		t.Fatalf("Get err: %v, data: %v", err, got)
	}

	got.State.Authenticated = true
	got.State.EnsureMaps()
	got.State.Threads["12345"] = []chat.Message{chat.UserMessage("hi")}
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update err: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}

	reloaded, _ := store.Get(ctx, "browser-1")
	if !reloaded.State.Authenticated || len(reloaded.State.Threads["12345"]) != 1 {
		t.Fatalf("update not persisted: %+v", reloaded.State)
	}

	if err := store.Delete(ctx, "browser-1"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if gone, _ := store.Get(ctx, "browser-1"); gone != nil {
		t.Fatal("expected session to be deleted")
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	data := &Data{ID: "browser-1"}
	store.Create(ctx, data)

	got, _ := store.Get(ctx, "browser-1")
	got.State.Authenticated = true

	again, _ := store.Get(ctx, "browser-1")
	if again.State.Authenticated {
		t.Fatal("mutating a loaded session must not change the stored copy")
	}
}

func TestMemoryStoreVersionConflict(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	store.Create(ctx, &Data{ID: "browser-1"})

	first, _ := store.Get(ctx, "browser-1")
	second, _ := store.Get(ctx, "browser-1")

	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update err: %v", err)
	}
	if err := store.Update(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := store.Update(ctx, &Data{ID: "missing", Version: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Create(ctx, &Data{ID: "idle"})
	store.Create(ctx, &Data{ID: "busy"})

	now = now.Add(45 * time.Second)
	store.Get(ctx, "busy")

	now = now.Add(30 * time.Second)
	if removed := store.Prune(); removed != 1 {
		t.Fatalf("expected 1 pruned session, got %d", removed)
	}
	if got, _ := store.Get(ctx, "idle"); got != nil {
		t.Fatal("expected idle session to expire")
	}
	if got, _ := store.Get(ctx, "busy"); got == nil {
		t.Fatal("expected busy session to survive")
	}
}

func TestTakeNotice(t *testing.T) {
	data := &Data{Notice: &Notice{Level: NoticeError, Text: "nope"}}
	if n := data.TakeNotice(); n == nil || n.Text != "nope" {
		t.Fatalf("unexpected notice %+v", n)
	}
	if data.TakeNotice() != nil {
		t.Fatal("notice must be consumed once")
	}
}

func TestNewStore(t *testing.T) {
	if _, err := NewStore(StoreTypeMemory); err != nil {
		t.Fatalf("memory store err: %v", err)
	}
	if _, err := NewStore(StoreTypeRedis); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewStore("etcd"); !errors.Is(err, ErrInvalidStoreType) {
		t.Fatalf("expected ErrInvalidStoreType, got %v", err)
	}
}

package registry

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStorePutGetRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	def := WorkerDefinition{WorkerID: "worker-1", CodeCID: "cid-abc"}
	if err := store.Put(ctx, def); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "worker-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.WorkerID != def.WorkerID || got.CodeCID != def.CodeCID {
		t.Fatalf("get returned %+v, want %+v", got, def)
	}
}

func TestRedisStoreGetMissingReturnsNilNil(t *testing.T) {
	store := newTestRedisStore(t)
	got, err := store.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing worker, got %+v", got)
	}
}

func TestRedisStoreGetByCID(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	def := WorkerDefinition{WorkerID: "worker-2", CodeCID: "cid-xyz"}
	if err := store.Put(ctx, def); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetByCID(ctx, "cid-xyz")
	if err != nil {
		t.Fatalf("get by cid: %v", err)
	}
	if got == nil || got.WorkerID != "worker-2" {
		t.Fatalf("get by cid returned %+v", got)
	}

	miss, err := store.GetByCID(ctx, "cid-does-not-exist")
	if err != nil {
		t.Fatalf("get by cid (miss): %v", err)
	}
	if miss != nil {
		t.Fatalf("expected nil for unknown cid, got %+v", miss)
	}
}

func TestRedisStoreListActive(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	defs := []WorkerDefinition{
		{WorkerID: "worker-a", CodeCID: "cid-a"},
		{WorkerID: "worker-b", CodeCID: "cid-b"},
	}
	for _, d := range defs {
		if err := store.Put(ctx, d); err != nil {
			t.Fatalf("put %s: %v", d.WorkerID, err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != len(defs) {
		t.Fatalf("expected %d active workers, got %d", len(defs), len(active))
	}
}

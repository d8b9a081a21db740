package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/storage"
)

func openCache(t *testing.T) *storage.Cache {
	t.Helper()
	c, err := storage.Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLoadMissingKey(t *testing.T) {
	c := openCache(t)
	_, found, err := c.Load(context.Background(), "projects")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Error("Load on empty cache reported found")
	}
}

func TestStoreAndLoad(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)

	if err := c.Store(ctx, "projects", []byte(`[]`), true); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := c.Store(ctx, "projects", []byte(`[{"slug":"a"}]`), false); err != nil {
		t.Fatalf("Store (overwrite): %v", err)
	}

	e, found, err := c.Load(ctx, "projects")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("Load: not found after Store")
	}
	if string(e.Value) != `[{"slug":"a"}]` {
		t.Errorf("Value = %s, want overwritten value", e.Value)
	}
	if e.Synced {
		t.Error("Synced = true, want false after unsynced write")
	}
}

func TestRemoveUnsyncedLeavesTombstone(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)

	if err := c.Store(ctx, "projects/a", []byte(`[]`), true); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(ctx, "projects/a", false); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	e, found, err := c.Load(ctx, "projects/a")
	if err != nil {
		t.Fatal(err)
	}
	if !found || !e.Deleted {
		t.Errorf("Load after unsynced Remove = (%+v, %v), want tombstone", e, found)
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys = %v, want none (tombstones hidden)", keys)
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || !pending[0].Deleted {
		t.Fatalf("Pending = %+v, want one tombstone", pending)
	}

	if err := c.MarkSynced(ctx, "projects/a"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if _, found, _ := c.Load(ctx, "projects/a"); found {
		t.Error("tombstone still present after MarkSynced")
	}
}

func TestPendingAndMarkSynced(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)

	if err := c.Store(ctx, "projects", []byte(`[]`), true); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(ctx, "projects/b", []byte(`[{"timestamp":1,"type":"start","description":null}]`), false); err != nil {
		t.Fatal(err)
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "projects/b" {
		t.Fatalf("Pending = %+v, want only projects/b", pending)
	}

	if err := c.MarkSynced(ctx, "projects/b"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err = c.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("Pending after MarkSynced = %+v, want none", pending)
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "projects" || keys[1] != "projects/b" {
		t.Errorf("Keys = %v, want [projects projects/b]", keys)
	}
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := storage.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store(ctx, "projects", []byte(`[{"slug":"x"}]`), false); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c2, err := storage.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	e, found, err := c2.Load(ctx, "projects")
	if err != nil || !found {
		t.Fatalf("Load after reopen = (%v, %v)", found, err)
	}
	if string(e.Value) != `[{"slug":"x"}]` {
		t.Errorf("Value = %s", e.Value)
	}
}

// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	// A second run against the same handle must be a no-op, not a wipe.
	ctx := context.Background()
	if err := store.SetCache(ctx, "/k", json.RawMessage(`1`), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	if err := initializeSchema(store.db); err != nil {
		t.Fatalf("re-initializing schema failed: %v", err)
	}
	if _, ok, _ := store.GetCache(ctx, "/k"); !ok {
		t.Fatalf("schema re-init destroyed existing rows")
	}
}

func TestNewRequestID(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	if a == b {
		t.Fatalf("request ids must be unique, got %s twice", a)
	}
	if !strings.Contains(a, "-") {
		t.Fatalf("request id %s missing the time-sortable separator", a)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := json.RawMessage(`[{"id":"prod-1"}]`)
	if err := store.SetCache(ctx, "/businesses/biz-1/products", payload, time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, ok, err := store.GetCache(ctx, "/businesses/biz-1/products")
	if err != nil || !ok {
		t.Fatalf("GetCache: ok=%v err=%v", ok, err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %s, want %s", got, payload)
	}

	if _, ok, _ := store.GetCache(ctx, "/missing"); ok {
		t.Fatalf("unexpected hit for missing key")
	}
}

func TestCacheExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetCache(ctx, "/k", json.RawMessage(`1`), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, _ := store.GetCache(ctx, "/k"); ok {
		t.Fatalf("entry past TTL must be treated as absent")
	}
	// The expired row was also evicted.
	store.now = time.Now
	if _, ok, _ := store.GetCache(ctx, "/k"); ok {
		t.Fatalf("expired entry must be evicted, not resurrected")
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := []string{
		"/businesses/biz-1/sales",
		"/businesses/biz-1/sales?page=0&size=20",
		"/businesses/biz-1/products",
	}
	for _, k := range keys {
		if err := store.SetCache(ctx, k, json.RawMessage(`[]`), time.Hour); err != nil {
			t.Fatalf("SetCache(%s) failed: %v", k, err)
		}
	}

	if err := store.InvalidateCachePrefix(ctx, "/businesses/biz-1/sales"); err != nil {
		t.Fatalf("InvalidateCachePrefix failed: %v", err)
	}
	if _, ok, _ := store.GetCache(ctx, keys[0]); ok {
		t.Fatalf("exact key must be invalidated")
	}
	if _, ok, _ := store.GetCache(ctx, keys[1]); ok {
		t.Fatalf("paginated variant must be invalidated")
	}
	if _, ok, _ := store.GetCache(ctx, keys[2]); !ok {
		t.Fatalf("unrelated listing must survive")
	}
}

func TestClearExpiredCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetCache(ctx, "/old", json.RawMessage(`1`), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := store.SetCache(ctx, "/fresh", json.RawMessage(`2`), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	if err := store.ClearExpiredCache(ctx); err != nil {
		t.Fatalf("ClearExpiredCache failed: %v", err)
	}
	if _, ok, _ := store.GetCache(ctx, "/fresh"); !ok {
		t.Fatalf("fresh entry must survive the sweep")
	}
	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM cache`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the fresh row, got %d", count)
	}
}

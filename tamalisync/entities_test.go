// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/AmadouLah/tamali-sync/posapi"
)

func TestLocalEntityLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	le := LocalEntity{
		ID:         "entity-req-1",
		EntityType: posapi.EntityCategory,
		BusinessID: "biz-1",
		Entity:     json.RawMessage(`{"name":"Drinks"}`),
		Operation:  posapi.OpCreate,
		RequestID:  "req-1",
		Timestamp:  1000,
	}
	if err := store.AddLocalEntity(ctx, le); err != nil {
		t.Fatalf("AddLocalEntity failed: %v", err)
	}

	got, ok, err := store.LocalEntityByRequestID(ctx, "req-1")
	if err != nil || !ok {
		t.Fatalf("LocalEntityByRequestID: ok=%v err=%v", ok, err)
	}
	if got.EntityType != posapi.EntityCategory || got.Operation != posapi.OpCreate {
		t.Fatalf("wrong shadow: %+v", got)
	}

	if err := store.RemoveLocalEntityByRequestID(ctx, "req-1"); err != nil {
		t.Fatalf("RemoveLocalEntityByRequestID failed: %v", err)
	}
	if _, ok, _ := store.LocalEntityByRequestID(ctx, "req-1"); ok {
		t.Fatalf("entity shadow must be gone")
	}
}

func TestLocalEntitiesFiltered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entities := []LocalEntity{
		{ID: "e1", EntityType: posapi.EntityCategory, BusinessID: "biz-1", Operation: posapi.OpCreate, RequestID: "r1", Timestamp: 1},
		{ID: "e2", EntityType: posapi.EntityProduct, BusinessID: "biz-1", EntityID: "prod-1", Operation: posapi.OpPatch, RequestID: "r2", Timestamp: 2},
		{ID: "e3", EntityType: posapi.EntityCategory, BusinessID: "biz-2", Operation: posapi.OpDelete, RequestID: "r3", Timestamp: 3},
	}
	for _, le := range entities {
		if err := store.AddLocalEntity(ctx, le); err != nil {
			t.Fatalf("AddLocalEntity failed: %v", err)
		}
	}

	cats, err := store.LocalEntities(ctx, posapi.EntityCategory, "biz-1")
	if err != nil {
		t.Fatalf("LocalEntities failed: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != "e1" {
		t.Fatalf("wrong filter result: %+v", cats)
	}

	allCats, err := store.LocalEntities(ctx, posapi.EntityCategory, "")
	if err != nil {
		t.Fatalf("LocalEntities failed: %v", err)
	}
	if len(allCats) != 2 {
		t.Fatalf("expected 2 category entities, got %d", len(allCats))
	}
}

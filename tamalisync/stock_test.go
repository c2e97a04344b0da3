// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"testing"

	"github.com/AmadouLah/tamali-sync/posapi"
)

func TestAvailableStock(t *testing.T) {
	tests := []struct {
		name      string
		server    int64
		movements []LocalStockMovement
		want      int64
	}{
		{name: "no movements", server: 10, want: 10},
		{
			name:   "sale subtracts",
			server: 10,
			movements: []LocalStockMovement{
				{Quantity: 3, Type: posapi.MovementSale},
			},
			want: 7,
		},
		{
			name:   "in adds, out subtracts",
			server: 5,
			movements: []LocalStockMovement{
				{Quantity: 10, Type: posapi.MovementIn},
				{Quantity: 4, Type: posapi.MovementOut},
				{Quantity: 2, Type: posapi.MovementSale},
			},
			want: 9,
		},
		{
			name:   "never negative",
			server: 2,
			movements: []LocalStockMovement{
				{Quantity: 5, Type: posapi.MovementSale},
			},
			want: 0,
		},
		{
			name:   "synced movements ignored",
			server: 10,
			movements: []LocalStockMovement{
				{Quantity: 5, Type: posapi.MovementSale, Synced: true},
				{Quantity: 1, Type: posapi.MovementSale},
			},
			want: 9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvailableStock(tt.server, tt.movements); got != tt.want {
				t.Fatalf("AvailableStock(%d) = %d, want %d", tt.server, got, tt.want)
			}
		})
	}
}

func TestStoreAvailableStock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	movements := []LocalStockMovement{
		{ID: "m1", ProductID: "prod-1", Quantity: 3, Type: posapi.MovementSale, RequestID: "req-1", Timestamp: 1},
		{ID: "m2", ProductID: "prod-1", Quantity: 5, Type: posapi.MovementIn, RequestID: "req-2", Timestamp: 2},
		{ID: "m3", ProductID: "prod-2", Quantity: 99, Type: posapi.MovementSale, RequestID: "req-3", Timestamp: 3},
	}
	for _, m := range movements {
		if err := store.AddLocalStockMovement(ctx, m); err != nil {
			t.Fatalf("AddLocalStockMovement failed: %v", err)
		}
	}

	got, err := store.AvailableStock(ctx, "prod-1", 10)
	if err != nil {
		t.Fatalf("AvailableStock failed: %v", err)
	}
	if got != 12 {
		t.Fatalf("got %d, want 12", got)
	}
}

func TestRemoveLocalStockMovementsByRequestID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, m := range []LocalStockMovement{
		{ID: "m1", ProductID: "prod-1", Quantity: 1, Type: posapi.MovementSale, RequestID: "req-1", Timestamp: 1},
		{ID: "m2", ProductID: "prod-1", Quantity: 2, Type: posapi.MovementSale, RequestID: "req-2", Timestamp: 2},
	} {
		if err := store.AddLocalStockMovement(ctx, m); err != nil {
			t.Fatalf("AddLocalStockMovement failed: %v", err)
		}
	}

	if err := store.RemoveLocalStockMovementsByRequestID(ctx, "req-1"); err != nil {
		t.Fatalf("RemoveLocalStockMovementsByRequestID failed: %v", err)
	}
	ms, err := store.LocalStockMovements(ctx, "prod-1")
	if err != nil {
		t.Fatalf("LocalStockMovements failed: %v", err)
	}
	if len(ms) != 1 || ms[0].RequestID != "req-2" {
		t.Fatalf("wrong survivors: %+v", ms)
	}
}

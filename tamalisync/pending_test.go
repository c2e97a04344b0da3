// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/AmadouLah/tamali-sync/posapi"
)

func pendingFixture(id string, ts int64) PendingRequest {
	return PendingRequest{
		ID:        id,
		Method:    http.MethodPost,
		URL:       "/businesses/biz-1/sales",
		Body:      json.RawMessage(`{"cashierId":"cash-1","items":[]}`),
		Headers:   map[string]string{posapi.HeaderRequestID: id},
		Timestamp: ts,
	}
}

func TestPendingRequestsOrderedByTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, req := range []PendingRequest{
		pendingFixture("req-b", 2000),
		pendingFixture("req-a", 1000),
		pendingFixture("req-c", 3000),
	} {
		if err := store.AddPendingRequest(ctx, req); err != nil {
			t.Fatalf("AddPendingRequest failed: %v", err)
		}
	}

	reqs, err := store.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("PendingRequests failed: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].ID != "req-a" || reqs[1].ID != "req-b" || reqs[2].ID != "req-c" {
		t.Fatalf("wrong order: %s %s %s", reqs[0].ID, reqs[1].ID, reqs[2].ID)
	}
	if reqs[0].Headers[posapi.HeaderRequestID] != "req-a" {
		t.Fatalf("headers not preserved: %+v", reqs[0].Headers)
	}
}

func TestPendingRequestReinsertKeepsTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := pendingFixture("req-a", 1000)
	if err := store.AddPendingRequest(ctx, req); err != nil {
		t.Fatalf("AddPendingRequest failed: %v", err)
	}
	if err := store.RemovePendingRequest(ctx, "req-a"); err != nil {
		t.Fatalf("RemovePendingRequest failed: %v", err)
	}
	if err := store.AddPendingRequest(ctx, pendingFixture("req-b", 2000)); err != nil {
		t.Fatalf("AddPendingRequest failed: %v", err)
	}
	// The halted head goes back with its original timestamp, ahead of req-b.
	if err := store.AddPendingRequest(ctx, req); err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}

	reqs, err := store.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("PendingRequests failed: %v", err)
	}
	if len(reqs) != 2 || reqs[0].ID != "req-a" {
		t.Fatalf("re-inserted request must lead the queue: %+v", reqs)
	}
}

func TestCancelPendingRemovesShadows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := pendingFixture("req-a", 1000)
	sale := LocalSale{
		ID: "local-req-a", BusinessID: "biz-1",
		Sale:      posapi.SaleDTO{ID: "local-req-a", BusinessID: "biz-1"},
		RequestID: "req-a", Timestamp: 1000,
	}
	movements := []LocalStockMovement{{
		ID: "stock-req-a-prod-1", ProductID: "prod-1",
		Quantity: 2, Type: posapi.MovementSale, RequestID: "req-a", Timestamp: 1000,
	}}
	if err := store.EnqueueSale(ctx, req, sale, movements); err != nil {
		t.Fatalf("EnqueueSale failed: %v", err)
	}

	if err := store.CancelPending(ctx, "req-a"); err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}

	if reqs, _ := store.PendingRequests(ctx); len(reqs) != 0 {
		t.Fatalf("pending request must be gone, got %d", len(reqs))
	}
	if _, ok, _ := store.LocalSaleByRequestID(ctx, "req-a"); ok {
		t.Fatalf("sale shadow must be gone")
	}
	if ms, _ := store.LocalStockMovements(ctx, "prod-1"); len(ms) != 0 {
		t.Fatalf("movement shadows must be gone, got %d", len(ms))
	}
}

func TestUpdatePendingRequestBody(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddPendingRequest(ctx, pendingFixture("req-a", 1000)); err != nil {
		t.Fatalf("AddPendingRequest failed: %v", err)
	}
	newBody := json.RawMessage(`{"cashierId":"cash-2","items":[]}`)
	if err := store.UpdatePendingRequestBody(ctx, "req-a", newBody); err != nil {
		t.Fatalf("UpdatePendingRequestBody failed: %v", err)
	}

	got, ok, err := store.PendingRequest(ctx, "req-a")
	if err != nil || !ok {
		t.Fatalf("PendingRequest: ok=%v err=%v", ok, err)
	}
	if string(got.Body) != string(newBody) {
		t.Fatalf("body not updated: %s", got.Body)
	}
}

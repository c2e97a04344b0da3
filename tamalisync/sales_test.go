// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"testing"

	"github.com/AmadouLah/tamali-sync/posapi"
)

func saleFixture(requestID, businessID string, ts int64) LocalSale {
	localID := "local-" + requestID
	return LocalSale{
		ID:         localID,
		BusinessID: businessID,
		Sale: posapi.SaleDTO{
			ID: localID, BusinessID: businessID, CashierID: "cash-1",
			ReceiptNumber: posapi.TempReceiptNumber(requestID),
		},
		RequestID:     requestID,
		Timestamp:     ts,
		ReceiptNumber: posapi.TempReceiptNumber(requestID),
	}
}

func TestLocalSalesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ls := range []LocalSale{
		saleFixture("req-1", "biz-1", 1000),
		saleFixture("req-2", "biz-1", 3000),
		saleFixture("req-3", "biz-2", 2000),
	} {
		if err := store.AddLocalSale(ctx, ls); err != nil {
			t.Fatalf("AddLocalSale failed: %v", err)
		}
	}

	sales, err := store.LocalSales(ctx, "biz-1")
	if err != nil {
		t.Fatalf("LocalSales failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales for biz-1, got %d", len(sales))
	}
	if sales[0].RequestID != "req-2" {
		t.Fatalf("newest sale must come first, got %s", sales[0].RequestID)
	}
	if sales[0].Sale.CashierID != "cash-1" {
		t.Fatalf("sale payload lost: %+v", sales[0].Sale)
	}
}

func TestMarkLocalSaleSynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ls := saleFixture("req-1", "biz-1", 1000)
	if err := store.AddLocalSale(ctx, ls); err != nil {
		t.Fatalf("AddLocalSale failed: %v", err)
	}

	serverID := "9f8e7d6c5b4a3210"
	receipt := posapi.FinalReceiptNumber(serverID)
	if err := store.MarkLocalSaleSynced(ctx, ls.ID, serverID, receipt); err != nil {
		t.Fatalf("MarkLocalSaleSynced failed: %v", err)
	}

	got, ok, err := store.LocalSaleByRequestID(ctx, "req-1")
	if err != nil || !ok {
		t.Fatalf("LocalSaleByRequestID: ok=%v err=%v", ok, err)
	}
	if !got.Synced || got.ServerID != serverID {
		t.Fatalf("sale not marked synced: %+v", got)
	}
	if got.ReceiptNumber != "INV-9F8E7D6C5B4A" {
		t.Fatalf("receipt not promoted: %s", got.ReceiptNumber)
	}
	if posapi.IsTempReceiptNumber(got.ReceiptNumber) {
		t.Fatalf("synced sale still carries a provisional receipt")
	}
}

func TestClearSyncedLocalSales(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := saleFixture("req-1", "biz-1", 1000)
	b := saleFixture("req-2", "biz-1", 2000)
	for _, ls := range []LocalSale{a, b} {
		if err := store.AddLocalSale(ctx, ls); err != nil {
			t.Fatalf("AddLocalSale failed: %v", err)
		}
	}
	if err := store.MarkLocalSaleSynced(ctx, a.ID, "srv-1", "INV-SRV1"); err != nil {
		t.Fatalf("MarkLocalSaleSynced failed: %v", err)
	}

	if err := store.ClearSyncedLocalSales(ctx, "biz-1"); err != nil {
		t.Fatalf("ClearSyncedLocalSales failed: %v", err)
	}
	sales, err := store.LocalSales(ctx, "biz-1")
	if err != nil {
		t.Fatalf("LocalSales failed: %v", err)
	}
	if len(sales) != 1 || sales[0].RequestID != "req-2" {
		t.Fatalf("only the unsynced sale must remain: %+v", sales)
	}
}

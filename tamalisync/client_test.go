// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AmadouLah/tamali-sync/posapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClientOfflineSaleRoundTrip(t *testing.T) {
	auth := posapi.NewJWTAuth("test-secret")
	server := posapi.NewServer(auth, nil)
	server.SeedBusiness(posapi.BusinessDTO{ID: "biz-1", Name: "Boutique Tamali"})
	server.SeedProduct(posapi.ProductDTO{
		ID: "prod-1", BusinessID: "biz-1", Name: "Coca 33cl",
		Price: decimal.NewFromInt(1500), StockQuantity: 10,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	source := auth.TokenSource("cash-1", "biz-1", time.Hour)
	tok := func(context.Context) (string, error) { return source() }

	config := DefaultConfig()
	config.Sync = &SyncConfig{Debounce: 10 * time.Millisecond, MaxAttempts: 3, RetryBackoff: time.Millisecond}
	client, err := Open(":memory:", ts.URL, tok, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	chaos := &chaosRT{base: http.DefaultTransport}
	chaos.offline.Store(true)
	client.Transport.HTTP = &http.Client{Transport: chaos}

	ctx := context.Background()

	// Day starts offline: the sale is accepted locally.
	res, err := client.Gateway.Mutate(ctx, posapi.NewSaleCreate("biz-1",
		posapi.SaleCreateRequest{
			CashierID: "cash-1",
			Items:     []posapi.SaleItemRequest{{ProductID: "prod-1", Quantity: 2}},
			Method:    "CASH",
		}))
	require.NoError(t, err)
	require.Equal(t, SourcePending, res.Source)

	// Connectivity returns; a manual refresh drains the queue.
	chaos.offline.Store(false)
	require.True(t, client.Monitor.CheckConnection(ctx))
	report, err := client.Syncer.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Replayed)
	require.Equal(t, 1, server.SaleCount())

	sales, err := client.Store.LocalSales(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.True(t, sales[0].Synced)
	require.False(t, posapi.IsTempReceiptNumber(sales[0].ReceiptNumber))
}

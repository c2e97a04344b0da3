// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// tamali-sim runs offline-first synchronization scenarios against an
// in-process reference POS server: queue while offline, deduplicate,
// consolidate, then replay once connectivity is confirmed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/AmadouLah/tamali-sync/internal/config"
	"github.com/AmadouLah/tamali-sync/posapi"
	"github.com/AmadouLah/tamali-sync/tamalisync"
)

func main() {
	root := &cobra.Command{
		Use:   "tamali-sim",
		Short: "Offline-first POS sync simulator",
		Long: "tamali-sim starts an in-process reference POS server, drives a sync\n" +
			"client through an offline working session, and replays the queued\n" +
			"mutations once connectivity returns.",
	}
	root.AddCommand(newSimulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the offline-to-online scenario end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return runSimulation(cmd.Context(), config.MustLoad(), logger)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runSimulation(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	auth := posapi.NewJWTAuth(cfg.Auth.JWTSecret)
	server := posapi.NewServer(auth, logger)
	server.SeedBusiness(posapi.BusinessDTO{ID: cfg.Auth.BusinessID, Name: "Boutique Tamali"})
	server.SeedProduct(posapi.ProductDTO{
		ID: "prod-coca", BusinessID: cfg.Auth.BusinessID, Name: "Coca 33cl",
		Price: decimal.NewFromInt(1500), TaxRate: decimal.NewFromInt(posapi.VATRatePercent),
		StockQuantity: 20,
	})

	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}
	httpServer := &http.Server{Handler: server.Handler()}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("reference server stopped", "error", err)
		}
	}()
	defer httpServer.Close()
	baseURL := "http://" + ln.Addr().String()
	fmt.Printf("reference server listening on %s\n\n", baseURL)

	source := auth.TokenSource(cfg.Auth.CashierID, cfg.Auth.BusinessID, time.Hour)
	clientCfg := &tamalisync.Config{
		CacheTTL:       cfg.Client.CacheTTL,
		RequestTimeout: cfg.Client.RequestTimeout,
		Sync: &tamalisync.SyncConfig{
			Debounce:     cfg.Client.SyncDebounce,
			MaxAttempts:  cfg.Client.MaxAttempts,
			RetryBackoff: cfg.Client.RetryBackoff,
		},
	}
	client, err := tamalisync.Open(cfg.Client.DBPath, baseURL,
		func(context.Context) (string, error) { return source() }, clientCfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// Phase 1: a working session with no connectivity. The monitor starts
	// offline, so every call lands in the durable queue.
	fmt.Println("== phase 1: offline session ==")

	saleRes, err := client.Gateway.Mutate(ctx, posapi.NewSaleCreate(cfg.Auth.BusinessID,
		posapi.SaleCreateRequest{
			CashierID: cfg.Auth.CashierID,
			Items:     []posapi.SaleItemRequest{{ProductID: "prod-coca", Quantity: 3}},
			Method:    "CASH",
		}))
	if err != nil {
		return err
	}
	saleShadow, _, _ := client.Store.LocalSaleByRequestID(ctx, saleRes.RequestID)
	fmt.Printf("sale queued        (%s), provisional receipt %s\n", saleRes.Source, saleShadow.ReceiptNumber)

	// Double-tap: the same product saved twice.
	product := posapi.ProductCreateRequest{
		Name: "Fanta 50cl", Reference: "FA50",
		Price: decimal.NewFromInt(2000), TaxRate: decimal.NewFromInt(posapi.VATRatePercent),
		InitialQuantity: 6,
	}
	createRes, err := client.Gateway.Mutate(ctx, posapi.NewProductCreate(cfg.Auth.BusinessID, product))
	if err != nil {
		return err
	}
	if _, err := client.Gateway.Mutate(ctx, posapi.NewProductCreate(cfg.Auth.BusinessID, product)); err != nil {
		return err
	}
	fmt.Println("product saved twice (double-tap), queued twice")

	// A restock against the not-yet-synced product: it can only be expressed
	// through the provisional id, so it must fold into the queued create.
	localID := tamalisync.LocalProductID(createRes.RequestID)
	if _, err := client.Gateway.Mutate(ctx, posapi.NewStockMovement(localID,
		posapi.StockMovementCreateRequest{Quantity: 4, Type: posapi.MovementIn})); err != nil {
		return err
	}
	fmt.Println("restock +4 queued against the local-only product")

	// A sale the server will reject: more than it has in stock.
	if _, err := client.Gateway.Mutate(ctx, posapi.NewSaleCreate(cfg.Auth.BusinessID,
		posapi.SaleCreateRequest{
			CashierID: cfg.Auth.CashierID,
			Items:     []posapi.SaleItemRequest{{ProductID: "prod-coca", Quantity: 999}},
		})); err != nil {
		return err
	}
	fmt.Println("oversized sale queued (server will reject it)")

	queue, _ := client.Store.PendingRequests(ctx)
	available, _ := client.Store.AvailableStock(ctx, "prod-coca", 20)
	fmt.Printf("queue depth %d, Coca availability overlay %d (server still says 20)\n\n", len(queue), available)

	// Phase 2: connectivity returns; one run drains the queue.
	fmt.Println("== phase 2: back online ==")
	if !client.Monitor.CheckConnection(ctx) {
		return fmt.Errorf("reference server unreachable")
	}
	report, err := client.Syncer.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("consolidated %d, deduplicated %d, replayed %d, rejected %d\n",
		report.Consolidated, report.Deduplicated, report.Replayed, report.Failed)
	for _, f := range report.Failures {
		fmt.Printf("  rejected %s %s: %d %s\n", f.Method, f.URL, f.StatusCode, f.Message)
	}

	synced, _, _ := client.Store.LocalSaleByRequestID(ctx, saleRes.RequestID)
	fmt.Printf("sale receipt promoted: %s -> %s\n", saleShadow.ReceiptNumber, synced.ReceiptNumber)
	fmt.Printf("server now has %d sale(s); Coca stock %d; Fanta created once with folded stock\n",
		server.SaleCount(), server.ProductStock("prod-coca"))
	return nil
}

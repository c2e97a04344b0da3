// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for the offline-first POS client.
type Config struct {
	CacheTTL       time.Duration  // freshness bound for cached reads
	RequestTimeout time.Duration  // per-request transport timeout
	Monitor        *MonitorConfig // probe, debounce and revalidation tuning
	Sync           *SyncConfig    // replay retry and debounce tuning
}

// DefaultConfig returns the production tuning.
func DefaultConfig() *Config {
	return &Config{
		CacheTTL:       DefaultCacheTTL,
		RequestTimeout: 10 * time.Second,
		Monitor:        DefaultMonitorConfig(),
		Sync:           DefaultSyncConfig(),
	}
}

// Client bundles the store, network monitor, gateway and replayer into one
// offline-first POS sync client. Construct with NewClient, call Start to run
// the monitor and replay loops, and route all API traffic through Gateway.
type Client struct {
	Store     *Store
	Monitor   *Monitor
	Transport *Transport
	Gateway   *Gateway
	Syncer    *Syncer

	logger *slog.Logger
}

// NewClient creates a client on top of an already-open SQLite handle. The
// token callback supplies the bearer credential per request; pass nil config
// for defaults.
func NewClient(db *sql.DB, baseURL string, tok func(ctx context.Context) (string, error), config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	transport := NewTransport(baseURL, &http.Client{})
	transport.Token = tok
	if config.RequestTimeout > 0 {
		transport.Timeout = config.RequestTimeout
	}

	monitor := NewMonitor(transport.Probe, config.Monitor, logger)
	gateway := NewGateway(store, monitor, transport, logger)
	if config.CacheTTL > 0 {
		gateway.CacheTTL = config.CacheTTL
	}
	syncer := NewSyncer(store, monitor, transport, config.Sync, logger)

	// A mid-request network blip queues the mutation while the monitor still
	// reports online; nudge the replayer instead of waiting for the next
	// transition.
	gateway.OnEnqueue = func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := syncer.Sync(ctx); err != nil {
				logger.Debug("post-enqueue sync skipped", "error", err)
			}
		}()
	}

	return &Client{
		Store:     store,
		Monitor:   monitor,
		Transport: transport,
		Gateway:   gateway,
		Syncer:    syncer,
		logger:    logger,
	}, nil
}

// Open creates a client backed by a SQLite file at path (":memory:" works for
// tests and simulation).
func Open(path, baseURL string, tok func(ctx context.Context) (string, error), config *Config, logger *slog.Logger) (*Client, error) {
	store, err := OpenStore(path, logger)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(store.db, baseURL, tok, config, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}

// Start launches the monitor and replay loops. Context cancellation stops
// both.
func (c *Client) Start(ctx context.Context) {
	go c.Monitor.Run(ctx)
	go c.Syncer.Run(ctx)
}

// Close releases the underlying store.
func (c *Client) Close() error {
	return c.Store.Close()
}

// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"database/sql"
	"fmt"
)

// schemaVersion tracks additive schema revisions via PRAGMA user_version.
// Bumps must only add collections or indexes; existing rows survive upgrades.
const schemaVersion = 5

// initializeSchema creates the named collections and their secondary indexes.
// Every statement is idempotent, so re-running after a version bump (or a
// crash mid-upgrade) is safe.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	statements := []string{
		// Cached read responses, keyed by request URL.
		`CREATE TABLE IF NOT EXISTS cache (
			key        TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			stored_at  INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`,

		// Durable queue of mutations awaiting replay.
		`CREATE TABLE IF NOT EXISTS pending_requests (
			id        TEXT PRIMARY KEY,
			method    TEXT NOT NULL,
			url       TEXT NOT NULL,
			body      TEXT,
			headers   TEXT,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_requests_timestamp ON pending_requests(timestamp)`,

		// Shadow of sales not yet confirmed by the server.
		`CREATE TABLE IF NOT EXISTS local_sales (
			id             TEXT PRIMARY KEY,
			business_id    TEXT NOT NULL,
			sale           TEXT NOT NULL,
			request_id     TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			synced         INTEGER NOT NULL DEFAULT 0,
			receipt_number TEXT,
			server_id      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_local_sales_business_id ON local_sales(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_local_sales_timestamp ON local_sales(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_local_sales_request_id ON local_sales(request_id)`,

		// Shadow stock deltas; their signed sum drives the availability overlay.
		`CREATE TABLE IF NOT EXISTS local_stock_movements (
			id         TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			quantity   INTEGER NOT NULL,
			type       TEXT NOT NULL CHECK (type IN ('IN','OUT','SALE')),
			request_id TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			synced     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_local_stock_movements_product_id ON local_stock_movements(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_local_stock_movements_timestamp ON local_stock_movements(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_local_stock_movements_request_id ON local_stock_movements(request_id)`,

		// Shadow of products created offline.
		`CREATE TABLE IF NOT EXISTS local_products (
			id          TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			product     TEXT NOT NULL,
			request_id  TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			synced      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_local_products_business_id ON local_products(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_local_products_timestamp ON local_products(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_local_products_request_id ON local_products(request_id)`,

		// Generic shadow for create/update/delete on other mutable entities.
		`CREATE TABLE IF NOT EXISTS local_entities (
			id          TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			business_id TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			entity      TEXT,
			operation   TEXT NOT NULL CHECK (operation IN ('CREATE','PATCH','DELETE')),
			request_id  TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			synced      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_local_entities_entity_type ON local_entities(entity_type)`,
		`CREATE INDEX IF NOT EXISTS idx_local_entities_business_id ON local_entities(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_local_entities_entity_id ON local_entities(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_local_entities_timestamp ON local_entities(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_local_entities_request_id ON local_entities(request_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("failed to bump schema version: %w", err)
		}
	}
	return nil
}

// Package tamalisync is the offline-first synchronization core of the Tamali
// point-of-sale client. It keeps a durable SQLite shadow of API state (cached
// reads, queued mutations, locally-created sales/products/stock movements),
// monitors server reachability, and replays the queue once connectivity is
// confirmed.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistent local store: durable, indexed, versioned storage
// for cached responses, the pending-mutation queue and shadow records. It
// holds no business logic beyond the stock availability overlay.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	// Serialize write operations to prevent SQLite locking issues.
	writeMu sync.Mutex

	now func() time.Time
}

// NewStore wraps an opened SQLite handle and ensures the schema exists.
// Schema setup is additive and idempotent; opening an existing database never
// destroys rows.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initializeSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// OpenStore opens (or creates) the SQLite database at path and wraps it.
// Use ":memory:" for an ephemeral store in tests.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and sidesteps
	// SQLITE_BUSY between the gateway and the replayer.
	db.SetMaxOpenConns(1)
	store, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRequestID returns an opaque, time-sortable request id.
func NewRequestID() string {
	frag := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), frag)
}

// execer abstracts *sql.DB and *sql.Tx so collection helpers run both
// standalone and inside the atomic enqueue/cancel transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a write transaction, serialized by the store mutex.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"fmt"
)

// Atomic enqueue operations: a pending request and its shadow record(s) are
// written in one transaction so a crash can never leave a queued mutation
// without its shadow or a shadow without its queued mutation.

// EnqueueSale queues a sale mutation with its sale shadow and one stock
// movement shadow per cart line.
func (s *Store) EnqueueSale(ctx context.Context, req PendingRequest, sale LocalSale, movements []LocalStockMovement) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putPendingRequest(ctx, tx, req); err != nil {
			return err
		}
		if err := putLocalSale(ctx, tx, sale); err != nil {
			return err
		}
		for _, m := range movements {
			if err := putLocalStockMovement(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnqueueProduct queues a product creation with its product shadow.
func (s *Store) EnqueueProduct(ctx context.Context, req PendingRequest, product LocalProduct) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putPendingRequest(ctx, tx, req); err != nil {
			return err
		}
		return putLocalProduct(ctx, tx, product)
	})
}

// EnqueueStockMovement queues a stock adjustment with its movement shadow.
func (s *Store) EnqueueStockMovement(ctx context.Context, req PendingRequest, movement LocalStockMovement) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putPendingRequest(ctx, tx, req); err != nil {
			return err
		}
		return putLocalStockMovement(ctx, tx, movement)
	})
}

// EnqueueEntity queues a generic entity mutation with its entity shadow.
func (s *Store) EnqueueEntity(ctx context.Context, req PendingRequest, entity LocalEntity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putPendingRequest(ctx, tx, req); err != nil {
			return err
		}
		return putLocalEntity(ctx, tx, entity)
	})
}

// consolidateFold atomically rewrites a pending product create and removes the
// requests/shadows folded into it.
func (s *Store) consolidateFold(ctx context.Context, rootID string, body []byte, foldedRequestIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE pending_requests SET body = ? WHERE id = ?`, string(body), rootID)
		if err != nil {
			return fmt.Errorf("failed to rewrite consolidated create: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("consolidation root %s no longer queued", rootID)
		}
		for _, id := range foldedRequestIDs {
			if err := dropRequestWithShadows(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// dropChain atomically removes a whole consolidation chain (used when a queued
// delete cancels out the create it targets).
func (s *Store) dropChain(ctx context.Context, requestIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range requestIDs {
			if err := dropRequestWithShadows(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

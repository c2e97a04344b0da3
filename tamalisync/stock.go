// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"fmt"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// LocalStockMovement shadows a stock delta not yet confirmed by the server.
// IN increases availability; OUT and SALE decrease it.
type LocalStockMovement struct {
	ID        string
	ProductID string
	Quantity  int64
	Type      string
	RequestID string
	Timestamp int64
	Synced    bool
}

// SignedQuantity is the movement's contribution to available stock.
func (m LocalStockMovement) SignedQuantity() int64 {
	if m.Type == posapi.MovementIn {
		return m.Quantity
	}
	return -m.Quantity
}

// AvailableStock is the stock availability overlay: the last-known server
// quantity adjusted by the net effect of unsynced local movements, floored at
// zero. Advisory only; the server remains the source of truth.
func AvailableStock(serverQuantity int64, movements []LocalStockMovement) int64 {
	available := serverQuantity
	for _, m := range movements {
		if m.Synced {
			continue
		}
		available += m.SignedQuantity()
	}
	if available < 0 {
		return 0
	}
	return available
}

func putLocalStockMovement(ctx context.Context, e execer, m LocalStockMovement) error {
	_, err := e.ExecContext(ctx, `
		INSERT OR REPLACE INTO local_stock_movements
			(id, product_id, quantity, type, request_id, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProductID, m.Quantity, m.Type, m.RequestID, m.Timestamp, boolToInt(m.Synced))
	if err != nil {
		return fmt.Errorf("failed to write stock movement shadow: %w", err)
	}
	return nil
}

// AddLocalStockMovement stores a stock movement shadow.
func (s *Store) AddLocalStockMovement(ctx context.Context, m LocalStockMovement) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putLocalStockMovement(ctx, s.db, m)
}

// LocalStockMovements returns every movement shadow for a product in
// timestamp order.
func (s *Store) LocalStockMovements(ctx context.Context, productID string) ([]LocalStockMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, type, request_id, timestamp, synced
		FROM local_stock_movements WHERE product_id = ? ORDER BY timestamp ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var out []LocalStockMovement
	for rows.Next() {
		var m LocalStockMovement
		var synced int
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.Type,
			&m.RequestID, &m.Timestamp, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		m.Synced = synced != 0
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}
	return out, nil
}

// AvailableStock loads the unsynced movement shadows for a product and
// overlays them on the last-known server quantity.
func (s *Store) AvailableStock(ctx context.Context, productID string, serverQuantity int64) (int64, error) {
	movements, err := s.LocalStockMovements(ctx, productID)
	if err != nil {
		return 0, err
	}
	return AvailableStock(serverQuantity, movements), nil
}

// RemoveLocalStockMovement deletes a movement shadow by id.
func (s *Store) RemoveLocalStockMovement(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_stock_movements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove stock movement shadow: %w", err)
	}
	return nil
}

// RemoveLocalStockMovementsByRequestID deletes every movement shadow created
// for a request id (a sale produces one per cart line).
func (s *Store) RemoveLocalStockMovementsByRequestID(ctx context.Context, requestID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_stock_movements WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("failed to remove stock movement shadows: %w", err)
	}
	return nil
}

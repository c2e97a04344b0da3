// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// LocalProduct shadows a product created offline. Its ID is derived from the
// request id and serves as the product's identity for every later offline
// operation until the server issues a real id.
type LocalProduct struct {
	ID         string
	BusinessID string
	Product    posapi.ProductDTO
	RequestID  string
	Timestamp  int64
	Synced     bool
}

// LocalProductID derives the shadow product id for a request id.
func LocalProductID(requestID string) string {
	return "local-product-" + requestID
}

func putLocalProduct(ctx context.Context, e execer, lp LocalProduct) error {
	productJSON, err := json.Marshal(lp.Product)
	if err != nil {
		return fmt.Errorf("failed to marshal product shadow: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT OR REPLACE INTO local_products
			(id, business_id, product, request_id, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?)
	`, lp.ID, lp.BusinessID, string(productJSON), lp.RequestID, lp.Timestamp, boolToInt(lp.Synced))
	if err != nil {
		return fmt.Errorf("failed to write local product: %w", err)
	}
	return nil
}

// AddLocalProduct stores a product shadow.
func (s *Store) AddLocalProduct(ctx context.Context, lp LocalProduct) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putLocalProduct(ctx, s.db, lp)
}

// UpdateLocalProduct rewrites the denormalized product body of a shadow.
// Consolidation uses it to keep the shadow aligned with the folded create.
func (s *Store) UpdateLocalProduct(ctx context.Context, id string, product posapi.ProductDTO) error {
	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product shadow: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`UPDATE local_products SET product = ? WHERE id = ?`, string(productJSON), id)
	if err != nil {
		return fmt.Errorf("failed to update local product: %w", err)
	}
	return nil
}

// LocalProducts returns every product shadow for a business in creation order.
func (s *Store) LocalProducts(ctx context.Context, businessID string) ([]LocalProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, product, request_id, timestamp, synced
		FROM local_products WHERE business_id = ? ORDER BY timestamp ASC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query local products: %w", err)
	}
	defer rows.Close()

	var out []LocalProduct
	for rows.Next() {
		var lp LocalProduct
		var productJSON string
		var synced int
		if err := rows.Scan(&lp.ID, &lp.BusinessID, &productJSON,
			&lp.RequestID, &lp.Timestamp, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan local product: %w", err)
		}
		if err := json.Unmarshal([]byte(productJSON), &lp.Product); err != nil {
			return nil, fmt.Errorf("failed to decode product shadow: %w", err)
		}
		lp.Synced = synced != 0
		out = append(out, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating local products: %w", err)
	}
	return out, nil
}

// LocalProductByRequestID returns the product shadow created for a request id.
func (s *Store) LocalProductByRequestID(ctx context.Context, requestID string) (LocalProduct, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, product, request_id, timestamp, synced
		FROM local_products WHERE request_id = ? LIMIT 1
	`, requestID)
	if err != nil {
		return LocalProduct{}, false, fmt.Errorf("failed to query local product: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return LocalProduct{}, false, rows.Err()
	}
	var lp LocalProduct
	var productJSON string
	var synced int
	if err := rows.Scan(&lp.ID, &lp.BusinessID, &productJSON,
		&lp.RequestID, &lp.Timestamp, &synced); err != nil {
		return LocalProduct{}, false, fmt.Errorf("failed to scan local product: %w", err)
	}
	if err := json.Unmarshal([]byte(productJSON), &lp.Product); err != nil {
		return LocalProduct{}, false, fmt.Errorf("failed to decode product shadow: %w", err)
	}
	lp.Synced = synced != 0
	return lp, true, nil
}

// RemoveLocalProduct deletes a product shadow by id.
func (s *Store) RemoveLocalProduct(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove local product: %w", err)
	}
	return nil
}

// RemoveLocalProductByRequestID deletes the product shadow for a request id.
func (s *Store) RemoveLocalProductByRequestID(ctx context.Context, requestID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_products WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("failed to remove local product by request id: %w", err)
	}
	return nil
}

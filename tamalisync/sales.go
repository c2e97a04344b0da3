// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// LocalSale shadows a sale that has not been confirmed by the server yet.
// ReceiptNumber starts as a TEMP-… token and is replaced by the authoritative
// INV-… number once the matching pending request succeeds. Exactly one
// LocalSale exists per request id.
type LocalSale struct {
	ID            string
	BusinessID    string
	Sale          posapi.SaleDTO
	RequestID     string
	Timestamp     int64
	Synced        bool
	ReceiptNumber string
	ServerID      string
}

func putLocalSale(ctx context.Context, e execer, ls LocalSale) error {
	saleJSON, err := json.Marshal(ls.Sale)
	if err != nil {
		return fmt.Errorf("failed to marshal sale shadow: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT OR REPLACE INTO local_sales
			(id, business_id, sale, request_id, timestamp, synced, receipt_number, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ls.ID, ls.BusinessID, string(saleJSON), ls.RequestID, ls.Timestamp,
		boolToInt(ls.Synced), ls.ReceiptNumber, nullIfEmpty(ls.ServerID))
	if err != nil {
		return fmt.Errorf("failed to write local sale: %w", err)
	}
	return nil
}

// AddLocalSale stores a sale shadow.
func (s *Store) AddLocalSale(ctx context.Context, ls LocalSale) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putLocalSale(ctx, s.db, ls)
}

// LocalSales returns every sale shadow for a business, newest first.
func (s *Store) LocalSales(ctx context.Context, businessID string) ([]LocalSale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, sale, request_id, timestamp, synced, receipt_number, server_id
		FROM local_sales WHERE business_id = ? ORDER BY timestamp DESC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query local sales: %w", err)
	}
	defer rows.Close()

	var out []LocalSale
	for rows.Next() {
		ls, err := scanLocalSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating local sales: %w", err)
	}
	return out, nil
}

// LocalSaleByRequestID returns the sale shadow created for a request id.
func (s *Store) LocalSaleByRequestID(ctx context.Context, requestID string) (LocalSale, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, sale, request_id, timestamp, synced, receipt_number, server_id
		FROM local_sales WHERE request_id = ? LIMIT 1
	`, requestID)
	if err != nil {
		return LocalSale{}, false, fmt.Errorf("failed to query local sale: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return LocalSale{}, false, rows.Err()
	}
	ls, err := scanLocalSale(rows)
	if err != nil {
		return LocalSale{}, false, err
	}
	return ls, true, nil
}

// MarkLocalSaleSynced records the server identity on a sale shadow after a
// successful replay: synced flag, server id and the permanent receipt number.
// The shadow is kept so the UI can keep showing the sale until the
// authoritative list supersedes it.
func (s *Store) MarkLocalSaleSynced(ctx context.Context, localID, serverID, receiptNumber string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE local_sales SET synced = 1, server_id = ?, receipt_number = ? WHERE id = ?
	`, serverID, receiptNumber, localID)
	if err != nil {
		return fmt.Errorf("failed to mark local sale synced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("local sale %s not found", localID)
	}
	return nil
}

// RemoveLocalSale deletes a sale shadow by id.
func (s *Store) RemoveLocalSale(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_sales WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove local sale: %w", err)
	}
	return nil
}

// ClearSyncedLocalSales removes sale shadows already confirmed by the server,
// typically after the authoritative sales list has been re-fetched.
func (s *Store) ClearSyncedLocalSales(ctx context.Context, businessID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_sales WHERE business_id = ? AND synced = 1`, businessID)
	if err != nil {
		return fmt.Errorf("failed to clear synced local sales: %w", err)
	}
	return nil
}

func scanLocalSale(rows *sql.Rows) (LocalSale, error) {
	var ls LocalSale
	var saleJSON string
	var synced int
	var receipt, serverID sql.NullString
	if err := rows.Scan(&ls.ID, &ls.BusinessID, &saleJSON, &ls.RequestID,
		&ls.Timestamp, &synced, &receipt, &serverID); err != nil {
		return LocalSale{}, fmt.Errorf("failed to scan local sale: %w", err)
	}
	if err := json.Unmarshal([]byte(saleJSON), &ls.Sale); err != nil {
		return LocalSale{}, fmt.Errorf("failed to decode sale shadow: %w", err)
	}
	ls.Synced = synced != 0
	ls.ReceiptNumber = receipt.String
	ls.ServerID = serverID.String
	return ls, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

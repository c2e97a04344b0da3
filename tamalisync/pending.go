// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PendingRequest is one queued mutation awaiting replay. The id is opaque and
// time-sortable; Timestamp is the enqueue time in unix milliseconds and is
// preserved across re-enqueues so causal order survives failures.
type PendingRequest struct {
	ID        string
	Method    string
	URL       string
	Body      json.RawMessage
	Headers   map[string]string
	Timestamp int64
}

func putPendingRequest(ctx context.Context, e execer, req PendingRequest) error {
	var headers any
	if len(req.Headers) > 0 {
		b, err := json.Marshal(req.Headers)
		if err != nil {
			return fmt.Errorf("failed to marshal request headers: %w", err)
		}
		headers = string(b)
	}
	var body any
	if len(req.Body) > 0 {
		body = string(req.Body)
	}
	_, err := e.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_requests (id, method, url, body, headers, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.ID, req.Method, req.URL, body, headers, req.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to queue pending request: %w", err)
	}
	return nil
}

// AddPendingRequest queues a mutation for later replay. Re-adding an id
// replaces the row, keeping the original timestamp the caller supplies.
func (s *Store) AddPendingRequest(ctx context.Context, req PendingRequest) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putPendingRequest(ctx, s.db, req)
}

// PendingRequests returns every queued mutation in ascending timestamp order.
func (s *Store) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, method, url, body, headers, timestamp
		FROM pending_requests ORDER BY timestamp ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var out []PendingRequest
	for rows.Next() {
		var req PendingRequest
		var body, headers sql.NullString
		if err := rows.Scan(&req.ID, &req.Method, &req.URL, &body, &headers, &req.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		if body.Valid {
			req.Body = json.RawMessage(body.String)
		}
		if headers.Valid {
			if err := json.Unmarshal([]byte(headers.String), &req.Headers); err != nil {
				return nil, fmt.Errorf("failed to decode request headers: %w", err)
			}
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending requests: %w", err)
	}
	return out, nil
}

// PendingRequest returns a single queued mutation by id.
func (s *Store) PendingRequest(ctx context.Context, id string) (PendingRequest, bool, error) {
	var req PendingRequest
	var body, headers sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, method, url, body, headers, timestamp FROM pending_requests WHERE id = ?
	`, id).Scan(&req.ID, &req.Method, &req.URL, &body, &headers, &req.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingRequest{}, false, nil
	}
	if err != nil {
		return PendingRequest{}, false, fmt.Errorf("failed to read pending request: %w", err)
	}
	if body.Valid {
		req.Body = json.RawMessage(body.String)
	}
	if headers.Valid {
		if err := json.Unmarshal([]byte(headers.String), &req.Headers); err != nil {
			return PendingRequest{}, false, fmt.Errorf("failed to decode request headers: %w", err)
		}
	}
	return req, true, nil
}

// RemovePendingRequest dequeues a mutation by id.
func (s *Store) RemovePendingRequest(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove pending request: %w", err)
	}
	return nil
}

// UpdatePendingRequestBody rewrites the stored body of a queued mutation.
// Used by consolidation when folding a chain into its root create.
func (s *Store) UpdatePendingRequestBody(ctx context.Context, id string, body json.RawMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_requests SET body = ? WHERE id = ?`, string(body), id)
	if err != nil {
		return fmt.Errorf("failed to update pending request body: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pending request %s not found", id)
	}
	return nil
}

// ClearPendingRequests empties the queue.
func (s *Store) ClearPendingRequests(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_requests`); err != nil {
		return fmt.Errorf("failed to clear pending requests: %w", err)
	}
	return nil
}

// CancelPending removes a queued mutation and every shadow record created for
// it, in one transaction. Used for explicit cancellation, canonical-key
// deduplication and server-class replay rejections alike, so the shadow cleanup
// is identical in all three cases.
func (s *Store) CancelPending(ctx context.Context, requestID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return dropRequestWithShadows(ctx, tx, requestID)
	})
}

func dropRequestWithShadows(ctx context.Context, e execer, requestID string) error {
	steps := []struct {
		desc  string
		query string
	}{
		{"pending request", `DELETE FROM pending_requests WHERE id = ?`},
		{"local sale shadows", `DELETE FROM local_sales WHERE request_id = ?`},
		{"stock movement shadows", `DELETE FROM local_stock_movements WHERE request_id = ?`},
		{"local product shadows", `DELETE FROM local_products WHERE request_id = ?`},
		{"local entity shadows", `DELETE FROM local_entities WHERE request_id = ?`},
	}
	for _, step := range steps {
		if _, err := e.ExecContext(ctx, step.query, requestID); err != nil {
			return fmt.Errorf("failed to drop %s for %s: %w", step.desc, requestID, err)
		}
	}
	return nil
}

// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// LocalEntity is the generic shadow for create/update/delete on any other
// mutable entity (categories, product edits against synced products, ...).
type LocalEntity struct {
	ID         string
	EntityType string
	BusinessID string
	EntityID   string
	Entity     json.RawMessage
	Operation  string
	RequestID  string
	Timestamp  int64
	Synced     bool
}

func putLocalEntity(ctx context.Context, e execer, le LocalEntity) error {
	var entity any
	if len(le.Entity) > 0 {
		entity = string(le.Entity)
	}
	_, err := e.ExecContext(ctx, `
		INSERT OR REPLACE INTO local_entities
			(id, entity_type, business_id, entity_id, entity, operation, request_id, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, le.ID, le.EntityType, le.BusinessID, le.EntityID, entity,
		le.Operation, le.RequestID, le.Timestamp, boolToInt(le.Synced))
	if err != nil {
		return fmt.Errorf("failed to write local entity: %w", err)
	}
	return nil
}

// AddLocalEntity stores a generic entity shadow.
func (s *Store) AddLocalEntity(ctx context.Context, le LocalEntity) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putLocalEntity(ctx, s.db, le)
}

// LocalEntities returns unsynced entity shadows of a type. An empty
// businessID returns them across all businesses.
func (s *Store) LocalEntities(ctx context.Context, entityType, businessID string) ([]LocalEntity, error) {
	query := `
		SELECT id, entity_type, business_id, entity_id, entity, operation, request_id, timestamp, synced
		FROM local_entities WHERE entity_type = ? AND synced = 0`
	args := []any{entityType}
	if businessID != "" {
		query += ` AND business_id = ?`
		args = append(args, businessID)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query local entities: %w", err)
	}
	defer rows.Close()

	var out []LocalEntity
	for rows.Next() {
		le, err := scanLocalEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating local entities: %w", err)
	}
	return out, nil
}

// LocalEntityByRequestID returns the entity shadow created for a request id.
func (s *Store) LocalEntityByRequestID(ctx context.Context, requestID string) (LocalEntity, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, business_id, entity_id, entity, operation, request_id, timestamp, synced
		FROM local_entities WHERE request_id = ? LIMIT 1
	`, requestID)
	if err != nil {
		return LocalEntity{}, false, fmt.Errorf("failed to query local entity: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return LocalEntity{}, false, rows.Err()
	}
	le, err := scanLocalEntity(rows)
	if err != nil {
		return LocalEntity{}, false, err
	}
	return le, true, nil
}

// RemoveLocalEntity deletes an entity shadow by id.
func (s *Store) RemoveLocalEntity(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove local entity: %w", err)
	}
	return nil
}

// RemoveLocalEntityByRequestID deletes the entity shadow for a request id.
func (s *Store) RemoveLocalEntityByRequestID(ctx context.Context, requestID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_entities WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("failed to remove local entity by request id: %w", err)
	}
	return nil
}

func scanLocalEntity(rows *sql.Rows) (LocalEntity, error) {
	var le LocalEntity
	var entity sql.NullString
	var synced int
	if err := rows.Scan(&le.ID, &le.EntityType, &le.BusinessID, &le.EntityID,
		&entity, &le.Operation, &le.RequestID, &le.Timestamp, &synced); err != nil {
		return LocalEntity{}, fmt.Errorf("failed to scan local entity: %w", err)
	}
	if entity.Valid {
		le.Entity = json.RawMessage(entity.String)
	}
	le.Synced = synced != 0
	return le, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

// AppendEvent writes a new event to the ledger. Events are append-only;
// an ID collision within a tenant means the row was already ingested.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, event *model.UniversalEvent) error {
	if err := validateEvent(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var ts any
	if !event.Timestamp.IsZero() {
		ts = event.Timestamp.UTC()
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, tenant_id, ts, amount, entity, category, sub_category,
			confidence, payload, status, superseded_by, source_file,
			row_index, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.TenantID, ts, event.Amount, event.Entity,
		event.Category, event.SubCategory, event.Confidence, string(payload),
		string(event.Status), nullable(event.SupersededBy), event.SourceFile,
		event.RowIndex, createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return common.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// GetEventByID retrieves a single event.
func (s *SQLiteStorage) GetEventByID(ctx context.Context, tenantID, id string) (*model.UniversalEvent, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}
	if err := validateString(ctx, id, "event ID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, ts, amount, entity, category, sub_category,
			confidence, payload, status, superseded_by, source_file,
			row_index, created_at
		FROM events
		WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// EventExists reports whether an event with the given ID was already recorded
// for the tenant.
func (s *SQLiteStorage) EventExists(ctx context.Context, tenantID, id string) (bool, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return false, err
	}
	if err := validateString(ctx, id, "event ID"); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM events WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return count > 0, nil
}

// SupersedeEvent records the replacement event and marks the original as
// superseded, in one transaction. The original row is never rewritten beyond
// its status and forward pointer.
func (s *SQLiteStorage) SupersedeEvent(ctx context.Context, tenantID, originalID string, replacement *model.UniversalEvent) error {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, originalID, "original event ID"); err != nil {
		return err
	}
	if err := validateEvent(ctx, replacement); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE events SET status = ?, superseded_by = ?
		WHERE tenant_id = ? AND id = ? AND status != ?`,
		string(model.StatusSuperseded), replacement.ID,
		tenantID, originalID, string(model.StatusSuperseded),
	)
	if err != nil {
		return fmt.Errorf("failed to mark event superseded: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM events WHERE tenant_id = ? AND id = ?`,
			tenantID, originalID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check original event: %w", err)
		}
		if count == 0 {
			return common.ErrNotFound
		}
		// Already superseded; replacement may exist from a prior attempt.
	}

	payload, err := json.Marshal(replacement.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var ts any
	if !replacement.Timestamp.IsZero() {
		ts = replacement.Timestamp.UTC()
	}
	createdAt := replacement.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (
			id, tenant_id, ts, amount, entity, category, sub_category,
			confidence, payload, status, superseded_by, source_file,
			row_index, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		replacement.ID, replacement.TenantID, ts, replacement.Amount,
		replacement.Entity, replacement.Category, replacement.SubCategory,
		replacement.Confidence, string(payload), string(replacement.Status),
		nullable(replacement.SupersededBy), replacement.SourceFile,
		replacement.RowIndex, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert replacement event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit supersede: %w", err)
	}
	return nil
}

// UpdateEventStatus changes only the status of an event.
func (s *SQLiteStorage) UpdateEventStatus(ctx context.Context, tenantID, id string, status model.EventStatus) error {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, id, "event ID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE tenant_id = ? AND id = ?`,
		string(status), tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetEvents returns events for a tenant matching the filter, newest first.
func (s *SQLiteStorage) GetEvents(ctx context.Context, tenantID string, filter service.EventFilter) ([]model.UniversalEvent, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, ts, amount, entity, category, sub_category,
			confidence, payload, status, superseded_by, source_file,
			row_index, created_at
		FROM events
		WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		query += " AND ts >= ?"
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		query += " AND ts < ?"
		args = append(args, filter.Until.UTC())
	}

	query += " ORDER BY ts DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.UniversalEvent
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan event: %w", scanErr)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.UniversalEvent, error) {
	var (
		event       model.UniversalEvent
		ts          sql.NullTime
		amount      sql.NullFloat64
		subCategory sql.NullString
		payload     sql.NullString
		status      string
		superseded  sql.NullString
	)

	err := row.Scan(
		&event.ID, &event.TenantID, &ts, &amount, &event.Entity,
		&event.Category, &subCategory, &event.Confidence, &payload,
		&status, &superseded, &event.SourceFile, &event.RowIndex,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ts.Valid {
		event.Timestamp = ts.Time.UTC()
	}
	if amount.Valid {
		v := amount.Float64
		event.Amount = &v
	}
	event.SubCategory = subCategory.String
	event.Status = model.EventStatus(status)
	event.SupersededBy = superseded.String

	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &event, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

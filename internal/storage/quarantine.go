package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
)

// CreateQuarantine records a low-confidence event for human review. At most
// one quarantine record can exist per event.
func (s *SQLiteStorage) CreateQuarantine(ctx context.Context, record *model.QuarantineRecord) error {
	if err := validateQuarantine(ctx, record); err != nil {
		return err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	resolution := record.Resolution
	if resolution == "" {
		resolution = model.ResolutionPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantine (id, tenant_id, event_id, reason, retry_count, resolution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.TenantID, record.EventID, record.Reason,
		record.RetryCount, string(resolution), createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return common.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert quarantine record: %w", err)
	}
	return nil
}

// GetQuarantineByEventID returns the quarantine record for an event.
func (s *SQLiteStorage) GetQuarantineByEventID(ctx context.Context, tenantID, eventID string) (*model.QuarantineRecord, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}
	if err := validateString(ctx, eventID, "event ID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, event_id, reason, retry_count, resolution,
			correction_category, correction_sub_category, created_at, resolved_at
		FROM quarantine
		WHERE tenant_id = ? AND event_id = ?`,
		tenantID, eventID,
	)

	record, err := scanQuarantine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quarantine record: %w", err)
	}
	return record, nil
}

// GetPendingQuarantine returns all unresolved quarantine records for a
// tenant, oldest first.
func (s *SQLiteStorage) GetPendingQuarantine(ctx context.Context, tenantID string) ([]model.QuarantineRecord, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, event_id, reason, retry_count, resolution,
			correction_category, correction_sub_category, created_at, resolved_at
		FROM quarantine
		WHERE tenant_id = ? AND resolution = ?
		ORDER BY created_at ASC`,
		tenantID, string(model.ResolutionPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending quarantine: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.QuarantineRecord
	for rows.Next() {
		record, scanErr := scanQuarantine(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan quarantine record: %w", scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quarantine records: %w", err)
	}
	return records, nil
}

// MarkQuarantineResolved moves a pending record to a terminal resolution.
// The transition happens at most once; a second attempt on the same record
// reports ErrAlreadyResolved so callers can treat retries as no-ops.
func (s *SQLiteStorage) MarkQuarantineResolved(ctx context.Context, tenantID, eventID string, resolution model.ResolutionStatus, correction *model.Correction) error {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, eventID, "event ID"); err != nil {
		return err
	}
	if resolution != model.ResolutionApproved && resolution != model.ResolutionRejected {
		return fmt.Errorf("%w: resolution must be terminal, got %q", ErrInvalidInput, resolution)
	}

	var correctionCategory, correctionSubCategory any
	if correction != nil {
		correctionCategory = correction.Category
		if correction.SubCategory != "" {
			correctionSubCategory = correction.SubCategory
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE quarantine
		SET resolution = ?, correction_category = ?, correction_sub_category = ?, resolved_at = ?
		WHERE tenant_id = ? AND event_id = ? AND resolution = ?`,
		string(resolution), correctionCategory, correctionSubCategory,
		time.Now().UTC(), tenantID, eventID, string(model.ResolutionPending),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve quarantine record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM quarantine WHERE tenant_id = ? AND event_id = ?`,
			tenantID, eventID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check quarantine record: %w", err)
		}
		if count == 0 {
			return common.ErrNotFound
		}
		return common.ErrAlreadyResolved
	}
	return nil
}

func scanQuarantine(row rowScanner) (*model.QuarantineRecord, error) {
	var (
		record                model.QuarantineRecord
		resolution            string
		correctionCategory    sql.NullString
		correctionSubCategory sql.NullString
		resolvedAt            sql.NullTime
	)

	err := row.Scan(
		&record.ID, &record.TenantID, &record.EventID, &record.Reason,
		&record.RetryCount, &resolution, &correctionCategory,
		&correctionSubCategory, &record.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Resolution = model.ResolutionStatus(resolution)
	if correctionCategory.Valid {
		record.Correction = &model.Correction{
			Category:    correctionCategory.String,
			SubCategory: correctionSubCategory.String,
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		record.ResolvedAt = &t
	}
	return &record, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
)

// EnsureProvisionalEntity inserts a placeholder registry record for an unseen
// entity name. The insert is atomic: when two ingests race on the same name,
// exactly one observes created=true. An existing record, provisional or
// official, is left untouched.
func (s *SQLiteStorage) EnsureProvisionalEntity(ctx context.Context, tenantID, name string) (bool, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return false, err
	}
	if err := validateString(ctx, name, "entity name"); err != nil {
		return false, err
	}

	normalized := model.NormalizeEntityName(name)
	if normalized == "" {
		return false, fmt.Errorf("%w: entity name normalizes to empty", ErrInvalidInput)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_registry (tenant_id, normalized_name, name, status, first_seen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, normalized_name) DO NOTHING`,
		tenantID, normalized, name, string(model.EntityProvisional), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure provisional entity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// PromoteEntity upserts an official registry record from a STATE declaration.
// A provisional placeholder is promoted in place; fields absent from the
// declaration keep their stored values.
func (s *SQLiteStorage) PromoteEntity(ctx context.Context, record *model.EntityRegistryRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: entity record cannot be nil", ErrInvalidInput)
	}
	if err := validateString(ctx, record.TenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, record.Name, "entity name"); err != nil {
		return err
	}

	normalized := record.NormalizedName
	if normalized == "" {
		normalized = model.NormalizeEntityName(record.Name)
	}
	if normalized == "" {
		return fmt.Errorf("%w: entity name normalizes to empty", ErrInvalidInput)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_registry (tenant_id, normalized_name, name, status, category, price, first_seen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, normalized_name) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			category = COALESCE(excluded.category, entity_registry.category),
			price = COALESCE(excluded.price, entity_registry.price),
			updated_at = excluded.updated_at`,
		record.TenantID, normalized, record.Name, string(model.EntityOfficial),
		nullable(record.Category), record.Price, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to promote entity: %w", err)
	}
	return nil
}

// GetEntity returns a registry record by its normalized name.
func (s *SQLiteStorage) GetEntity(ctx context.Context, tenantID, normalizedName string) (*model.EntityRegistryRecord, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}
	if err := validateString(ctx, normalizedName, "normalized name"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, normalized_name, name, status, category, price, first_seen, updated_at
		FROM entity_registry
		WHERE tenant_id = ? AND normalized_name = ?`,
		tenantID, normalizedName,
	)

	record, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return record, nil
}

// ListEntities returns all registry records for a tenant, name order.
func (s *SQLiteStorage) ListEntities(ctx context.Context, tenantID string) ([]model.EntityRegistryRecord, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, normalized_name, name, status, category, price, first_seen, updated_at
		FROM entity_registry
		WHERE tenant_id = ?
		ORDER BY normalized_name ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.EntityRegistryRecord
	for rows.Next() {
		record, scanErr := scanEntity(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return records, nil
}

func scanEntity(row rowScanner) (*model.EntityRegistryRecord, error) {
	var (
		record   model.EntityRegistryRecord
		status   string
		category sql.NullString
		price    sql.NullFloat64
	)
	err := row.Scan(
		&record.TenantID, &record.NormalizedName, &record.Name, &status,
		&category, &price, &record.FirstSeen, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Status = model.EntityStatus(status)
	record.Category = category.String
	if price.Valid {
		v := price.Float64
		record.Price = &v
	}
	return &record, nil
}

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

// GetPattern looks up a learned classification by entity signature.
func (s *SQLiteStorage) GetPattern(ctx context.Context, tenantID, signature string) (*model.LearnedPattern, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}
	if err := validateString(ctx, signature, "signature"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, signature, category, sub_category, use_count, last_confirmed
		FROM learned_patterns
		WHERE tenant_id = ? AND signature = ?`,
		tenantID, signature,
	)

	pattern, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}
	return pattern, nil
}

// SavePattern upserts a learned pattern. A repeat confirmation for the same
// signature overwrites the category and refreshes last_confirmed but keeps
// the accumulated use count.
func (s *SQLiteStorage) SavePattern(ctx context.Context, pattern *model.LearnedPattern) error {
	if err := validatePattern(ctx, pattern); err != nil {
		return err
	}

	lastConfirmed := pattern.LastConfirmed
	if lastConfirmed.IsZero() {
		lastConfirmed = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_patterns (tenant_id, signature, category, sub_category, use_count, last_confirmed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, signature) DO UPDATE SET
			category = excluded.category,
			sub_category = excluded.sub_category,
			last_confirmed = excluded.last_confirmed`,
		pattern.TenantID, pattern.Signature, pattern.Category,
		nullable(pattern.SubCategory), pattern.UseCount, lastConfirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// IncrementPatternUse bumps the cache-hit counter for a pattern.
func (s *SQLiteStorage) IncrementPatternUse(ctx context.Context, tenantID, signature string) error {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, signature, "signature"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE learned_patterns SET use_count = use_count + 1
		WHERE tenant_id = ? AND signature = ?`,
		tenantID, signature,
	)
	if err != nil {
		return fmt.Errorf("failed to increment pattern use: %w", err)
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

// ListPatterns returns all learned patterns for a tenant, most used first.
func (s *SQLiteStorage) ListPatterns(ctx context.Context, tenantID string) ([]model.LearnedPattern, error) {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, signature, category, sub_category, use_count, last_confirmed
		FROM learned_patterns
		WHERE tenant_id = ?
		ORDER BY use_count DESC, signature ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.LearnedPattern
	for rows.Next() {
		pattern, scanErr := scanPattern(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", scanErr)
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}
	return patterns, nil
}

// DeletePattern removes a learned pattern, forcing future rows with its
// signature back through the oracle.
func (s *SQLiteStorage) DeletePattern(ctx context.Context, tenantID, signature string) error {
	if err := validateString(ctx, tenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validateString(ctx, signature, "signature"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM learned_patterns WHERE tenant_id = ? AND signature = ?`,
		tenantID, signature,
	)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
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

func scanPattern(row rowScanner) (*model.LearnedPattern, error) {
	var (
		pattern       model.LearnedPattern
		subCategory   sql.NullString
		lastConfirmed sql.NullTime
	)
	err := row.Scan(
		&pattern.TenantID, &pattern.Signature, &pattern.Category,
		&subCategory, &pattern.UseCount, &lastConfirmed,
	)
	if err != nil {
		return nil, err
	}
	pattern.SubCategory = subCategory.String
	if lastConfirmed.Valid {
		pattern.LastConfirmed = lastConfirmed.Time.UTC()
	}
	return &pattern, nil
}

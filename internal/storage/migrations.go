package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Event ledger and quarantine table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS events (
					id TEXT NOT NULL,
					tenant_id TEXT NOT NULL,
					ts DATETIME,
					amount REAL,
					entity TEXT,
					category TEXT,
					sub_category TEXT,
					confidence INTEGER DEFAULT 0,
					payload TEXT,
					status TEXT NOT NULL,
					superseded_by TEXT,
					source_file TEXT,
					row_index INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, id)
				)`,
				`CREATE INDEX idx_events_tenant_status ON events(tenant_id, status)`,
				`CREATE INDEX idx_events_tenant_ts ON events(tenant_id, ts)`,

				`CREATE TABLE IF NOT EXISTS quarantine (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					event_id TEXT NOT NULL,
					reason TEXT,
					retry_count INTEGER DEFAULT 0,
					resolution TEXT NOT NULL DEFAULT 'PENDING',
					correction_category TEXT,
					correction_sub_category TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					resolved_at DATETIME,
					UNIQUE (tenant_id, event_id)
				)`,
				`CREATE INDEX idx_quarantine_tenant_resolution ON quarantine(tenant_id, resolution)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Learned-pattern cache and entity registry",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS learned_patterns (
					tenant_id TEXT NOT NULL,
					signature TEXT NOT NULL,
					category TEXT NOT NULL,
					sub_category TEXT,
					use_count INTEGER DEFAULT 0,
					last_confirmed DATETIME,
					PRIMARY KEY (tenant_id, signature)
				)`,

				`CREATE TABLE IF NOT EXISTS entity_registry (
					tenant_id TEXT NOT NULL,
					normalized_name TEXT NOT NULL,
					name TEXT NOT NULL,
					status TEXT NOT NULL,
					category TEXT,
					price REAL,
					first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, normalized_name)
				)`,
				`CREATE INDEX idx_entity_registry_status ON entity_registry(tenant_id, status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Category registry with default taxonomy",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					description TEXT DEFAULT '',
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_categories_active ON categories(is_active)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}

			defaults := map[string]string{
				"Sales":         "Revenue from goods or services sold",
				"Food":          "Food items and ingredients",
				"Beverages":     "Drinks, hot and cold",
				"Supplies":      "Consumable operating supplies",
				"Equipment":     "Durable equipment and tooling",
				"Payroll":       "Salaries, wages and contractor payments",
				"Overheads":     "Rent, utilities and recurring fixed costs",
				"Uncategorized": "Rows awaiting a confident category",
			}
			for name, description := range defaults {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (name, description) VALUES (?, ?)`,
					name, description,
				); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// Package testutil provides shared helpers for package tests, most
// importantly an in-memory migrated database.
package testutil

import (
	"context"
	"testing"

	"github.com/flowledger/ledgerd/internal/service"
	"github.com/flowledger/ledgerd/internal/storage"
)

// TestTenant is the tenant id used by tests that don't care about tenancy.
const TestTenant = "tenant-test"

// TestDB wraps a migrated in-memory database for a single test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory database, runs all migrations and
// registers cleanup. The default category taxonomy is seeded by migration.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedCategories adds extra categories on top of the migrated defaults.
func (db *TestDB) SeedCategories(names ...string) {
	db.t.Helper()
	ctx := context.Background()
	for _, name := range names {
		if _, err := db.Storage.CreateCategory(ctx, name, ""); err != nil {
			db.t.Fatalf("failed to seed category %q: %v", name, err)
		}
	}
}

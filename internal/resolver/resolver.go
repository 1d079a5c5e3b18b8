// Package resolver implements the entity registry policies: STREAM rows
// referencing unknown entities get provisional placeholder records so the
// event is never dropped, and STATE rows promote placeholders to official.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

// Resolver enforces the provisional/official entity duality. The
// provisional -> official transition is the only allowed mutation and this
// package is the only place that performs it.
type Resolver struct {
	store service.Storage
}

// New creates an entity resolver.
func New(store service.Storage) *Resolver {
	return &Resolver{store: store}
}

// ResolveStream ensures a registry record exists for an entity referenced by
// a STREAM row. Unknown entities get a provisional record; the underlying
// insert-if-absent is atomic, so concurrent uploads referencing the same
// entity produce exactly one record. Returns whether a record was created.
func (r *Resolver) ResolveStream(ctx context.Context, tenantID, entity string) (bool, error) {
	if model.NormalizeEntityName(entity) == "" {
		return false, nil
	}

	created, err := r.store.EnsureProvisionalEntity(ctx, tenantID, entity)
	if err != nil {
		return false, fmt.Errorf("failed to ensure provisional entity %q: %w", entity, err)
	}
	return created, nil
}

// ResolveState upserts an entity declared explicitly by a STATE row. An
// existing provisional record flips to official and merges the row's
// attributes; a missing record is created directly as official.
func (r *Resolver) ResolveState(ctx context.Context, tenantID, entity string, price *float64, category string) error {
	normalized := model.NormalizeEntityName(entity)
	if normalized == "" {
		return nil
	}

	record := &model.EntityRegistryRecord{
		TenantID:       tenantID,
		Name:           entity,
		NormalizedName: normalized,
		Status:         model.EntityOfficial,
		Category:       category,
		Price:          price,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := r.store.PromoteEntity(ctx, record); err != nil {
		return fmt.Errorf("failed to promote entity %q: %w", entity, err)
	}
	return nil
}

// Lookup returns the registry record for an entity name, or nil when the
// entity is unknown to the tenant.
func (r *Resolver) Lookup(ctx context.Context, tenantID, entity string) (*model.EntityRegistryRecord, error) {
	record, err := r.store.GetEntity(ctx, tenantID, model.NormalizeEntityName(entity))
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

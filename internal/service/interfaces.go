// Package service defines the interfaces between pipeline components and
// their collaborators, most importantly the persistence contract.
package service

import (
	"context"
	"time"

	"github.com/flowledger/ledgerd/internal/model"
)

// EventFilter defines filtering options for ledger queries.
type EventFilter struct {
	Since    *time.Time
	Until    *time.Time
	Category string
	Status   model.EventStatus
	Limit    int
	Offset   int
}

// Storage defines the contract for the four durable artifacts the pipeline
// owns: the ledger, the quarantine table, the learned-pattern cache and the
// entity registry. The pipeline requires only append, point-lookup and
// conditional-upsert operations; the physical engine behind them is an
// external collaborator concern.
type Storage interface {
	// Ledger operations. The ledger is append-only: corrections append a
	// superseding event and mark the original superseded.
	AppendEvent(ctx context.Context, event *model.UniversalEvent) error
	GetEventByID(ctx context.Context, tenantID, id string) (*model.UniversalEvent, error)
	EventExists(ctx context.Context, tenantID, id string) (bool, error)
	SupersedeEvent(ctx context.Context, tenantID, originalID string, superseding *model.UniversalEvent) error
	UpdateEventStatus(ctx context.Context, tenantID, id string, status model.EventStatus) error
	GetEvents(ctx context.Context, tenantID string, filter EventFilter) ([]model.UniversalEvent, error)

	// Quarantine operations. Resolution is terminal and idempotent at the
	// storage level: resolving a resolved record reports ErrAlreadyResolved.
	CreateQuarantine(ctx context.Context, record *model.QuarantineRecord) error
	GetQuarantineByEventID(ctx context.Context, tenantID, eventID string) (*model.QuarantineRecord, error)
	GetPendingQuarantine(ctx context.Context, tenantID string) ([]model.QuarantineRecord, error)
	MarkQuarantineResolved(ctx context.Context, tenantID, eventID string, resolution model.ResolutionStatus, correction *model.Correction) error

	// Learned-pattern operations, keyed per tenant + entity signature.
	GetPattern(ctx context.Context, tenantID, signature string) (*model.LearnedPattern, error)
	SavePattern(ctx context.Context, pattern *model.LearnedPattern) error
	IncrementPatternUse(ctx context.Context, tenantID, signature string) error
	ListPatterns(ctx context.Context, tenantID string) ([]model.LearnedPattern, error)
	DeletePattern(ctx context.Context, tenantID, signature string) error

	// Entity registry operations. EnsureProvisionalEntity is an atomic
	// insert-if-absent: the loser of a concurrent race observes the winner's
	// record and reports created=false.
	EnsureProvisionalEntity(ctx context.Context, tenantID, name string) (created bool, err error)
	PromoteEntity(ctx context.Context, record *model.EntityRegistryRecord) error
	GetEntity(ctx context.Context, tenantID, normalizedName string) (*model.EntityRegistryRecord, error)
	ListEntities(ctx context.Context, tenantID string) ([]model.EntityRegistryRecord, error)

	// Category registry operations.
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

// DefaultConfidenceThreshold is the routing boundary. The comparison is
// inclusive: confidence 85 is accepted, 84 is quarantined.
const DefaultConfidenceThreshold = 85

// Router sends high-confidence events to the main ledger and everything
// else into quarantine for human resolution.
type Router struct {
	store     service.Storage
	threshold int
}

// NewRouter creates a confidence router. The threshold is configuration,
// not something the pipeline may override per-row.
func NewRouter(store service.Storage, threshold int) *Router {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Router{store: store, threshold: threshold}
}

// Route persists the event according to its confidence. Quarantined events
// are written with QUARANTINED status and a referencing QuarantineRecord;
// they never enter the main ledger in that state.
func (r *Router) Route(ctx context.Context, event *model.UniversalEvent, reason string) (model.EventStatus, error) {
	if event.Confidence >= r.threshold {
		if event.Status != model.StatusProvisionalEntity {
			event.Status = model.StatusAccepted
		}
		if err := r.store.AppendEvent(ctx, event); err != nil {
			return "", fmt.Errorf("failed to append accepted event: %w", err)
		}
		return event.Status, nil
	}

	event.Status = model.StatusQuarantined
	if err := r.store.AppendEvent(ctx, event); err != nil {
		return "", fmt.Errorf("failed to append quarantined event: %w", err)
	}

	if reason == "" {
		reason = fmt.Sprintf("confidence %d below threshold %d", event.Confidence, r.threshold)
	}
	record := &model.QuarantineRecord{
		ID:         uuid.NewString(),
		TenantID:   event.TenantID,
		EventID:    event.ID,
		Reason:     reason,
		Resolution: model.ResolutionPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.CreateQuarantine(ctx, record); err != nil {
		return "", fmt.Errorf("failed to create quarantine record: %w", err)
	}

	return model.StatusQuarantined, nil
}

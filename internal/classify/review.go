package classify

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

// Decision is a human quarantine resolution.
type Decision string

// Quarantine decisions.
const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Reviewer applies human quarantine resolutions and closes the learning
// loop by feeding approvals back into the pattern cache.
type Reviewer struct {
	store service.Storage
}

// NewReviewer creates a quarantine reviewer.
func NewReviewer(store service.Storage) *Reviewer {
	return &Reviewer{store: store}
}

// Pending lists the tenant's unresolved quarantine records.
func (r *Reviewer) Pending(ctx context.Context, tenantID string) ([]model.QuarantineRecord, error) {
	return r.store.GetPendingQuarantine(ctx, tenantID)
}

// Resolve applies a terminal decision to a quarantined event. Resolving an
// already-resolved record is a no-op success so retried requests are safe.
func (r *Reviewer) Resolve(ctx context.Context, tenantID, eventID string, decision Decision, correction *model.Correction) error {
	record, err := r.store.GetQuarantineByEventID(ctx, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("quarantine record lookup failed: %w", err)
	}
	if record.Resolved() {
		slog.Debug("quarantine record already resolved, ignoring",
			"tenant", tenantID,
			"event_id", eventID,
			"resolution", record.Resolution)
		return nil
	}

	event, err := r.store.GetEventByID(ctx, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("quarantined event lookup failed: %w", err)
	}

	switch decision {
	case DecisionApprove:
		return r.approve(ctx, event, correction)
	case DecisionReject:
		return r.reject(ctx, event)
	default:
		return fmt.Errorf("unknown decision %q", decision)
	}
}

// approve accepts the event into the main ledger. A correction that changes
// the category appends a superseding event and marks the original
// superseded; the original is never overwritten.
func (r *Reviewer) approve(ctx context.Context, event *model.UniversalEvent, correction *model.Correction) error {
	category := event.Category
	subCategory := event.SubCategory
	if correction != nil && correction.Category != "" {
		category = correction.Category
		subCategory = correction.SubCategory
	}

	corrected := category != event.Category || subCategory != event.SubCategory

	if corrected {
		superseding := *event
		superseding.ID = resolutionID(event.ID)
		superseding.Category = category
		superseding.SubCategory = subCategory
		superseding.Confidence = maxConfidence
		superseding.Status = model.StatusAccepted
		superseding.CreatedAt = time.Now().UTC()
		superseding.SupersededBy = ""

		if err := r.store.SupersedeEvent(ctx, event.TenantID, event.ID, &superseding); err != nil {
			return fmt.Errorf("failed to supersede event: %w", err)
		}
	} else {
		if err := r.store.UpdateEventStatus(ctx, event.TenantID, event.ID, model.StatusAccepted); err != nil {
			return fmt.Errorf("failed to accept event: %w", err)
		}
	}

	if err := r.store.MarkQuarantineResolved(ctx, event.TenantID, event.ID, model.ResolutionApproved, correction); err != nil {
		if errors.Is(err, common.ErrAlreadyResolved) {
			return nil
		}
		return fmt.Errorf("failed to mark quarantine approved: %w", err)
	}

	r.learn(ctx, event.TenantID, event.Entity, category, subCategory)
	return nil
}

// reject discards the event; it never enters the main ledger and nothing is
// learned, because a reject is not evidence of a correct alternative.
func (r *Reviewer) reject(ctx context.Context, event *model.UniversalEvent) error {
	if err := r.store.UpdateEventStatus(ctx, event.TenantID, event.ID, model.StatusRejected); err != nil {
		return fmt.Errorf("failed to reject event: %w", err)
	}
	if err := r.store.MarkQuarantineResolved(ctx, event.TenantID, event.ID, model.ResolutionRejected, nil); err != nil {
		if errors.Is(err, common.ErrAlreadyResolved) {
			return nil
		}
		return fmt.Errorf("failed to mark quarantine rejected: %w", err)
	}
	return nil
}

// learn upserts the entity's pattern so the next occurrence in any upload
// hits the cache and skips the oracle entirely.
func (r *Reviewer) learn(ctx context.Context, tenantID, entity, category, subCategory string) {
	signature := model.PatternSignature(entity)
	if signature == "" || category == "" {
		return
	}

	pattern := &model.LearnedPattern{
		TenantID:      tenantID,
		Signature:     signature,
		Category:      category,
		SubCategory:   subCategory,
		LastConfirmed: time.Now().UTC(),
	}
	if err := r.store.SavePattern(ctx, pattern); err != nil {
		slog.Error("failed to save learned pattern",
			"tenant", tenantID,
			"signature", signature,
			"error", err)
	}
}

// resolutionID derives the superseding event's id from the original, so a
// retried approval produces the same superseding event rather than a second.
func resolutionID(originalID string) string {
	hash := sha256.Sum256([]byte(originalID + ":resolution"))
	return fmt.Sprintf("%x", hash)
}

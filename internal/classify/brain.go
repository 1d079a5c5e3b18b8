package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/ingest"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/oracle"
	"github.com/flowledger/ledgerd/internal/service"
)

// maxConfidence is reported for learned-pattern cache hits: the category was
// confirmed by a human for exactly this entity signature.
const maxConfidence = 100

// RowClassification is the Brain's verdict for one mapped row.
type RowClassification struct {
	Category    string
	SubCategory string
	Reason      string
	Confidence  int
	FromCache   bool
}

// Brain assigns a business category to each row, consulting the per-tenant
// learned-pattern cache before falling back to the oracle.
type Brain struct {
	store   service.Storage
	oracle  oracle.Client // nil degrades to cache-only classification
	timeout time.Duration
}

// NewBrain creates a semantic category classifier.
func NewBrain(store service.Storage, client oracle.Client, timeout time.Duration) *Brain {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Brain{store: store, oracle: client, timeout: timeout}
}

// Classify produces a category with a confidence in [0,100]. A cache hit
// yields the cached category at maximum confidence with zero oracle calls.
// Oracle unavailability is never an error: it yields confidence 0, which the
// router turns into a quarantine record.
func (b *Brain) Classify(ctx context.Context, tenantID string, row ingest.MappedRow, kind model.FileKind, categories []string) (RowClassification, error) {
	signature := model.PatternSignature(row.Entity)
	if signature != "" {
		pattern, err := b.store.GetPattern(ctx, tenantID, signature)
		switch {
		case err == nil:
			if incErr := b.store.IncrementPatternUse(ctx, tenantID, signature); incErr != nil {
				slog.Warn("failed to increment pattern use count",
					"tenant", tenantID,
					"signature", signature,
					"error", incErr)
			}
			return RowClassification{
				Category:    pattern.Category,
				SubCategory: pattern.SubCategory,
				Confidence:  maxConfidence,
				FromCache:   true,
			}, nil
		case !errors.Is(err, common.ErrNotFound):
			return RowClassification{}, fmt.Errorf("pattern lookup failed: %w", err)
		}
	}

	if b.oracle == nil {
		return RowClassification{
			Confidence: 0,
			Reason:     "no oracle configured, deferred to human review",
		}, nil
	}

	oracleCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.oracle.ClassifyRow(oracleCtx, oracle.ClassificationRequest{
		TenantID:   tenantID,
		Entity:     row.Entity,
		Amount:     row.Amount,
		Timestamp:  row.Timestamp,
		Payload:    row.Residual,
		FileKind:   kind,
		Categories: categories,
	})
	if err != nil {
		// Logged, never surfaced as an upload failure. At worst the pipeline
		// over-produces quarantine records.
		slog.Warn("oracle classification failed, deferring to review",
			"tenant", tenantID,
			"entity", row.Entity,
			"error", err)
		return RowClassification{
			Confidence: 0,
			Reason:     fmt.Sprintf("oracle unavailable: %v", err),
		}, nil
	}

	return RowClassification{
		Category:    resp.Category,
		SubCategory: resp.SubCategory,
		Confidence:  resp.Confidence,
	}, nil
}

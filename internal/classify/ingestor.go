// Package classify orchestrates the pipeline: stream/state determination,
// per-row category classification, confidence routing and the quarantine
// learning loop.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowledger/ledgerd/internal/ingest"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/oracle"
	"github.com/flowledger/ledgerd/internal/resolver"
	"github.com/flowledger/ledgerd/internal/service"
)

// Config holds the pipeline tunables. The defaults for ChunkSize and
// ConfidenceThreshold are behavioral contracts, not suggestions.
type Config struct {
	Detector            ingest.DetectorConfig
	ChunkSize           int
	ConfidenceThreshold int
	MaxParallelChunks   int
	OracleTimeout       time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:           50,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxParallelChunks:   4,
		OracleTimeout:       20 * time.Second,
		Detector:            ingest.DefaultDetectorConfig(),
	}
}

// Ingestor runs a file through every pipeline stage and persists the
// resulting events.
type Ingestor struct {
	store    service.Storage
	detector *ingest.Detector
	bouncer  *ingest.Bouncer
	mapper   *ingest.Mapper
	brain    *Brain
	router   *Router
	resolver *resolver.Resolver
	cfg      Config
}

// NewIngestor wires the pipeline. A nil oracle client is valid: header ties
// fall back to heuristic score and cache misses go straight to quarantine.
func NewIngestor(store service.Storage, client oracle.Client, cfg Config) *Ingestor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.MaxParallelChunks <= 0 {
		cfg.MaxParallelChunks = 4
	}

	return &Ingestor{
		store:    store,
		detector: ingest.NewDetector(cfg.Detector, client),
		bouncer:  ingest.NewBouncer(),
		mapper:   ingest.NewMapper(),
		brain:    NewBrain(store, client, cfg.OracleTimeout),
		router:   NewRouter(store, cfg.ConfidenceThreshold),
		resolver: resolver.New(store),
		cfg:      cfg,
	}
}

// IngestFile reads and processes one uploaded file as a unit of work.
func (ing *Ingestor) IngestFile(ctx context.Context, tenantID, path string) (*model.IngestResult, error) {
	grid, err := ingest.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ing.IngestGrid(ctx, tenantID, grid)
}

// IngestGrid processes an in-memory grid through the full pipeline. The
// returned result enumerates every outcome; on cancellation the counts
// cover the chunks that completed, which stay durable.
func (ing *Ingestor) IngestGrid(ctx context.Context, tenantID string, grid *model.RawGrid) (*model.IngestResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	header, err := ing.detector.Detect(ctx, grid)
	if err != nil {
		return nil, err
	}

	if err := ing.bouncer.Admit(header.Columns, grid.SourceName); err != nil {
		return nil, err
	}

	mapping := ing.mapper.MapColumns(header.Columns)
	mapped := ing.mapper.MapRows(grid, header.Row, mapping)
	verdict := DetectKind(grid.SourceName, mapping)

	result := &model.IngestResult{
		SourceFile:      grid.SourceName,
		TotalRows:       len(mapped.Rows) + mapped.Failed,
		MappedEvents:    len(mapped.Rows),
		FailedEvents:    mapped.Failed,
		HeaderRow:       header.Row,
		DetectionMethod: header.Method,
		ColumnMapping:   mapping.Names(),
		FileKind:        verdict.Kind,
		KindConfidence:  verdict.Confidence,
		Degenerate:      len(mapped.Rows) < 2,
	}

	if result.Degenerate {
		slog.Warn("degenerate file, fewer than 2 data rows after header",
			"source", grid.SourceName,
			"rows", len(mapped.Rows))
	}

	categories, err := ing.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	categoryNames := make([]string, len(categories))
	for i, cat := range categories {
		categoryNames[i] = cat.Name
	}

	slog.Info("ingesting file",
		"tenant", tenantID,
		"source", grid.SourceName,
		"kind", verdict.Kind,
		"header_row", header.Row,
		"detection", header.Method,
		"rows", len(mapped.Rows))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.cfg.MaxParallelChunks)

	for start := 0; start < len(mapped.Rows); start += ing.cfg.ChunkSize {
		end := start + ing.cfg.ChunkSize
		if end > len(mapped.Rows) {
			end = len(mapped.Rows)
		}
		chunk := mapped.Rows[start:end]

		g.Go(func() error {
			stats, chunkErr := ing.processChunk(gctx, tenantID, grid.SourceName, chunk, verdict.Kind, categoryNames)
			mu.Lock()
			result.Accepted += stats.accepted
			result.Quarantined += stats.quarantined
			result.Duplicates += stats.duplicates
			result.ProvisionalCreated += stats.provisional
			result.MappedEvents -= stats.failed
			result.FailedEvents += stats.failed
			mu.Unlock()
			return chunkErr
		})
	}

	if err := g.Wait(); err != nil {
		// Cancellation is not a rollback: completed chunks stay durable and
		// are reflected in the partial counts.
		return result, err
	}

	return result, nil
}

type chunkStats struct {
	accepted    int
	quarantined int
	duplicates  int
	provisional int
	failed      int
}

// processChunk classifies and persists one fixed-size chunk of rows. Output
// order within the chunk matches input row order. Row-level persistence
// errors fail the row, never the chunk; only cancellation stops the chunk.
func (ing *Ingestor) processChunk(ctx context.Context, tenantID, sourceFile string, rows []ingest.MappedRow, kind model.FileKind, categories []string) (chunkStats, error) {
	var stats chunkStats

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		event := &model.UniversalEvent{
			TenantID:   tenantID,
			Timestamp:  row.Timestamp,
			Amount:     row.Amount,
			Entity:     row.Entity,
			Payload:    payloadFor(row),
			SourceFile: sourceFile,
			RowIndex:   row.Index,
			CreatedAt:  time.Now().UTC(),
		}
		event.ID = event.GenerateID()

		exists, err := ing.store.EventExists(ctx, tenantID, event.ID)
		if err != nil {
			slog.Error("dedup lookup failed", "event_id", event.ID, "error", err)
			stats.failed++
			continue
		}
		if exists {
			stats.duplicates++
			continue
		}

		createdProvisional := false
		if kind == model.FileKindStream {
			created, resolveErr := ing.resolver.ResolveStream(ctx, tenantID, row.Entity)
			if resolveErr != nil {
				slog.Error("entity resolution failed", "entity", row.Entity, "error", resolveErr)
				stats.failed++
				continue
			}
			createdProvisional = created
		}

		cls, err := ing.brain.Classify(ctx, tenantID, row, kind, categories)
		if err != nil {
			slog.Error("classification failed", "entity", row.Entity, "error", err)
			stats.failed++
			continue
		}

		event.Category = cls.Category
		event.SubCategory = cls.SubCategory
		event.Confidence = cls.Confidence
		if createdProvisional {
			// Accepted events referencing an auto-created placeholder carry
			// the provisional tag; they still live in the main ledger.
			event.Status = model.StatusProvisionalEntity
		}

		status, err := ing.router.Route(ctx, event, cls.Reason)
		if err != nil {
			slog.Error("routing failed", "event_id", event.ID, "error", err)
			stats.failed++
			continue
		}

		switch status {
		case model.StatusQuarantined:
			stats.quarantined++
		default:
			stats.accepted++
		}
		if createdProvisional {
			stats.provisional++
		}

		if kind == model.FileKindState {
			if err := ing.resolver.ResolveState(ctx, tenantID, row.Entity, row.Amount, cls.Category); err != nil {
				slog.Warn("state entity promotion failed", "entity", row.Entity, "error", err)
			}
		}
	}

	return stats, nil
}

// payloadFor preserves the row's unmapped fields plus the reference, so the
// event is reconstructable without the source file.
func payloadFor(row ingest.MappedRow) map[string]string {
	payload := make(map[string]string, len(row.Residual)+1)
	for k, v := range row.Residual {
		payload[k] = v
	}
	if row.Reference != "" {
		payload["reference"] = row.Reference
	}
	return payload
}

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/config"
	"github.com/flowledger/ledgerd/internal/oracle"
	"github.com/flowledger/ledgerd/internal/service"
	"github.com/flowledger/ledgerd/internal/storage"
)

// initStorage opens the configured database and brings the schema current.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, common.NewUserError("cannot open the ledger database", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("database migration failed", err)
	}

	return store, nil
}

// initOracle builds the configured oracle client. A nil client with nil
// error is valid and means classification falls back to cache and
// quarantine.
func initOracle() (oracle.Client, error) {
	cfg := config.LoadOracleConfig()
	client, err := oracle.NewClient(cfg)
	if err != nil {
		return nil, common.NewUserError("oracle configuration is invalid", err)
	}
	if client == nil {
		slog.Warn("no oracle configured, unrecognized rows will be quarantined")
	}
	return client, nil
}

// initPipeline wires storage, oracle and ingestor together. The returned
// cleanup closes both; it is safe to call exactly once.
func initPipeline(ctx context.Context) (service.Storage, *classify.Ingestor, func(), error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := initOracle()
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if closer, ok := client.(io.Closer); ok {
			_ = closer.Close()
		}
		_ = store.Close()
	}

	return store, classify.NewIngestor(store, client, pipelineConfig()), cleanup, nil
}

// pipelineConfig overlays config-file tunables on the pipeline defaults.
func pipelineConfig() classify.Config {
	cfg := classify.DefaultConfig()
	if v := viper.GetInt("classify.confidence_threshold"); v > 0 {
		cfg.ConfidenceThreshold = v
	}
	if v := viper.GetInt("classify.chunk_size"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := viper.GetInt("classify.max_parallel_chunks"); v > 0 {
		cfg.MaxParallelChunks = v
	}
	// Margin 0 is meaningful (exact ties only), so presence, not value.
	if viper.IsSet("detect.tiebreak_margin") {
		cfg.Detector.TiebreakMargin = viper.GetInt("detect.tiebreak_margin")
	}
	if v := viper.GetInt("detect.max_scan_rows"); v > 0 {
		cfg.Detector.MaxScanRows = v
	}
	return cfg
}

func currentTenant() string {
	if tenant := viper.GetString("tenant"); tenant != "" {
		return tenant
	}
	return "default"
}

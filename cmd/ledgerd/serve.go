package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP ingestion API",
		Long: `Start an HTTP server exposing file upload, quarantine review and
registry inspection endpoints.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, ingestor, cleanup, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := server.DefaultConfig()
	if addr := viper.GetString("server.addr"); addr != "" {
		cfg.Addr = addr
	}
	cfg.DefaultTenant = currentTenant()

	srv := server.New(store, ingestor, classify.NewReviewer(store), slog.Default(), cfg)
	return srv.ListenAndServe(ctx)
}

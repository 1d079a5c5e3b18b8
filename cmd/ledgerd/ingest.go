package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowledger/ledgerd/internal/cli"
	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest tabular files into the ledger",
		Long: `Run one or more CSV or XLSX files through the full pipeline: header
detection, schema admission, column mapping, classification and routing.
Each file is processed as a unit; a rejected file reports why without
affecting the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenant := currentTenant()

	_, ingestor, cleanup, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var failures int
	for _, path := range args {
		result, ingestErr := ingestor.IngestFile(ctx, tenant, path)
		if ingestErr != nil {
			failures++
			var rejection *common.RejectionError
			if errors.As(ingestErr, &rejection) {
				fmt.Println(cli.FormatError(fmt.Sprintf("%s rejected [%s]: %s", path, rejection.Code, rejection.Reason)))
				continue
			}
			fmt.Println(cli.FormatError(fmt.Sprintf("%s failed: %v", path, ingestErr)))
			continue
		}
		printResult(result)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d file(s) were not ingested", failures, len(args))
	}
	return nil
}

func printResult(result *model.IngestResult) {
	fmt.Println(cli.FormatTitle(result.SourceFile))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  File kind:\t%s (%.0f%% confidence)\n", result.FileKind, result.KindConfidence*100)
	fmt.Fprintf(w, "  Header row:\t%d (%s)\n", result.HeaderRow, result.DetectionMethod)
	fmt.Fprintf(w, "  Rows:\t%d total, %d mapped, %d failed\n", result.TotalRows, result.MappedEvents, result.FailedEvents)
	fmt.Fprintf(w, "  Accepted:\t%d\n", result.Accepted)
	fmt.Fprintf(w, "  Quarantined:\t%d\n", result.Quarantined)
	fmt.Fprintf(w, "  Duplicates:\t%d\n", result.Duplicates)
	if result.ProvisionalCreated > 0 {
		fmt.Fprintf(w, "  New entities:\t%d provisional\n", result.ProvisionalCreated)
	}
	_ = w.Flush()

	if len(result.ColumnMapping) > 0 {
		fields := make([]string, 0, len(result.ColumnMapping))
		for field := range result.ColumnMapping {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		fmt.Println(cli.SubtleStyle.Render("  Column mapping:"))
		for _, field := range fields {
			fmt.Printf("    %s ← %q\n", field, result.ColumnMapping[field])
		}
	}

	if result.Degenerate {
		fmt.Println(cli.FormatWarning("file has fewer than two data rows, kind determination is unreliable"))
	}
	if result.Quarantined > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d event(s) need review: run 'ledgerd quarantine review'", result.Quarantined)))
	}
	fmt.Println()
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowledger/ledgerd/internal/cli"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the event ledger",
		RunE:  runEvents,
	}

	cmd.Flags().String("status", "", "filter by status (ACCEPTED, QUARANTINED, REJECTED, SUPERSEDED)")
	cmd.Flags().String("category", "", "filter by category")
	cmd.Flags().Int("limit", 50, "maximum events to show")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.GetEvents(ctx, currentTenant(), service.EventFilter{
		Status:   model.EventStatus(status),
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No events match"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tENTITY\tAMOUNT\tCATEGORY\tCONF\tSTATUS")
	for _, e := range events {
		date := ""
		if !e.Timestamp.IsZero() {
			date = e.Timestamp.Format(time.DateOnly)
		}
		amount := ""
		if e.Amount != nil {
			amount = fmt.Sprintf("%.2f", *e.Amount)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			date, e.Entity, amount, e.Category, e.Confidence, e.Status)
	}
	return w.Flush()
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowledger/ledgerd/internal/cli"
	"github.com/flowledger/ledgerd/internal/model"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entities",
		Aliases: []string{"entity"},
		Short:   "Inspect the entity registry",
	}

	cmd.AddCommand(entitiesListCmd())

	return cmd
}

func entitiesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			provisionalOnly, _ := cmd.Flags().GetBool("provisional")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entities, err := store.ListEntities(ctx, currentTenant())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATUS\tCATEGORY\tFIRST SEEN")
			var shown int
			for _, e := range entities {
				if provisionalOnly && e.Status != model.EntityProvisional {
					continue
				}
				shown++
				status := string(e.Status)
				if e.Status == model.EntityProvisional {
					status = cli.WarningStyle.Render(status)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Name, status, e.Category,
					e.FirstSeen.Format(time.DateOnly))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if shown == 0 {
				fmt.Println(cli.SubtleStyle.Render("No entities recorded"))
			}
			return nil
		},
	}

	cmd.Flags().Bool("provisional", false, "show only provisional entities")
	return cmd
}

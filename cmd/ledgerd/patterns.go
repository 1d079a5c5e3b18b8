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

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patterns",
		Aliases: []string{"pattern"},
		Short:   "Manage learned classification patterns",
		Long: `Learned patterns map an entity signature to a confirmed category. They
are created when a human approves a quarantined event and short-circuit
classification for every later match.`,
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsDeleteCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			patterns, err := store.ListPatterns(ctx, currentTenant())
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No learned patterns yet"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tCATEGORY\tUSES\tLAST CONFIRMED")
			for _, p := range patterns {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					p.Signature, categoryLabel(p),
					p.UseCount, p.LastConfirmed.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func patternsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <signature>",
		Short: "Delete a learned pattern",
		Long:  `Remove a pattern so future rows from its entity go back through full classification.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			signature := model.PatternSignature(args[0])
			if err := store.DeletePattern(ctx, currentTenant(), signature); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Pattern %q deleted", signature)))
			return nil
		},
	}
}

func categoryLabel(p model.LearnedPattern) string {
	if p.SubCategory != "" {
		return p.Category + " / " + p.SubCategory
	}
	return p.Category
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/cli"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

func quarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect and resolve quarantined events",
	}

	cmd.AddCommand(quarantineListCmd())
	cmd.AddCommand(quarantineResolveCmd())
	cmd.AddCommand(quarantineReviewCmd())

	return cmd
}

func quarantineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events awaiting review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.GetPendingQuarantine(ctx, currentTenant())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatSuccess("Quarantine is empty"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT ID\tREASON\tQUEUED")
			for _, record := range records {
				fmt.Fprintf(w, "%.12s…\t%s\t%s\n",
					record.EventID, record.Reason,
					record.CreatedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func quarantineResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <event-id>",
		Short: "Resolve a single quarantined event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			approve, _ := cmd.Flags().GetBool("approve")
			reject, _ := cmd.Flags().GetBool("reject")
			category, _ := cmd.Flags().GetString("category")
			subCategory, _ := cmd.Flags().GetString("sub-category")

			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject is required")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			decision := classify.DecisionApprove
			if reject {
				decision = classify.DecisionReject
			}

			var correction *model.Correction
			if category != "" {
				correction = &model.Correction{Category: category, SubCategory: subCategory}
			}

			reviewer := classify.NewReviewer(store)
			if err := reviewer.Resolve(ctx, currentTenant(), args[0], decision, correction); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Event %.12s… resolved: %s", args[0], decision)))
			return nil
		},
	}

	cmd.Flags().Bool("approve", false, "approve the event into the ledger")
	cmd.Flags().Bool("reject", false, "reject the event")
	cmd.Flags().String("category", "", "corrected category (implies approval with correction)")
	cmd.Flags().String("sub-category", "", "corrected sub-category")

	return cmd
}

func quarantineReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Interactively review pending events",
		Long: `Walk through every pending quarantined event, approving, correcting or
rejecting each one. Approvals with a correction teach the classifier:
future rows from the same entity classify instantly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return runReviewSession(ctx, store, currentTenant())
		},
	}
}

func runReviewSession(ctx context.Context, store service.Storage, tenant string) error {
	reviewer := classify.NewReviewer(store)

	records, err := reviewer.Pending(ctx, tenant)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(cli.FormatSuccess("Quarantine is empty, nothing to review"))
		return nil
	}

	prompter := cli.NewPrompter(os.Stdin, os.Stdout)
	if categories, catErr := store.GetCategories(ctx); catErr == nil {
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.Name)
		}
		prompter.SetCategories(names)
	}
	prompter.StartSession(len(records))

	var approved, rejected, skipped int
	for _, record := range records {
		event, getErr := store.GetEventByID(ctx, tenant, record.EventID)
		if getErr != nil {
			return fmt.Errorf("failed to load event %s: %w", record.EventID, getErr)
		}

		outcome, reviewErr := prompter.Review(ctx, cli.ReviewItem{Record: record, Event: event})
		if reviewErr != nil {
			if errors.Is(reviewErr, cli.ErrReviewAborted) || errors.Is(reviewErr, context.Canceled) {
				break
			}
			return reviewErr
		}
		if outcome.Skipped {
			skipped++
			continue
		}

		if err := reviewer.Resolve(ctx, tenant, record.EventID, outcome.Decision, outcome.Correction); err != nil {
			return fmt.Errorf("failed to resolve event %s: %w", record.EventID, err)
		}
		if outcome.Decision == classify.DecisionApprove {
			approved++
		} else {
			rejected++
		}
	}

	prompter.FinishSession(approved, rejected, skipped)
	return nil
}

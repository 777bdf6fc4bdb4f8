package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"devclip/internal/billing"
	"devclip/internal/models"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	var (
		all       bool
		accountID string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run the monthly credit refresh",
		Long:  "refresh grants the plan allocation plus capped carryover, either to one account or to every account not refreshed this month.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (accountID != "") {
				return fmt.Errorf("exactly one of --all or --account is required")
			}

			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}

			if all {
				n := billing.NewRefreshWorker(ledger, 0).RunOnce(cmd.Context())
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d accounts\n", n)
				return nil
			}

			id, err := uuid.Parse(accountID)
			if err != nil {
				return fmt.Errorf("invalid account ID: %w", err)
			}
			account, err := ledger.MonthlyRefresh(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "refresh every account due this month")
	cmd.Flags().StringVar(&accountID, "account", "", "refresh a single account")
	return cmd
}

func newSetPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan ACCOUNT TIER",
		Short: "Move an account to a plan and reset its balance to the plan allocation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account ID: %w", err)
			}
			tier, err := models.ParsePlanTier(args[1])
			if err != nil {
				return err
			}

			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			account, err := ledger.SetPlan(cmd.Context(), id, tier)
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		},
	}
}

func newCreateAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-account EMAIL",
		Short: "Open a free-tier account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			account, err := ledger.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		},
	}
}

func newIssueKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-key ACCOUNT LABEL",
		Short: "Issue an API key; the secret is printed once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account ID: %w", err)
			}

			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			account, err := ledger.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			keys, err := a.keys(cmd.Context())
			if err != nil {
				return err
			}
			issued, err := keys.Issue(cmd.Context(), account.ID, account.Tier, args[1])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", issued.Key.ID, issued.Secret)
			return nil
		},
	}
}

func printAccount(cmd *cobra.Command, account *models.Account) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tbalance=%d\tcarryover=%d\n",
		account.ID, account.Email, account.Tier, account.Balance, account.Carryover)
}

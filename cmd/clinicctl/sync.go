package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/orthoflow/practice-service/internal/app"
	"github.com/orthoflow/practice-service/internal/legacysync"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Legacy booking sync",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Import bookings from the legacy system once and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Sync.Run(ctx, legacysync.TriggerCLI)
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				runs, err := a.Sync.Runs(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), runs)
			})
		},
	}
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")

	cmd.AddCommand(runCmd, historyCmd)
	return cmd
}

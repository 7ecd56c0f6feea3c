package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orthoflow/practice-service/internal/app"
)

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Data retention tasks",
	}

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "Permanently delete patients soft-deleted longer than PATIENT_RETENTION",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				count, err := a.Retention.ExpiredCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d patient(s) eligible for permanent deletion\n", count)
				if dryRun || count == 0 {
					return nil
				}

				res, err := a.Retention.CleanupExpiredPatients(ctx)
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if res.Failed > 0 {
					return fmt.Errorf("%d patient(s) could not be purged", res.Failed)
				}
				return nil
			})
		},
	}
	patientsCmd.Flags().Bool("dry-run", false, "Only report how many patients would be deleted")

	cmd.AddCommand(patientsCmd)
	return cmd
}

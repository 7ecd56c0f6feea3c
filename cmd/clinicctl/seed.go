package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orthoflow/practice-service/internal/app"
	"github.com/orthoflow/practice-service/internal/photo"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "Create photo categories from a YAML file, skipping slugs that exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			reqs, err := photo.LoadCategorySeed(file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Photos.SeedCategories(ctx, reqs)
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d existing\n", res.Created, res.Skipped)
				return err
			})
		},
	}
	categoriesCmd.Flags().StringP("file", "f", "categories.yml", "YAML file listing the categories")

	cmd.AddCommand(categoriesCmd)
	return cmd
}

package main

import (
	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show posting counts and the last batch run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		_, res, err := setup(ctx)
		if err != nil {
			return err
		}
		defer res.Close()

		stats, err := res.Store.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dto.NewStatusResponse(stats))
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Derive missing statuses from the legacy processed flag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		_, res, err := setup(ctx)
		if err != nil {
			return err
		}
		defer res.Close()

		n, err := res.Store.BackfillStatuses(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]int64{"updated": n})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, backfillCmd)
}

package main

import (
	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/spf13/cobra"
)

var (
	resetProcess bool
	resetLimit   int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Put every posting back into pending",
	Long:  "Resets all postings to pending and clears their notes. With --process a batch runs right after.",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetProcess, "process", false, "run a batch after resetting")
	resetCmd.Flags().IntVarP(&resetLimit, "limit", "n", 0, "batch limit when --process is set (default from config)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, res, err := setup(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	if !resetProcess {
		count, err := res.Store.ResetAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dto.ResetResponse{
			Message: "All jobs reset successfully",
			Count:   count,
		})
	}

	limit := resetLimit
	if limit <= 0 {
		limit = cfg.Processing.BatchLimit
	}

	count, result, err := res.Processor.ResetAndProcess(ctx, res.Store, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"count": count,
		"batch": result,
	})
}

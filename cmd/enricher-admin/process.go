package main

import (
	"fmt"

	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var batchLimit int

var processOnceCmd = &cobra.Command{
	Use:   "process-once",
	Short: "Run one batch over eligible postings",
	Long:  "Processes up to --limit pending, failed or stale postings, oldest first, and prints the run summary.",
	Args:  cobra.NoArgs,
	RunE:  runProcessOnce,
}

var processCmd = &cobra.Command{
	Use:   "process <posting-id>",
	Short: "Process a single posting now",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processOnceCmd.Flags().IntVarP(&batchLimit, "limit", "n", 0, fmt.Sprintf("maximum postings to attempt (default from config, max %d)", processor.MaxBatchLimit))
	rootCmd.AddCommand(processOnceCmd, processCmd)
}

func runProcessOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, res, err := setup(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	limit := batchLimit
	if limit <= 0 {
		limit = cfg.Processing.BatchLimit
	}
	limit = min(limit, processor.MaxBatchLimit)

	result, err := res.Processor.ProcessPending(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runProcess(cmd *cobra.Command, args []string) error {
	id := args[0]
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("posting id must be a valid UUID: %w", err)
	}

	ctx := cmd.Context()
	_, res, err := setup(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	result, err := res.Processor.ProcessOne(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

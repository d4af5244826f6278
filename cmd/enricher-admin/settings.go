package main

import (
	"fmt"

	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/spf13/cobra"
)

var autoProcessingCmd = &cobra.Command{
	Use:       "auto-processing [on|off]",
	Short:     "Show or change the auto-processing switch",
	Long:      "Without an argument prints the current value. The change applies to the next trigger.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      runAutoProcessing,
}

func init() {
	rootCmd.AddCommand(autoProcessingCmd)
}

func runAutoProcessing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, res, err := setup(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	provider, err := res.Settings(cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		enabled := args[0] == "on"
		if err := provider.SetAutoProcessing(ctx, enabled); err != nil {
			return fmt.Errorf("failed to store setting: %w", err)
		}
	}

	enabled, err := provider.AutoProcessingEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to read setting: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), dto.AutoProcessingSetting{Enabled: enabled})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/job-enricher/internal/bootstrap"
	"github.com/cuongbtq/job-enricher/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "enricher-admin",
	Short:         "Operate the job posting enrichment pipeline",
	Long:          "enricher-admin runs batches, resets and inspects enrichment state against the configured store.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: ENRICHER_CONFIG env var or configs/api-service/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > ENRICHER_CONFIG env var > the api service config
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if path == "" {
		if env := os.Getenv("ENRICHER_CONFIG"); env != "" {
			path = env
		} else {
			path = "configs/api-service/config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateProcessingConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and builds the store and processor
func setup(ctx context.Context) (*config.Config, *bootstrap.Resources, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	// keep stdout for command output
	cfg.Logging.Output = "stderr"

	appLogger, err := bootstrap.InitLogger(&cfg.Logging, "enricher-admin")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	res, err := bootstrap.Build(ctx, cfg, appLogger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

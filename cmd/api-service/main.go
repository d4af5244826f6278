package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/job-enricher/internal/api/handler"
	"github.com/cuongbtq/job-enricher/internal/api/router"
	"github.com/cuongbtq/job-enricher/internal/bootstrap"
	"github.com/cuongbtq/job-enricher/internal/config"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/shared/rabbitmq"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := appLogger.Logger

	logger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("dispatcher", cfg.Processing.Dispatcher),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	toggle, err := res.Settings(cfg)
	if err != nil {
		return err
	}

	var (
		dispatcher   processor.Dispatcher
		async        *processor.AsyncDispatcher
		rabbitClient *rabbitmq.Client
	)
	switch cfg.Processing.Dispatcher {
	case config.DispatcherAsync:
		async = processor.NewAsyncDispatcher(res.Processor, cfg.Processing.TriggerDelay, logger)
		dispatcher = async
	default:
		rabbitClient, err = bootstrap.InitRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		res.HealthChecks["rabbitmq"] = func(context.Context) error {
			if !rabbitClient.IsConnected() {
				return fmt.Errorf("rabbitmq disconnected")
			}
			return nil
		}
		dispatcher = processor.NewQueueDispatcher(rabbitClient, processor.RealClock{}, cfg.Processing.TriggerDelay)
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:          logger,
		Store:           res.Store,
		Batch:           res.Processor,
		Trigger:         processor.NewTrigger(toggle, dispatcher, logger),
		Settings:        toggle,
		Clock:           processor.RealClock{},
		ExtensionSecret: cfg.Extension.SharedSecret,
		BatchLimit:      cfg.Processing.BatchLimit,
		HealthChecks:    res.HealthChecks,
	})
	if cfg.Extension.SharedSecret == "" {
		logger.Warn("Extension shared secret not set, extension ingestion is disabled")
	}

	srv := bootstrap.NewHTTPServer(&cfg.Server, r)

	logger.Info("Starting HTTP server",
		slog.String("address", srv.Addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-errChan:
		logger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	if async != nil {
		if err := async.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Background processing did not finish before shutdown", slog.Any("error", err))
		}
	}

	logger.Info("Server shutdown complete")
	return nil
}

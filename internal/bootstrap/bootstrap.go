// Package bootstrap builds the services' shared components from configuration
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/job-enricher/internal/api/handler"
	"github.com/cuongbtq/job-enricher/internal/config"
	"github.com/cuongbtq/job-enricher/internal/enrichment/llm"
	"github.com/cuongbtq/job-enricher/internal/enrichment/memstore"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/internal/enrichment/settings"
	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
	"github.com/cuongbtq/job-enricher/shared/logger"
	"github.com/cuongbtq/job-enricher/shared/postgresql"
	"github.com/cuongbtq/job-enricher/shared/rabbitmq"
	"github.com/cuongbtq/job-enricher/shared/redis"
)

// Store is everything the services need from the record store
type Store interface {
	processor.Store
	handler.PostingStore
	BackfillStatuses(ctx context.Context) (int64, error)
}

// Resources holds the components built from configuration
type Resources struct {
	Logger       *slog.Logger
	DB           *postgresql.Client
	Store        Store
	Processor    *processor.Processor
	HealthChecks map[string]func(ctx context.Context) error

	redis *redis.Client
}

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      service,
	}

	return logger.New(loggerCfg)
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ApplicationName: appName,
		ConnectTimeout:  10 * time.Second,
		ConnectAttempts: cfg.ConnectAttempts,
		RetryInterval:   cfg.RetryInterval,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.Queue.DeadLetterExchange,
		DeadLetterQueue:    cfg.Queue.DeadLetterQueue,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		ConsumerExclusive:  cfg.Consumer.Exclusive,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// InitRedis initializes the Redis client
func InitRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	return redis.NewClient(&redis.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// NewEnricher builds the LLM client from configuration
func NewEnricher(cfg *config.LLMConfig, logger *slog.Logger) llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
	}, logger)
}

// Build opens the record store and wires the processor
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Resources, error) {
	res := &Resources{
		Logger:       logger,
		HealthChecks: map[string]func(ctx context.Context) error{},
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		res.Store = memstore.New()

	default:
		db, err := InitPostgreSQL(&cfg.Database, cfg.App.Name, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		res.DB = db
		res.HealthChecks["database"] = db.HealthCheck

		store := storage.NewStorage(db.GetDB(), logger)
		if cfg.Storage.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				res.Close()
				return nil, fmt.Errorf("failed to ensure schema: %w", err)
			}
			n, err := store.BackfillStatuses(ctx)
			if err != nil {
				res.Close()
				return nil, fmt.Errorf("failed to backfill statuses: %w", err)
			}
			if n > 0 {
				logger.Info("Backfilled posting statuses", slog.Int64("count", n))
			}
		}
		res.Store = store
	}

	res.Processor = processor.New(
		res.Store,
		NewEnricher(&cfg.LLM, logger),
		processor.RealClock{},
		processor.Config{
			ClaimTimeout:  cfg.Processing.ClaimTimeout,
			FetchAttempts: cfg.Processing.FetchAttempts,
			FetchBackoff:  cfg.Processing.FetchBackoff,
		},
		logger,
	)

	return res, nil
}

// Settings builds the runtime switch provider for the configured backend
func (r *Resources) Settings(cfg *config.Config) (settings.Provider, error) {
	fallback := cfg.Settings.AutoProcessingDefault

	switch cfg.Settings.Backend {
	case config.SettingsBackendPostgres:
		if r.DB == nil {
			return nil, errors.New("settings backend postgres needs a database")
		}
		return settings.NewPostgresStore(r.DB.GetDB(), fallback, r.Logger), nil

	case config.SettingsBackendRedis:
		client, err := InitRedis(&cfg.Redis, r.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		r.redis = client
		r.HealthChecks["redis"] = client.HealthCheck
		return settings.NewRedisStore(client.Redis(), cfg.Redis.KeyPrefix, fallback, r.Logger), nil

	default:
		return settings.NewStatic(fallback), nil
	}
}

// Close releases every connection Build and Settings opened
func (r *Resources) Close() {
	if r.redis != nil {
		r.redis.Close()
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

// NewHTTPServer creates the API server for handler
func NewHTTPServer(cfg *config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		errString string
	}{
		{name: "valid config file", filePath: "testdata/valid_config.yaml"},
		{name: "non-existent file", filePath: "testdata/nonexistent.yaml", errString: "failed to read config file"},
		{name: "malformed yaml", filePath: "testdata/malformed.yaml", errString: "failed to parse config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "job-enricher-api", cfg.App.Name)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "job_enricher", cfg.Database.Database)
			assert.Equal(t, "postings_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "postings_enrich", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, "posting.enrich", cfg.RabbitMQ.RoutingKey)
			assert.Equal(t, SettingsBackendPostgres, cfg.Settings.Backend)
			assert.True(t, cfg.Settings.AutoProcessingDefault)
		})
	}
}

// validQueueConfig is a postgres plus queue setup that passes Validate
func validQueueConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Storage:  StorageConfig{Driver: StorageDriverPostgres},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Database: "job_enricher"},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "postings_exchange"},
			Queue:    QueueConfig{Name: "postings_enrich"},
		},
		Processing: ProcessingConfig{Dispatcher: DispatcherQueue, BatchLimit: 10},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "server port too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "server port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "empty database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "invalid database port", mutate: func(c *Config) { c.Database.Port = -1 }, errString: "invalid database port"},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "empty rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "empty exchange name", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "empty queue name", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{
			name: "memory storage skips database checks",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageDriverMemory
				c.Database = DatabaseConfig{}
			},
		},
		{
			name: "async dispatcher skips rabbitmq checks",
			mutate: func(c *Config) {
				c.Processing.Dispatcher = DispatcherAsync
				c.RabbitMQ = RabbitMQConfig{}
			},
		},
		{name: "batch limit too high", mutate: func(c *Config) { c.Processing.BatchLimit = 101 }, errString: "batch_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validQueueConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	tests := []struct {
		file      string
		errString string
	}{
		{file: "testdata/valid_config.yaml"},
		{file: "testdata/invalid_port.yaml", errString: "invalid server port"},
		{file: "testdata/missing_database.yaml", errString: "database name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			cfg, err := Load(tt.file)
			require.NoError(t, err)

			err = cfg.Validate()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/memory_async.yaml")
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DispatcherAsync, cfg.Processing.Dispatcher)
	assert.Equal(t, 5*time.Minute, cfg.Processing.ClaimTimeout)
	assert.Equal(t, 2*time.Second, cfg.Processing.TriggerDelay)
	assert.Equal(t, 10, cfg.Processing.BatchLimit)
	assert.Equal(t, SettingsBackendStatic, cfg.Settings.Backend)
	assert.Equal(t, 5*time.Second, cfg.Worker.RequeueDelay)

	// no database or queue is needed for an in-memory, in-process setup
	require.NoError(t, cfg.ValidateAPIConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL_NAME", "gpt-test")
	t.Setenv("EXTENSION_SHARED_SECRET", "s3cret")
	t.Setenv("DATABASE_PASSWORD", "from-env")
	t.Setenv("AUTO_PROCESSING_ENABLED", "false")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.Equal(t, "s3cret", cfg.Extension.SharedSecret)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.False(t, cfg.Settings.AutoProcessingDefault)

	// unset variables keep the file values
	assert.Equal(t, "guest", cfg.RabbitMQ.Password)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("AUTO_PROCESSING_ENABLED", "sometimes")

	_, err := Load("testdata/valid_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse environment")
}

func validWorkerConfig() *Config {
	cfg := validQueueConfig()
	cfg.Server.Port = 8081
	cfg.Worker = WorkerConfig{
		Concurrency:       4,
		MaxJobs:           100,
		JobTimeout:        2 * time.Minute,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
	return cfg
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency"},
		{name: "zero job timeout", mutate: func(c *Config) { c.Worker.JobTimeout = 0 }, errString: "worker job_timeout"},
		{name: "memory storage", mutate: func(c *Config) { c.Storage.Driver = StorageDriverMemory }, errString: "requires the postgres storage driver"},
		{name: "missing queue", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{name: "negative batch interval", mutate: func(c *Config) { c.Processing.BatchInterval = -time.Second }, errString: "batch_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validWorkerConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateAPIConfig_Settings(t *testing.T) {
	cfg := validWorkerConfig()

	cfg.Settings.Backend = SettingsBackendRedis
	err := cfg.ValidateAPIConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis host is required")

	cfg.Redis.Host = "localhost"
	require.NoError(t, cfg.ValidateAPIConfig())

	cfg.Settings.Backend = "etcd"
	assert.Error(t, cfg.ValidateAPIConfig())

	cfg.Settings.Backend = SettingsBackendPostgres
	cfg.Storage.Driver = StorageDriverMemory
	cfg.Processing.Dispatcher = DispatcherAsync
	assert.Error(t, cfg.ValidateAPIConfig())
}

func TestConfig_ValidateProcessing(t *testing.T) {
	cfg := validWorkerConfig()
	cfg.Processing.Dispatcher = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = validWorkerConfig()
	cfg.Processing.BatchLimit = 101
	assert.Error(t, cfg.Validate())
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Trigger dispatch modes
const (
	DispatcherQueue = "queue"
	DispatcherAsync = "async"
)

// Settings backends
const (
	SettingsBackendStatic   = "static"
	SettingsBackendPostgres = "postgres"
	SettingsBackendRedis    = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Storage    StorageConfig    `yaml:"storage"`
	LLM        LLMConfig        `yaml:"llm"`
	Processing ProcessingConfig `yaml:"processing"`
	Settings   SettingsConfig   `yaml:"settings"`
	Redis      RedisConfig      `yaml:"redis"`
	Extension  ExtensionConfig  `yaml:"extension"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name               string `yaml:"name"`
	Durable            bool   `yaml:"durable"`
	AutoDelete         bool   `yaml:"auto_delete"`
	Exclusive          bool   `yaml:"exclusive"`
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
	DeadLetterQueue    string `yaml:"dead_letter_queue"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	MaxJobs           int           `yaml:"max_jobs"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	RequeueDelay      time.Duration `yaml:"requeue_delay"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the record store
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

// LLMConfig holds the model provider settings
type LLMConfig struct {
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// ProcessingConfig holds claim, retry and batch settings
type ProcessingConfig struct {
	ClaimTimeout  time.Duration `yaml:"claim_timeout"`
	FetchAttempts int           `yaml:"fetch_attempts"`
	FetchBackoff  time.Duration `yaml:"fetch_backoff"`
	TriggerDelay  time.Duration `yaml:"trigger_delay"`
	Dispatcher    string        `yaml:"dispatcher"`
	BatchLimit    int           `yaml:"batch_limit"`
	BatchInterval time.Duration `yaml:"batch_interval"`
}

// SettingsConfig selects where runtime switches live
type SettingsConfig struct {
	Backend               string `yaml:"backend"`
	AutoProcessingDefault bool   `yaml:"auto_processing_default"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ExtensionConfig holds settings for the browser extension endpoint
type ExtensionConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

// envOverrides are secrets and switches that may come from the environment
// instead of the config file. Empty values leave the file value alone.
type envOverrides struct {
	LLMAPIKey        string `env:"LLM_API_KEY"`
	LLMModel         string `env:"LLM_MODEL_NAME"`
	LLMBaseURL       string `env:"LLM_BASE_URL"`
	ExtensionSecret  string `env:"EXTENSION_SHARED_SECRET"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	AutoProcessing   *bool  `env:"AUTO_PROCESSING_ENABLED"`
}

// LoadDotEnv loads variables from a .env file if one exists
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	setIfNotEmpty(&c.LLM.APIKey, o.LLMAPIKey)
	setIfNotEmpty(&c.LLM.Model, o.LLMModel)
	setIfNotEmpty(&c.LLM.BaseURL, o.LLMBaseURL)
	setIfNotEmpty(&c.Extension.SharedSecret, o.ExtensionSecret)
	setIfNotEmpty(&c.Database.Password, o.DatabasePassword)
	setIfNotEmpty(&c.RabbitMQ.Password, o.RabbitMQPassword)
	setIfNotEmpty(&c.Redis.Password, o.RedisPassword)

	if o.AutoProcessing != nil {
		c.Settings.AutoProcessingDefault = *o.AutoProcessing
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Processing.Dispatcher == "" {
		c.Processing.Dispatcher = DispatcherQueue
	}
	if c.Processing.ClaimTimeout == 0 {
		c.Processing.ClaimTimeout = 5 * time.Minute
	}
	if c.Processing.TriggerDelay == 0 {
		c.Processing.TriggerDelay = 2 * time.Second
	}
	if c.Processing.BatchLimit == 0 {
		c.Processing.BatchLimit = 10
	}
	if c.Settings.Backend == "" {
		c.Settings.Backend = SettingsBackendStatic
	}
	if c.Worker.RequeueDelay == 0 {
		c.Worker.RequeueDelay = 5 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the settings shared by every service
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Storage.Driver != StorageDriverMemory {
		if err := c.validateDatabase(); err != nil {
			return err
		}
	}

	if c.Processing.Dispatcher != DispatcherAsync {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	return c.ValidateProcessingConfig()
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// ValidateAPIConfig checks everything the api service needs
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Settings.Backend {
	case "", SettingsBackendStatic:
	case SettingsBackendPostgres:
		if c.Storage.Driver == StorageDriverMemory {
			return fmt.Errorf("settings backend postgres requires the postgres storage driver")
		}
	case SettingsBackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis settings backend")
		}
	default:
		return fmt.Errorf("unknown settings backend: %q", c.Settings.Backend)
	}

	return nil
}

// ValidateWorkerConfig checks everything the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.MaxJobs <= 0 {
		return fmt.Errorf("worker max_jobs must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Storage.Driver == StorageDriverMemory {
		return fmt.Errorf("worker requires the postgres storage driver")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	return c.ValidateProcessingConfig()
}

// ValidateProcessingConfig checks claim and dispatch settings
func (c *Config) ValidateProcessingConfig() error {
	if c.Processing.ClaimTimeout < 0 {
		return fmt.Errorf("processing claim_timeout must not be negative")
	}

	if c.Processing.FetchAttempts < 0 {
		return fmt.Errorf("processing fetch_attempts must not be negative")
	}

	if c.Processing.BatchLimit < 0 || c.Processing.BatchLimit > 100 {
		return fmt.Errorf("processing batch_limit must be between 0 and 100")
	}

	if c.Processing.BatchInterval < 0 {
		return fmt.Errorf("processing batch_interval must not be negative")
	}

	switch c.Processing.Dispatcher {
	case "", DispatcherQueue, DispatcherAsync:
	default:
		return fmt.Errorf("unknown processing dispatcher: %q", c.Processing.Dispatcher)
	}

	switch c.Storage.Driver {
	case "", StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	return nil
}

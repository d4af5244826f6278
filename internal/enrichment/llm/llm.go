// Package llm turns a raw job posting into structured fields by calling a
// chat-completion model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// Defaults used when the configuration leaves a value empty
const (
	DefaultModel      = "gpt-4o-mini"
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 2 * time.Second
)

// ErrNotConfigured is returned by the dummy client
var ErrNotConfigured = errors.New("LLM is not configured")

// Client extracts structured fields from a posting
type Client interface {
	Extract(ctx context.Context, in domain.Input) (*domain.Extraction, error)
	ModelVersion() string
}

// Config holds the connection settings for the model provider
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
}

// NewClient returns an OpenAI client when an API key is configured and a
// dummy client that fails every call otherwise.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.APIKey == "" {
		logger.Warn("LLM API key not set, using dummy client",
			slog.String("model", cfg.Model),
		)
		return NewDummyClient(cfg.Model, logger)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger.Info("Using OpenAI client",
		slog.String("model", cfg.Model),
		slog.Int("requests_per_minute", cfg.RequestsPerMinute),
	)

	return NewOpenAIClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// DummyClient stands in when no model provider is configured
type DummyClient struct {
	model  string
	logger *slog.Logger
}

// NewDummyClient creates a DummyClient reporting model as its version
func NewDummyClient(model string, logger *slog.Logger) *DummyClient {
	return &DummyClient{model: model, logger: logger}
}

// Extract always fails with ErrNotConfigured
func (c *DummyClient) Extract(_ context.Context, in domain.Input) (*domain.Extraction, error) {
	c.logger.Error("Cannot process job posting, LLM is not configured",
		slog.String("url", in.URL),
	)
	return nil, fmt.Errorf("dummy client active: %w", ErrNotConfigured)
}

// ModelVersion returns the configured model name
func (c *DummyClient) ModelVersion() string {
	return c.model
}

package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/internal/enrichment/settings"
	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
)

// PostingStore is the record store surface the handlers use
type PostingStore interface {
	CreatePosting(ctx context.Context, in *domain.NewPosting, now time.Time) (*domain.JobPosting, error)
	GetPosting(ctx context.Context, id string) (*domain.JobPosting, error)
	DeletePosting(ctx context.Context, id string) error
	ListPostings(ctx context.Context, filter storage.PostingFilter) ([]*domain.JobPosting, error)
	ListPlatforms(ctx context.Context) ([]string, error)
	ListPending(ctx context.Context, limit int) ([]*domain.JobPosting, error)
	ListLogs(ctx context.Context, filter domain.LogFilter) ([]*domain.LogEntry, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	ResetAll(ctx context.Context) (int64, error)
}

// BatchRunner runs the batch path
type BatchRunner interface {
	ProcessPending(ctx context.Context, limit int) (*processor.BatchResult, error)
}

// Firer starts the single-record path
type Firer interface {
	Fire(ctx context.Context, postingID string) (*processor.TriggerResult, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger          *slog.Logger
	Store           PostingStore
	Batch           BatchRunner
	Trigger         Firer
	Settings        settings.Provider
	Clock           processor.Clock
	ExtensionSecret string
	BatchLimit      int
	HealthChecks    map[string]func(ctx context.Context) error
}

// PostingHandler handles posting-related HTTP requests
type PostingHandler struct {
	logger  *slog.Logger
	store   PostingStore
	trigger Firer
	clock   processor.Clock
}

// NewPostingHandler creates a new PostingHandler instance
func NewPostingHandler(deps *Dependencies) *PostingHandler {
	clock := deps.Clock
	if clock == nil {
		clock = processor.RealClock{}
	}
	return &PostingHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		trigger: deps.Trigger,
		clock:   clock,
	}
}

// EnrichmentHandler serves the dashboard and batch endpoints
type EnrichmentHandler struct {
	logger     *slog.Logger
	store      PostingStore
	batch      BatchRunner
	batchLimit int
}

// NewEnrichmentHandler creates a new EnrichmentHandler instance
func NewEnrichmentHandler(deps *Dependencies) *EnrichmentHandler {
	limit := deps.BatchLimit
	if limit <= 0 {
		limit = processor.DefaultBatchLimit
	}
	return &EnrichmentHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		batch:      deps.Batch,
		batchLimit: limit,
	}
}

// SettingsHandler reads and flips runtime switches
type SettingsHandler struct {
	logger   *slog.Logger
	settings settings.Provider
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(deps *Dependencies) *SettingsHandler {
	return &SettingsHandler{
		logger:   deps.Logger,
		settings: deps.Settings,
	}
}

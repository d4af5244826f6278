package processor

import (
	"context"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// Store is the part of the record store the pipeline depends on
type Store interface {
	GetPosting(ctx context.Context, id string) (*domain.JobPosting, error)
	ClaimPosting(ctx context.Context, id string, now, staleBefore time.Time) (*domain.JobPosting, error)
	CompletePosting(ctx context.Context, id string, fields *domain.Extraction, modelVersion, note string) error
	FailPosting(ctx context.Context, id, note string) error
	ListEligible(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.JobPosting, error)
	InsertLog(ctx context.Context, entry *domain.LogEntry) error
	CreateRun(ctx context.Context, startedAt time.Time) (*domain.Run, error)
	FinishRun(ctx context.Context, runID string, summary *domain.RunSummary) error
}

// Enricher turns a posting's raw text into structured fields
type Enricher interface {
	Extract(ctx context.Context, in domain.Input) (*domain.Extraction, error)
	ModelVersion() string
}

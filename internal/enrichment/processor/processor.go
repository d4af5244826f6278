package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// Default read-after-write tolerance for the initial fetch
const (
	DefaultFetchAttempts = 3
	DefaultFetchBackoff  = 500 * time.Millisecond
)

// releaseTimeout bounds the release and outcome log writes that follow an
// attempt. They run detached from the attempt's context so that a cancelled
// or timed-out attempt still leaves processing.
const releaseTimeout = 15 * time.Second

// Outcome describes how a single attempt ended
type Outcome string

// Attempt outcomes
const (
	OutcomeProcessed         Outcome = "processed"
	OutcomeAlreadyProcessed  Outcome = "already_processed"
	OutcomeAlreadyProcessing Outcome = "already_processing"
	OutcomeFailed            Outcome = "failed"
	OutcomeNotFound          Outcome = "not_found"
)

// Result is returned by ProcessOne
type Result struct {
	PostingID string        `json:"posting_id"`
	Success   bool          `json:"success"`
	Outcome   Outcome       `json:"status"`
	Duration  time.Duration `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// DurationMS is the enrichment duration in milliseconds
func (r *Result) DurationMS() int64 {
	return r.Duration.Milliseconds()
}

// Source tells log entries and notes which path started an attempt
type Source string

// Attempt sources
const (
	SourceBatch   Source = "batch"
	SourceTrigger Source = "extension"
)

func (s Source) startedMessage() string {
	if s == SourceTrigger {
		return "Auto-processing started (from extension)"
	}
	return "Processing job posting"
}

func (s Source) succeededMessage() string {
	if s == SourceTrigger {
		return "Auto-processed successfully (from extension)"
	}
	return "Processed successfully"
}

func (s Source) failedMessage() string {
	if s == SourceTrigger {
		return "Auto-processing failed (from extension)"
	}
	return "Processing failed"
}

func (s Source) successNote(at time.Time) string {
	if s == SourceTrigger {
		return "Auto-processed from extension at " + at.UTC().Format(time.RFC3339)
	}
	return "Processed successfully at " + at.UTC().Format(time.RFC3339)
}

func (s Source) failureNote(err error) string {
	if s == SourceTrigger {
		return "Auto-parse failed: " + err.Error()
	}
	return "Parsing failed: " + err.Error()
}

// Option adjusts a single ProcessOne call
type Option func(*attempt)

type attempt struct {
	runID  *string
	source Source
}

// WithRunID links the attempt's log entries to a batch run
func WithRunID(runID string) Option {
	return func(a *attempt) {
		a.runID = &runID
	}
}

// WithSource sets which path started the attempt
func WithSource(source Source) Option {
	return func(a *attempt) {
		a.source = source
	}
}

// Config holds processor tunables
type Config struct {
	ClaimTimeout  time.Duration
	FetchAttempts int
	FetchBackoff  time.Duration
}

// Processor drives one posting at a time through claim, enrichment and release
type Processor struct {
	store         Store
	enricher      Enricher
	claims        *ClaimManager
	clock         Clock
	logger        *slog.Logger
	fetchAttempts int
	fetchBackoff  time.Duration
}

// New creates a Processor
func New(store Store, enricher Enricher, clock Clock, cfg Config, logger *slog.Logger) *Processor {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = DefaultFetchBackoff
	}

	return &Processor{
		store:         store,
		enricher:      enricher,
		claims:        NewClaimManager(store, clock, cfg.ClaimTimeout, logger),
		clock:         clock,
		logger:        logger,
		fetchAttempts: cfg.FetchAttempts,
		fetchBackoff:  cfg.FetchBackoff,
	}
}

// ProcessOne runs a single posting through the pipeline.
//
// The returned error is non-nil only when the posting does not exist
// (domain.ErrPostingNotFound) or the store failed. Enrichment failures are
// reported through the Result and leave the posting failed.
func (p *Processor) ProcessOne(ctx context.Context, id string, opts ...Option) (*Result, error) {
	a := attempt{source: SourceBatch}
	for _, opt := range opts {
		opt(&a)
	}

	posting, err := p.fetch(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPostingNotFound) {
			p.logger.Warn("Job posting not found",
				slog.String("posting_id", id),
			)
			return &Result{PostingID: id, Outcome: OutcomeNotFound, Error: err.Error()}, err
		}
		return nil, err
	}

	if posting.Processed() {
		p.logger.Info("Job posting already processed, skipping",
			slog.String("posting_id", id),
		)
		return &Result{PostingID: id, Success: true, Outcome: OutcomeAlreadyProcessed}, nil
	}

	if p.claims.IsLive(posting) {
		p.logger.Info("Job posting is being processed elsewhere, skipping",
			slog.String("posting_id", id),
		)
		return &Result{PostingID: id, Success: true, Outcome: OutcomeAlreadyProcessing}, nil
	}

	claimed, err := p.claims.TryClaim(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrClaimConflict) {
			p.logger.Info("Lost claim race, skipping",
				slog.String("posting_id", id),
			)
			return &Result{PostingID: id, Success: true, Outcome: OutcomeAlreadyProcessing}, nil
		}
		return nil, fmt.Errorf("failed to claim job posting: %w", err)
	}

	p.appendLog(ctx, &domain.LogEntry{
		PostingID: id,
		RunID:     a.runID,
		Level:     domain.LogLevelInfo,
		Message:   a.source.startedMessage(),
		Details: map[string]any{
			"url":     claimed.URL,
			"trigger": string(a.source),
		},
	})

	start := p.clock.Now()
	fields, enrichErr := p.enrich(ctx, claimed)
	duration := p.clock.Now().Sub(start)

	if enrichErr != nil {
		return p.fail(ctx, claimed, a, duration, enrichErr)
	}

	return p.complete(ctx, claimed, a, duration, fields)
}

func (p *Processor) enrich(ctx context.Context, posting *domain.JobPosting) (*domain.Extraction, error) {
	fields, err := p.enricher.Extract(ctx, domain.InputFor(posting))
	if err != nil {
		return nil, &domain.EnrichmentError{Err: err}
	}
	if fields == nil || fields.IsEmpty() {
		return nil, &domain.EnrichmentError{Err: domain.ErrEmptyExtraction}
	}
	return fields, nil
}

func (p *Processor) complete(ctx context.Context, posting *domain.JobPosting, a attempt, duration time.Duration, fields *domain.Extraction) (*Result, error) {
	ctx, cancel := releaseContext(ctx)
	defer cancel()

	note := a.source.successNote(p.clock.Now())
	if err := p.claims.ReleaseSuccess(ctx, posting.ID, fields, p.enricher.ModelVersion(), note); err != nil {
		// the claim is left to expire; a second release from here could race a reclaim
		p.logger.Error("Failed to store enrichment result",
			slog.String("posting_id", posting.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to release job posting: %w", err)
	}

	ms := duration.Milliseconds()
	p.appendLog(ctx, &domain.LogEntry{
		PostingID:   posting.ID,
		RunID:       a.runID,
		Level:       domain.LogLevelInfo,
		Message:     a.source.succeededMessage(),
		DurationMS:  &ms,
		JobTitle:    fields.JobTitle,
		CompanyName: fields.CompanyName,
		Details: map[string]any{
			"trigger": string(a.source),
		},
	})

	p.logger.Info("Job posting enriched",
		slog.String("posting_id", posting.ID),
		slog.Duration("duration", duration),
	)

	return &Result{
		PostingID: posting.ID,
		Success:   true,
		Outcome:   OutcomeProcessed,
		Duration:  duration,
	}, nil
}

func (p *Processor) fail(ctx context.Context, posting *domain.JobPosting, a attempt, duration time.Duration, enrichErr error) (*Result, error) {
	cause := errors.Unwrap(enrichErr)
	if cause == nil {
		cause = enrichErr
	}

	ctx, cancel := releaseContext(ctx)
	defer cancel()

	p.logger.Warn("Enrichment failed",
		slog.String("posting_id", posting.ID),
		slog.String("error", cause.Error()),
	)

	if err := p.claims.ReleaseFailure(ctx, posting.ID, a.source.failureNote(cause)); err != nil {
		p.logger.Error("Failed to mark job posting failed",
			slog.String("posting_id", posting.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to release job posting: %w", err)
	}

	ms := duration.Milliseconds()
	p.appendLog(ctx, &domain.LogEntry{
		PostingID:  posting.ID,
		RunID:      a.runID,
		Level:      domain.LogLevelError,
		Message:    a.source.failedMessage(),
		DurationMS: &ms,
		Details: map[string]any{
			"error":   cause.Error(),
			"trigger": string(a.source),
		},
	})

	return &Result{
		PostingID: posting.ID,
		Outcome:   OutcomeFailed,
		Duration:  duration,
		Error:     cause.Error(),
	}, nil
}

// fetch reads the posting, retrying a few times so that a posting created
// just before the trigger has time to become visible
func (p *Processor) fetch(ctx context.Context, id string) (*domain.JobPosting, error) {
	delay := p.fetchBackoff

	var lastErr error
	for i := 1; i <= p.fetchAttempts; i++ {
		posting, err := p.store.GetPosting(ctx, id)
		if err == nil {
			return posting, nil
		}
		lastErr = err

		if i == p.fetchAttempts {
			break
		}

		p.logger.Debug("Job posting fetch failed, retrying",
			slog.String("posting_id", id),
			slog.Int("attempt", i),
			slog.Duration("retry_after", delay),
			slog.String("error", err.Error()),
		)

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, lastErr
}

// appendLog writes an outcome log entry. A failed write never fails the attempt.
func (p *Processor) appendLog(ctx context.Context, entry *domain.LogEntry) {
	entry.CreatedAt = p.clock.Now()
	if err := p.store.InsertLog(ctx, entry); err != nil {
		p.logger.Error("Failed to write outcome log",
			slog.String("posting_id", entry.PostingID),
			slog.String("message", entry.Message),
			slog.String("error", err.Error()),
		)
	}
}

func releaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
}

func isReleaseSkipped(err error) bool {
	return errors.Is(err, domain.ErrReleaseSkipped)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

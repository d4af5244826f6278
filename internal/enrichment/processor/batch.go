package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// Batch limits
const (
	DefaultBatchLimit = 10
	MaxBatchLimit     = 100

	// candidateFactor over-fetches candidates so postings lost to a
	// concurrent claim do not shrink the batch
	candidateFactor = 2
)

// StatusSkipped is reported when a batch found nothing to do
const StatusSkipped = "skipped"

// BatchResult summarises one ProcessPending call
type BatchResult struct {
	RunID         string `json:"run_id,omitempty"`
	Status        string `json:"status"`
	TotalSelected int    `json:"total_selected"`
	TotalSuccess  int    `json:"total_success"`
	TotalError    int    `json:"total_error"`
	TotalSkipped  int    `json:"total_skipped"`
	Message       string `json:"message,omitempty"`
}

// ProcessPending processes up to limit eligible postings sequentially,
// oldest first. Per-posting failures are counted and never abort the loop.
// Only a failure to list candidates or to open the run aborts the batch.
func (p *Processor) ProcessPending(ctx context.Context, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if limit > MaxBatchLimit {
		limit = MaxBatchLimit
	}

	p.logger.Info("Starting batch",
		slog.Int("limit", limit),
	)

	candidates, err := p.store.ListEligible(ctx, p.claims.StaleBefore(), limit*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible job postings: %w", err)
	}

	if len(candidates) == 0 {
		p.logger.Info("No pending job postings, skipping run")
		return &BatchResult{
			Status:  StatusSkipped,
			Message: "No pending jobs found",
		}, nil
	}

	run, err := p.store.CreateRun(ctx, p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	result := &BatchResult{RunID: run.ID}

	// cancelling ctx stops the batch between postings; the posting in hand is finished
	itemCtx := context.WithoutCancel(ctx)
	var interrupted error

	for _, candidate := range candidates {
		if result.TotalSuccess+result.TotalError >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}

		res, err := p.ProcessOne(itemCtx, candidate.ID, WithRunID(run.ID), WithSource(SourceBatch))
		switch {
		case err != nil:
			p.logger.Error("Batch item failed",
				slog.String("run_id", run.ID),
				slog.String("posting_id", candidate.ID),
				slog.String("error", err.Error()),
			)
			result.TotalError++
		case res.Outcome == OutcomeAlreadyProcessing || res.Outcome == OutcomeAlreadyProcessed:
			result.TotalSkipped++
		case res.Success:
			result.TotalSuccess++
		default:
			result.TotalError++
		}
	}

	result.TotalSelected = result.TotalSuccess + result.TotalError
	status := domain.RunStatusFor(result.TotalSuccess, result.TotalError)
	result.Status = string(status)

	summary := &domain.RunSummary{
		Status:        status,
		TotalSelected: result.TotalSelected,
		TotalSuccess:  result.TotalSuccess,
		TotalError:    result.TotalError,
		FinishedAt:    p.clock.Now(),
	}

	if interrupted != nil {
		note := "Interrupted: " + interrupted.Error()
		summary.Status = domain.RunStatusError
		summary.Notes = &note
		result.Status = string(domain.RunStatusError)
		result.Message = note
	}

	// the run is closed even if the caller's context is gone
	if err := p.store.FinishRun(context.WithoutCancel(ctx), run.ID, summary); err != nil {
		p.logger.Error("Failed to finish run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	p.logger.Info("Batch finished",
		slog.String("run_id", run.ID),
		slog.String("status", result.Status),
		slog.Int("total_selected", result.TotalSelected),
		slog.Int("total_success", result.TotalSuccess),
		slog.Int("total_error", result.TotalError),
		slog.Int("total_skipped", result.TotalSkipped),
	)

	return result, nil
}

// ResetStore is what reset-and-reprocess needs beyond Store
type ResetStore interface {
	ResetAll(ctx context.Context) (int64, error)
}

// ResetAndProcess marks every posting pending again and runs one batch
func (p *Processor) ResetAndProcess(ctx context.Context, resetter ResetStore, limit int) (int64, *BatchResult, error) {
	n, err := resetter.ResetAll(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reset job postings: %w", err)
	}

	result, err := p.ProcessPending(ctx, limit)
	if err != nil {
		return n, nil, err
	}

	return n, result, nil
}

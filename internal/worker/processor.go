package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	enrichdomain "github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/internal/worker/domain"
)

// processMessage waits until the message is due and runs one attempt.
// Attempt outcomes, failed ones included, are recorded by the processor and
// acked. Only store errors and shutdown before the attempt starts are requeued.
func (w *Worker) processMessage(ctx context.Context, msg *domain.Message) error {
	if wait := msg.NotBefore.Sub(w.clock.Now()); wait > 0 {
		w.logger.Debug("Waiting before processing",
			slog.String("posting_id", msg.PostingID),
			slog.Duration("wait", wait),
		)
		if err := waitFor(ctx, wait); err != nil {
			return domain.Requeue(msg.PostingID, fmt.Errorf("canceled before processing: %w", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Requeue(msg.PostingID, fmt.Errorf("canceled before processing: %w", err))
	}

	// a started attempt runs to completion even when the worker is stopping
	attemptCtx := context.WithoutCancel(ctx)
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, w.jobTimeout)
		defer cancel()
	}

	res, err := w.proc.ProcessOne(attemptCtx, msg.PostingID, processor.WithSource(processor.SourceTrigger))
	if err != nil {
		if errors.Is(err, enrichdomain.ErrPostingNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrPostingGone, msg.PostingID)
		}
		var storeErr *enrichdomain.StoreError
		if errors.As(err, &storeErr) {
			return domain.Requeue(msg.PostingID, err)
		}
		return err
	}

	w.logger.Info("Message processed",
		slog.String("posting_id", msg.PostingID),
		slog.String("status", string(res.Outcome)),
		slog.Bool("success", res.Success),
		slog.Int64("duration_ms", res.DurationMS()),
		slog.Duration("queue_latency", w.clock.Now().Sub(msg.EnqueuedAt)),
	)

	return nil
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

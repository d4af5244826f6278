package worker

import (
	"context"
	"log/slog"
	"time"
)

// runBatchLoop sweeps eligible postings every batchInterval. A zero interval
// disables the sweep.
func (w *Worker) runBatchLoop(ctx context.Context) {
	if w.batchInterval <= 0 {
		w.logger.Info("Periodic batch disabled")
		return
	}

	ticker := time.NewTicker(w.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runBatch(ctx)
		}
	}
}

func (w *Worker) runBatch(ctx context.Context) {
	start := time.Now()

	result, err := w.proc.ProcessPending(ctx, w.batchLimit)
	if err != nil {
		w.logger.Error("Periodic batch failed", slog.String("error", err.Error()))
		return
	}

	w.logger.Info("Periodic batch finished",
		slog.String("run_id", result.RunID),
		slog.String("status", result.Status),
		slog.Int("total_selected", result.TotalSelected),
		slog.Int("total_success", result.TotalSuccess),
		slog.Int("total_error", result.TotalError),
		slog.Int("total_skipped", result.TotalSkipped),
		slog.Duration("elapsed", time.Since(start)),
	)
}

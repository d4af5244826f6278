package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-enricher/internal/worker/domain"
	"golang.org/x/sync/errgroup"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context, g *errgroup.Group) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		i := i
		g.Go(func() error {
			w.workerLoop(ctx, i)
			return nil
		})
	}
}

// workerLoop handles messages until jobsChan is closed. Messages still queued
// at shutdown are handled with a canceled ctx and so requeued.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.jobsChan {
		w.logger.Info("Worker received message",
			slog.String("worker_name", workerName),
			slog.String("posting_id", msg.PostingID),
			slog.Uint64("delivery_tag", msg.DeliveryTag),
		)

		err := w.processMessage(ctx, msg)
		w.settle(ctx, workerName, msg, err)
	}

	w.logger.Info("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// settle acks or nacks the delivery for msg based on the processing result.
// A requeue nack waits requeueDelay first, or until ctx is done.
func (w *Worker) settle(ctx context.Context, workerName string, msg *domain.Message, err error) {
	acker := w.broker.Acknowledger()

	if err == nil {
		if ackErr := acker.Ack(msg.DeliveryTag, false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("posting_id", msg.PostingID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeue(err)
	w.logger.Error("Message processing failed",
		slog.String("worker_name", workerName),
		slog.String("posting_id", msg.PostingID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if requeue && w.requeueDelay > 0 {
		_ = waitFor(ctx, w.requeueDelay)
	}

	if nackErr := acker.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("posting_id", msg.PostingID),
			slog.String("error", nackErr.Error()),
		)
	}
}

// shouldRequeue determines if a message should be requeued based on the error type
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrPostingGone) || errors.Is(err, domain.ErrInvalidMessage) {
		return false
	}

	var requeueErr *domain.RequeueError
	return errors.As(err, &requeueErr)
}

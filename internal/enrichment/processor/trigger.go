package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTriggerDelay gives a freshly created posting time to become visible
const DefaultTriggerDelay = 2 * time.Second

// DefaultAttemptTimeout bounds a background attempt once it has started
const DefaultAttemptTimeout = 5 * time.Minute

// Trigger statuses
const (
	TriggerStarted = "processing_started"
	TriggerSkipped = "skipped"

	ReasonAutoProcessingDisabled = "auto_processing_disabled"
)

// Toggle reports whether postings should be processed as soon as they arrive
type Toggle interface {
	AutoProcessingEnabled(ctx context.Context) (bool, error)
}

// Dispatcher hands a posting to something that will process it later. It
// must return without waiting for the processing to happen.
type Dispatcher interface {
	Dispatch(ctx context.Context, postingID string) error
}

// SingleProcessor is the part of Processor a dispatcher needs
type SingleProcessor interface {
	ProcessOne(ctx context.Context, id string, opts ...Option) (*Result, error)
}

// TriggerResult is what the caller of Fire gets back
type TriggerResult struct {
	PostingID string `json:"posting_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Trigger is the fire-and-forget entry point used after a posting is created
type Trigger struct {
	toggle     Toggle
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewTrigger creates a Trigger
func NewTrigger(toggle Toggle, dispatcher Dispatcher, logger *slog.Logger) *Trigger {
	return &Trigger{
		toggle:     toggle,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Fire dispatches the posting when auto-processing is enabled. The toggle is
// read once per call; a toggle that cannot be read counts as disabled.
func (t *Trigger) Fire(ctx context.Context, postingID string) (*TriggerResult, error) {
	enabled, err := t.toggle.AutoProcessingEnabled(ctx)
	if err != nil {
		t.logger.Warn("Failed to read auto-processing setting, treating as disabled",
			slog.String("posting_id", postingID),
			slog.String("error", err.Error()),
		)
		enabled = false
	}

	if !enabled {
		t.logger.Info("Auto-processing disabled, not dispatching",
			slog.String("posting_id", postingID),
		)
		return &TriggerResult{
			PostingID: postingID,
			Status:    TriggerSkipped,
			Reason:    ReasonAutoProcessingDisabled,
		}, nil
	}

	if err := t.dispatcher.Dispatch(ctx, postingID); err != nil {
		return nil, fmt.Errorf("failed to dispatch job posting: %w", err)
	}

	t.logger.Info("Job posting dispatched",
		slog.String("posting_id", postingID),
	)

	return &TriggerResult{PostingID: postingID, Status: TriggerStarted}, nil
}

// AsyncDispatcher runs each dispatched posting on its own goroutine after a
// short delay. Work outlives the dispatching request. Shutdown drops postings
// still waiting out the delay; attempts already started run to completion.
type AsyncDispatcher struct {
	proc           SingleProcessor
	delay          time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher creates an AsyncDispatcher. A negative delay uses DefaultTriggerDelay.
func NewAsyncDispatcher(proc SingleProcessor, delay time.Duration, logger *slog.Logger) *AsyncDispatcher {
	if delay < 0 {
		delay = DefaultTriggerDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncDispatcher{
		proc:           proc,
		delay:          delay,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Dispatch starts processing in the background and returns immediately
func (d *AsyncDispatcher) Dispatch(_ context.Context, postingID string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is shut down")
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		if err := sleep(d.ctx, d.delay); err != nil {
			d.logger.Info("Dispatcher shut down before processing started",
				slog.String("posting_id", postingID),
			)
			return
		}

		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), d.attemptTimeout)
		defer cancel()

		res, err := d.proc.ProcessOne(attemptCtx, postingID, WithSource(SourceTrigger))
		if err != nil {
			d.logger.Error("Triggered processing failed",
				slog.String("posting_id", postingID),
				slog.String("error", err.Error()),
			)
			return
		}

		d.logger.Info("Triggered processing finished",
			slog.String("posting_id", postingID),
			slog.String("status", string(res.Outcome)),
			slog.Bool("success", res.Success),
		)
	}()

	return nil
}

// Shutdown drops postings still waiting out the delay and waits for started
// attempts until ctx expires
func (d *AsyncDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publisher sends a message body to the processing queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// TriggerMessage is the queue payload for one posting
type TriggerMessage struct {
	PostingID  string    `json:"posting_id"`
	NotBefore  time.Time `json:"not_before"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueDispatcher hands postings to the worker service through the message queue
type QueueDispatcher struct {
	publisher Publisher
	clock     Clock
	delay     time.Duration
}

// NewQueueDispatcher creates a QueueDispatcher. A negative delay uses DefaultTriggerDelay.
func NewQueueDispatcher(publisher Publisher, clock Clock, delay time.Duration) *QueueDispatcher {
	if delay < 0 {
		delay = DefaultTriggerDelay
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &QueueDispatcher{
		publisher: publisher,
		clock:     clock,
		delay:     delay,
	}
}

// Dispatch publishes the posting; the worker waits until NotBefore
func (d *QueueDispatcher) Dispatch(ctx context.Context, postingID string) error {
	now := d.clock.Now()
	body, err := json.Marshal(TriggerMessage{
		PostingID:  postingID,
		NotBefore:  now.Add(d.delay),
		EnqueuedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trigger message: %w", err)
	}

	return d.publisher.PublishWithRetry(ctx, body, "application/json")
}

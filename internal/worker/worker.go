package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Broker is the part of the message queue client the worker consumes from
type Broker interface {
	SetQos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Acknowledger() amqp.Acknowledger
	IsConnected() bool
}

// Processor runs enrichment attempts
type Processor interface {
	ProcessOne(ctx context.Context, id string, opts ...processor.Option) (*processor.Result, error)
	ProcessPending(ctx context.Context, limit int) (*processor.BatchResult, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Broker            Broker
	Processor         Processor
	Clock             processor.Clock
	WorkerID          string
	QueueName         string
	Concurrency       int
	QueueSize         int
	PrefetchCount     int
	JobTimeout        time.Duration
	RequeueDelay      time.Duration
	HeartbeatInterval time.Duration
	BatchInterval     time.Duration
	BatchLimit        int
	HealthChecks      map[string]func(ctx context.Context) error
}

// Worker consumes trigger messages and runs the periodic batch sweep
type Worker struct {
	logger            *slog.Logger
	broker            Broker
	proc              Processor
	clock             processor.Clock
	workerID          string
	rabbitMQQueueName string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	requeueDelay      time.Duration
	heartbeatInterval time.Duration
	batchInterval     time.Duration
	batchLimit        int
	healthChecks      map[string]func(ctx context.Context) error

	jobsChan chan *domain.Message
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	clock := cfg.Clock
	if clock == nil {
		clock = processor.RealClock{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:            cfg.Logger,
		broker:            cfg.Broker,
		proc:              cfg.Processor,
		clock:             clock,
		workerID:          cfg.WorkerID,
		rabbitMQQueueName: cfg.QueueName,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		requeueDelay:      cfg.RequeueDelay,
		heartbeatInterval: cfg.HeartbeatInterval,
		batchInterval:     cfg.BatchInterval,
		batchLimit:        cfg.BatchLimit,
		healthChecks:      cfg.HealthChecks,
		jobsChan:          make(chan *domain.Message, max(cfg.QueueSize, 0)),
		stopChan:          make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Start consumes messages until ctx is canceled or Stop is called
func (w *Worker) Start(ctx context.Context) error {
	defer close(w.done)

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("batch_interval", w.batchInterval),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.startMessageDispatcher(gctx, deliveries)
	})
	w.spawnWorkerPool(gctx, g)
	g.Go(func() error {
		w.runBatchLoop(gctx)
		return nil
	})
	g.Go(func() error {
		w.runHeartbeat(gctx)
		return nil
	})

	err = g.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return err
}

// Stop signals Start to return and waits for in-flight messages to finish
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.done
}

// runHeartbeat periodically checks the broker and the store and logs problems
func (w *Worker) runHeartbeat(ctx context.Context) {
	if w.heartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.broker.IsConnected() {
				w.logger.Warn("RabbitMQ connection lost", slog.String("worker_id", w.workerID))
			}
			for name, check := range w.healthChecks {
				if err := check(ctx); err != nil {
					w.logger.Warn("Health check failed",
						slog.String("check", name),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

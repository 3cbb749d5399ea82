package events

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	appConfig "github.com/imyashkale/inventoryserver/internal/config"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/queue"
	"github.com/imyashkale/inventoryserver/internal/repository"
	"github.com/sirupsen/logrus"
)

// DispatcherConfig tunes the outbox relay
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	MaxTries     uint
	// InitialBackoff and MaxBackoff bound the wait between publish attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewDispatcherConfig creates the relay configuration from the application config
func NewDispatcherConfig(appCfg *appConfig.Config) DispatcherConfig {
	return DispatcherConfig{
		PollInterval:   appCfg.OutboxPollInterval,
		BatchSize:      appCfg.OutboxBatchSize,
		Workers:        appCfg.OutboxWorkers,
		MaxTries:       appCfg.PublishMaxTries,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Dispatcher relays pending outbox rows to a Publisher. Rows are delivered at
// least once. Rows of one aggregate are attempted in the order they were
// recorded. A row that exhausts its tries is parked as failed and later rows
// of the same aggregate are still delivered, so the sink sees a gap rather
// than a stalled aggregate.
type Dispatcher struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	cfg       DispatcherConfig
	queue     *queue.JobQueue
	pool      *queue.WorkerPool
	wake      chan struct{}
}

// NewDispatcher creates a relay over the outbox
func NewDispatcher(outbox repository.OutboxRepository, publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	jq := queue.NewJobQueue(cfg.Workers, cfg.BatchSize)
	return &Dispatcher{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		queue:     jq,
		pool:      queue.NewWorkerPool(jq),
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes the poller without waiting for the next tick. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. Rows in flight at shutdown stay pending
// and are picked up on the next start.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger.WithFields(logrus.Fields{
		"poll_interval": d.cfg.PollInterval.String(),
		"batch_size":    d.cfg.BatchSize,
		"workers":       d.queue.Shards(),
	}).Info("Outbox dispatcher started")

	d.pool.Start(func(job *queue.DeliveryJob) error {
		return d.deliver(ctx, job)
	})
	defer d.pool.Stop()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := d.drain(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.WithError(err).Error("Failed to drain outbox")
				}
				break
			}
			// a full batch means more rows are probably waiting
			if n == 0 || n < d.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("Outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// drain hands one batch to the workers and waits until every row was handled
func (d *Dispatcher) drain(ctx context.Context) (int, error) {
	pending, err := d.outbox.Pending(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	for _, entry := range pending {
		wg.Add(1)
		job := queue.NewDeliveryJob(entry.Sequence, entry.Attempts, entry.Event, wg.Done)
		if err := d.queue.Enqueue(ctx, job); err != nil {
			return 0, err
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return len(pending), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// deliver publishes one row with bounded exponential retry and records the outcome
func (d *Dispatcher) deliver(ctx context.Context, job *queue.DeliveryJob) error {
	fields := eventFields(job.Event)
	attempts := job.Attempts

	b := backoff.NewExponentialBackOff()
	if d.cfg.InitialBackoff > 0 {
		b.InitialInterval = d.cfg.InitialBackoff
	}
	if d.cfg.MaxBackoff > 0 {
		b.MaxInterval = d.cfg.MaxBackoff
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, d.publisher.Publish(ctx, job.Event)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(d.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WithFields(fields).WithError(err).WithField("retry_in", next.String()).Warn("Publish failed, retrying")
		}),
	)

	if err == nil {
		if markErr := d.outbox.MarkDelivered(ctx, job.Event.EventID(), attempts); markErr != nil {
			return markErr
		}
		logger.WithFields(fields).WithField("attempts", attempts).Debug("Event delivered")
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	derr := &DeliveryError{
		EventID:    job.Event.EventID(),
		RoutingKey: job.Event.RoutingKey(),
		Attempts:   attempts,
		Err:        err,
	}
	if markErr := d.outbox.MarkFailed(ctx, job.Event.EventID(), attempts, err.Error()); markErr != nil {
		return markErr
	}
	logger.WithFields(fields).WithError(derr).Error("Event delivery abandoned")
	return derr
}

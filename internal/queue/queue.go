package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/sirupsen/logrus"
)

// DeliveryJob is one outbox row waiting to be handed to the event sink
type DeliveryJob struct {
	Sequence int64
	Attempts int
	Event    models.DomainEvent

	ack func()
}

// NewDeliveryJob creates a job. ack, when set, runs once the job was handled.
func NewDeliveryJob(sequence int64, attempts int, event models.DomainEvent, ack func()) *DeliveryJob {
	return &DeliveryJob{Sequence: sequence, Attempts: attempts, Event: event, ack: ack}
}

func (j *DeliveryJob) fields() logrus.Fields {
	return logrus.Fields{
		"event_id":     j.Event.EventID(),
		"aggregate_id": j.Event.AggregateID(),
		"routing_key":  j.Event.RoutingKey(),
		"sequence":     j.Sequence,
	}
}

func (j *DeliveryJob) done() {
	if j.ack != nil {
		j.ack()
	}
}

// JobQueue fans jobs out over shards. Every job of an aggregate lands on the
// same shard, and each shard has exactly one worker, so per-aggregate order holds.
type JobQueue struct {
	shards []chan *DeliveryJob
	done   chan struct{}
	once   sync.Once
}

// NewJobQueue creates a queue with the given shard count and per-shard buffer
func NewJobQueue(shards, bufferSize int) *JobQueue {
	if shards < 1 {
		shards = 1
	}
	jq := &JobQueue{
		shards: make([]chan *DeliveryJob, shards),
		done:   make(chan struct{}),
	}
	for i := range jq.shards {
		jq.shards[i] = make(chan *DeliveryJob, bufferSize)
	}
	return jq
}

// Shards returns the number of shards
func (jq *JobQueue) Shards() int {
	return len(jq.shards)
}

func (jq *JobQueue) shardFor(id models.ID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(jq.shards)))
}

// Enqueue adds a job to its aggregate's shard. It blocks while the shard is full.
func (jq *JobQueue) Enqueue(ctx context.Context, job *DeliveryJob) error {
	shard := jq.shardFor(job.Event.AggregateID())
	logger.WithFields(job.fields()).WithField("shard", shard).Debug("Enqueueing delivery job")

	select {
	case jq.shards[shard] <- job:
		return nil
	case <-jq.done:
		logger.WithFields(job.fields()).Warn("Failed to enqueue job: queue is closed")
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and tells the workers to exit
func (jq *JobQueue) Close() {
	jq.once.Do(func() {
		close(jq.done)
	})
}

// WorkerPool runs one worker per shard
type WorkerPool struct {
	queue *JobQueue
	wg    sync.WaitGroup
}

// NewWorkerPool creates a new worker pool over the queue's shards
func NewWorkerPool(queue *JobQueue) *WorkerPool {
	return &WorkerPool{queue: queue}
}

// Start starts all workers
func (wp *WorkerPool) Start(handler func(*DeliveryJob) error) {
	for i := range wp.queue.shards {
		wp.wg.Add(1)
		go wp.worker(i, handler)
	}
}

// worker processes the jobs of one shard in arrival order
func (wp *WorkerPool) worker(shard int, handler func(*DeliveryJob) error) {
	defer wp.wg.Done()

	jobs := wp.queue.shards[shard]
	for {
		select {
		case job := <-jobs:
			wp.process(job, handler)
		case <-wp.queue.done:
			logger.WithField("shard", shard).Debug("Worker exiting: queue closed")
			return
		}
	}
}

func (wp *WorkerPool) process(job *DeliveryJob, handler func(*DeliveryJob) error) {
	defer job.done()

	if err := handler(job); err != nil {
		logger.WithFields(job.fields()).WithError(err).Error("Worker failed to process delivery job")
		return
	}
	logger.WithFields(job.fields()).Debug("Worker completed delivery job")
}

// Stop closes the queue and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.queue.Close()
	wp.wg.Wait()
}

// Wait waits for all workers to finish
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

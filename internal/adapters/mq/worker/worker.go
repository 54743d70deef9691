// Package worker drains the shard queues and hands each message to the publisher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/internal/adapters/mq/queue"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Failure reasons reported on the failed-events metric.
const (
	ReasonPublishFailed = "publish_failed"
	ReasonCircuitOpen   = "circuit_open"
)

// Publisher sends one message to the channel.
type Publisher interface {
	Publish(ctx context.Context, m queue.Message) error
}

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Worker publishes messages from one queue.
type Worker interface {
	// Run starts the worker loop until the queue is drained or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker without waiting for the queue to drain.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker. Messages from its queue are published
// strictly one at a time, so per-queue order is kept.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string

	published atomic.Int64
	failed    atomic.Int64

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, pub Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: pub,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get(),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)

	return w
}

// Run starts the worker loop. It returns once the queue channel is closed
// and drained, on Shutdown, or when ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	msgs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

// Shutdown signals the worker to stop and waits for it or for ctx.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Published returns how many messages this worker delivered.
func (w *InMemoryWorker) Published() int64 { return w.published.Load() }

// Failed returns how many publishes failed.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// process publishes m. Failures are logged and counted, never retried.
func (w *InMemoryWorker) process(ctx context.Context, m queue.Message) { //nolint:gocritic // hugeParam: Message is passed by value for channel semantics
	start := time.Now()
	err := w.publisher.Publish(ctx, m)
	latency := float64(time.Since(start).Milliseconds())
	metrics.RecordWorkerProcessingLatency(latency)
	metrics.RecordPublishLatency(latency)

	if err != nil {
		w.failed.Add(1)
		reason := ReasonPublishFailed
		if errors.Is(err, publisher.ErrCircuitOpen) {
			reason = ReasonCircuitOpen
		}
		metrics.RecordWorkerError()
		metrics.RecordEventFailed(m.Kind, reason)
		metrics.RecordErrorByComponent("worker", reason)
		w.logger.Error(ctx, "failed to publish book event",
			logger.String("id", m.UUID),
			logger.String("topic", m.Topic),
			logger.String("key", m.Key),
			logger.String("kind", m.Kind),
			logger.Error(err),
		)
		return
	}

	w.published.Add(1)
	metrics.RecordEventPublished(m.Kind)
	w.logger.Debug(ctx, "published book event",
		logger.String("id", m.UUID),
		logger.String("topic", m.Topic),
		logger.String("key", m.Key),
		logger.Int64("queued_ms", time.Since(m.EnqueuedAt).Milliseconds()),
	)
}

// Pool runs one worker per queue.
type Pool struct {
	workers []*InMemoryWorker
	queues  []queue.Queue

	shutdown chan struct{}
	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc

	logger logger.Logger
}

// NewPool creates a pool with exactly one worker bound to each queue.
func NewPool(queues []queue.Queue, pub Publisher, opts ...Option) *Pool {
	pool := &Pool{
		workers:  make([]*InMemoryWorker, len(queues)),
		queues:   queues,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i, q := range queues {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, pub, wopts...)
	}

	metrics.UpdateWorkerCount(len(queues))

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Calling it twice is a no-op.
// Workers keep running after ctx is canceled so queued messages can still
// be drained; stop them with Shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}

	go p.startMetricsUpdater(runCtx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics(ctx)
		}
	}
}

// updateMetrics publishes aggregate queue gauges across all shards.
func (p *Pool) updateMetrics(ctx context.Context) {
	size, capacity := 0, 0
	for _, q := range p.queues {
		size += q.Len(ctx)
		capacity += q.Cap()
	}
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueCapacity(capacity)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity) * 100)
	}
}

// Published sums delivered messages across workers.
func (p *Pool) Published() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Published()
	}
	return n
}

// Failed sums failed publishes across workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes every queue and waits for the workers to drain them. If
// ctx expires first the remaining workers are told to stop and the messages
// still queued are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	for i, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Int("worker_id", i), logger.Error(err))
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}

	p.mu.Lock()
	started, cancelRun := p.started, p.cancel
	p.mu.Unlock()
	if !started {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
	}

	defer cancelRun()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out, dropping queued messages", logger.Int("worker_id", i))
			return fmt.Errorf("drain timed out: %w", ctx.Err())
		}
	}
	return nil
}

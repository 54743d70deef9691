// Package events emits book telemetry without slowing down lookups.
//
// EmitSearch and EmitView serialize the event, pick a shard from the
// partition key and enqueue without blocking. One worker per shard publishes
// to the message channel, so events sharing a key leave in submission order.
// Any failure along the way is logged, counted and dropped.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/internal/adapters/mq/queue"
	"github.com/okian/booklookup/internal/adapters/mq/worker"
	"github.com/okian/booklookup/internal/domain/model"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// Event kinds, also used as metric labels.
const (
	KindView   = "view"
	KindSearch = "search"
)

// Drop reasons reported on the failed-events metric.
const (
	ReasonMarshalFailed = "marshal_failed"
	ReasonQueueFull     = "queue_full"
	ReasonClosed        = "closed"
)

// DefaultTopic is where book events are published.
const DefaultTopic = "book-events"

const (
	defaultShards        = 4
	defaultQueueCapacity = 1000
	defaultDrainTimeout  = 5 * time.Second
)

// Emitter is what request handlers use to report lookups.
type Emitter interface {
	EmitSearch(ctx context.Context, e model.SearchEvent)
	EmitView(ctx context.Context, e model.ViewEvent)
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Started      bool
	Shards       int
	QueueLengths []int
	Emitted      int64
	Dropped      int64
	Published    int64
	Failed       int64
}

// Pipeline implements Emitter over sharded queues.
type Pipeline struct {
	topic         string
	shards        int
	queueCapacity int
	drainTimeout  time.Duration

	queues    []queue.Queue
	pool      *worker.Pool
	publisher publisher.Publisher

	started atomic.Bool
	stopped atomic.Bool
	emitted atomic.Int64
	dropped atomic.Int64

	logger logger.Logger
}

// New builds a pipeline that publishes through pub. Nothing is sent until
// Start is called; events emitted before that wait in their shard queue.
func New(pub publisher.Publisher, opts ...Option) (*Pipeline, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}

	p := &Pipeline{
		topic:         DefaultTopic,
		shards:        defaultShards,
		queueCapacity: defaultQueueCapacity,
		drainTimeout:  defaultDrainTimeout,
		publisher:     pub,
		logger:        logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("events")

	p.queues = make([]queue.Queue, p.shards)
	for i := range p.queues {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.queueCapacity))
	}
	p.pool = worker.NewPool(p.queues, pub, worker.WithLogger(p.logger))

	return p, nil
}

// SearchKey is the partition key of search events of type t.
func SearchKey(t model.SearchType) string {
	return publisher.SearchKeyPrefix + string(t)
}

// ViewKey is the partition key of view events for bookID.
func ViewKey(bookID string) string {
	return bookID
}

// Shard maps key onto one of n shards.
func Shard(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// EmitSearch submits a search event keyed by its search type.
func (p *Pipeline) EmitSearch(ctx context.Context, e model.SearchEvent) {
	p.emit(ctx, KindSearch, SearchKey(e.SearchType), e)
}

// EmitView submits a view event keyed by its book id.
func (p *Pipeline) EmitView(ctx context.Context, e model.ViewEvent) { //nolint:gocritic // hugeParam: events are immutable values
	p.emit(ctx, KindView, ViewKey(e.BookID), e)
}

func (p *Pipeline) emit(ctx context.Context, kind, key string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.drop(ctx, kind, key, ReasonMarshalFailed, err)
		return
	}

	m := queue.Message{
		UUID:    uuid.NewString(),
		Topic:   p.topic,
		Key:     key,
		Kind:    kind,
		Payload: payload,
	}

	q := p.queues[Shard(key, len(p.queues))]
	// The request may finish before the event is queued; its cancellation
	// must not drop the event.
	if !q.Enqueue(context.WithoutCancel(ctx), m) {
		reason, cause := ReasonQueueFull, queue.ErrFull
		if q.IsClosed() {
			reason, cause = ReasonClosed, queue.ErrClosed
		}
		p.drop(ctx, kind, key, reason, cause)
		return
	}

	p.emitted.Add(1)
	metrics.RecordEventEmitted(kind)
	p.logger.Debug(ctx, "queued book event",
		logger.String("id", m.UUID),
		logger.String("kind", kind),
		logger.String("key", key),
	)
}

func (p *Pipeline) drop(ctx context.Context, kind, key, reason string, err error) {
	p.dropped.Add(1)
	metrics.RecordEventFailed(kind, reason)
	metrics.RecordErrorByComponent("events", reason)
	p.logger.Error(ctx, "dropped book event",
		logger.String("kind", kind),
		logger.String("key", key),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

// Start launches the shard workers.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}
	p.pool.Start(ctx)
	p.logger.Info(ctx, "event pipeline started",
		logger.String("topic", p.topic),
		logger.Int("shards", p.shards),
		logger.Int("queue_capacity", p.queueCapacity),
	)
	return nil
}

// Shutdown stops accepting events, waits up to the drain timeout (or ctx's
// deadline, whichever is sooner) for queued events to be published, then
// closes the publisher.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, p.drainTimeout)
	defer cancel()

	var errs []error
	if err := p.pool.Shutdown(drainCtx); err != nil {
		p.logger.Warn(ctx, "event drain incomplete", logger.Error(err))
		errs = append(errs, err)
	}
	if err := p.publisher.Close(); err != nil {
		p.logger.Error(ctx, "closing publisher", logger.Error(err))
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}

	s := p.Stats(ctx)
	p.logger.Info(ctx, "event pipeline stopped",
		logger.Int64("emitted", s.Emitted),
		logger.Int64("published", s.Published),
		logger.Int64("failed", s.Failed),
		logger.Int64("dropped", s.Dropped),
	)
	return errors.Join(errs...)
}

// Stats returns counters and per-shard queue lengths.
func (p *Pipeline) Stats(ctx context.Context) Stats {
	lengths := make([]int, len(p.queues))
	for i, q := range p.queues {
		lengths[i] = q.Len(ctx)
	}
	return Stats{
		Started:      p.started.Load() && !p.stopped.Load(),
		Shards:       len(p.queues),
		QueueLengths: lengths,
		Emitted:      p.emitted.Load(),
		Dropped:      p.dropped.Load(),
		Published:    p.pool.Published(),
		Failed:       p.pool.Failed(),
	}
}

// Package publisher sends queued book events to the message channel.
//
// Every publish goes through a circuit breaker so a dead broker is detected
// quickly and later sends fail fast instead of tying up the shard workers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/booklookup/internal/adapters/mq/queue"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// Metadata keys set on every outgoing message.
const (
	MetadataPartitionKey = "partition_key"
	MetadataKind         = "kind"
)

// SearchKeyPrefix starts the partition key of every search event.
const SearchKeyPrefix = "search-"

// Publisher delivers one message to the channel.
type Publisher interface {
	Publish(ctx context.Context, m queue.Message) error
	Close() error
}

// BreakerConfig tunes the circuit breaker around the broker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts; zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// BrokerPublisher adapts a Watermill publisher to Publisher.
type BrokerPublisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	name      string
	logger    logger.Logger
	breakerCf BreakerConfig
	msgIDHdr  bool

	mu     sync.RWMutex
	closed bool
}

// New wraps pub. It returns ErrNilPublisher when pub is nil.
func New(pub message.Publisher, opts ...Option) (*BrokerPublisher, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}
	p := &BrokerPublisher{
		publisher: pub,
		name:      "book-events",
		logger:    logger.Get(),
		breakerCf: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("publisher")

	threshold := p.breakerCf.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        p.name,
		MaxRequests: p.breakerCf.MaxRequests,
		Interval:    p.breakerCf.Interval,
		Timeout:     p.breakerCf.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateCircuitBreakerState(name, int(to))
			p.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	metrics.UpdateCircuitBreakerState(p.name, int(gobreaker.StateClosed))
	return p, nil
}

// Publish sends m to its topic, keyed by m.Key.
func (p *BrokerPublisher) Publish(ctx context.Context, m queue.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	msg := message.NewMessage(m.UUID, m.Payload)
	msg.Metadata.Set(MetadataPartitionKey, m.Key)
	msg.Metadata.Set(MetadataKind, m.Kind)
	if p.msgIDHdr {
		msg.Metadata.Set(natsgo.MsgIdHdr, m.UUID)
	}
	msg.SetContext(ctx)

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(m.Topic, msg)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	default:
		return fmt.Errorf("publish %s to %s: %w", m.UUID, m.Topic, err)
	}
}

// State reports the current breaker state.
func (p *BrokerPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying Watermill publisher once.
func (p *BrokerPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Package consumer reads book events back off the message channel and logs them.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// ErrNilSubscriber is returned by New without a subscriber.
var ErrNilSubscriber = errors.New("consumer: nil subscriber")

// Consumer logs every message received on a topic and acks it.
type Consumer struct {
	subscriber message.Subscriber
	topic      string
	logger     logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	received int64
}

// New creates a consumer for topic.
func New(sub message.Subscriber, topic string, l logger.Logger) (*Consumer, error) {
	if sub == nil {
		return nil, ErrNilSubscriber
	}
	if l == nil {
		l = logger.Get()
	}
	return &Consumer{
		subscriber: sub,
		topic:      topic,
		logger:     l.Named("consumer"),
	}, nil
}

// Start subscribes and processes messages in the background until Stop.
// Canceling ctx does not end the subscription, so events drained during
// shutdown are still received.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	msgs, err := c.subscriber.Subscribe(runCtx, c.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, msgs, c.done)

	c.logger.Info(ctx, "consumer started", logger.String("topic", c.topic))
	return nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	key := msg.Metadata.Get(publisher.MetadataPartitionKey)
	c.logger.Info(ctx, "received book event",
		logger.String("key", key),
		logger.String("id", msg.UUID),
		logger.String("payload", string(msg.Payload)),
	)
	metrics.RecordEventConsumed(keyKind(key))

	c.mu.Lock()
	c.received++
	c.mu.Unlock()

	msg.Ack()
}

// keyKind collapses partition keys to a bounded metric label.
func keyKind(key string) string {
	switch {
	case key == "":
		return "none"
	case strings.HasPrefix(key, publisher.SearchKeyPrefix):
		return key
	default:
		return "view"
	}
}

// Received returns how many messages were handled.
func (c *Consumer) Received() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// Stop cancels the subscription and waits for the loop to exit or ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer stop: %w", ctx.Err())
	}
}

package events

import (
	"time"

	"github.com/okian/booklookup/pkg/logger"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopic sets the destination topic.
func WithTopic(topic string) Option {
	return func(p *Pipeline) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithShards sets the number of shard queues and workers.
func WithShards(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.shards = n
		}
	}
}

// WithQueueCapacity sets the capacity of each shard queue.
func WithQueueCapacity(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queueCapacity = n
		}
	}
}

// WithDrainTimeout bounds how long Shutdown waits for queued events.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

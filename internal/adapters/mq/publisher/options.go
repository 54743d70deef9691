package publisher

import "github.com/okian/booklookup/pkg/logger"

// Option configures a BrokerPublisher.
type Option func(*BrokerPublisher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *BrokerPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithName names the breaker; the name is also the metric label.
func WithName(name string) Option {
	return func(p *BrokerPublisher) {
		if name != "" {
			p.name = name
		}
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(p *BrokerPublisher) {
		p.breakerCf = cfg
	}
}

// WithMessageIDHeader sets the Nats-Msg-Id header to the message UUID so
// JetStream can deduplicate redeliveries.
func WithMessageIDHeader(enabled bool) Option {
	return func(p *BrokerPublisher) {
		p.msgIDHdr = enabled
	}
}

package broker

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Supported drivers.
const (
	DriverGoChannel = "gochannel"
	DriverNATS      = "nats"
)

// Default connection settings.
const (
	defaultMaxReconnects    = 10
	defaultReconnectWait    = 2 * time.Second
	defaultAckWaitTimeout   = 30 * time.Second
	defaultCloseTimeout     = 10 * time.Second
	defaultSubscribersCount = 1
	defaultOutputBuffer     = 1024
)

// NATSConfig configures the JetStream-backed driver.
type NATSConfig struct {
	URL           string
	QueueGroup    string
	DurableName   string
	MaxReconnects int
	ReconnectWait time.Duration
	AutoProvision bool
	TrackMsgID    bool
}

func (c NATSConfig) withDefaults() NATSConfig {
	if c.MaxReconnects == 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = defaultReconnectWait
	}
	return c
}

// PubSub is the pair of publisher and (optional) subscriber of one driver.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases the publisher and subscriber. Closing a GoChannel twice is safe.
func (p PubSub) Close() error {
	var firstErr error
	if p.Publisher != nil {
		if err := p.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if p.Subscriber != nil {
		if err := p.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewGoChannel returns an in-process pub/sub. The same value serves as both
// publisher and subscriber. Publish waits for subscribers to ack, so
// messages published from one goroutine are received in that order.
func NewGoChannel(outputBuffer int64, log watermill.LoggerAdapter) *gochannel.GoChannel {
	if outputBuffer <= 0 {
		outputBuffer = defaultOutputBuffer
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            outputBuffer,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: true,
	}, log)
}

// NewNATSPublisher connects a JetStream publisher to cfg.URL.
func NewNATSPublisher(cfg NATSConfig, log watermill.LoggerAdapter) (message.Publisher, error) {
	cfg = cfg.withDefaults()
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, log),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: cfg.AutoProvision,
			TrackMsgId:    cfg.TrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(0),
			},
		},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return pub, nil
}

// NewNATSSubscriber connects a durable JetStream subscriber to cfg.URL.
func NewNATSSubscriber(cfg NATSConfig, log watermill.LoggerAdapter) (message.Subscriber, error) {
	cfg = cfg.withDefaults()
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: defaultSubscribersCount,
		AckWaitTimeout:   defaultAckWaitTimeout,
		CloseTimeout:     defaultCloseTimeout,
		NatsOptions:      natsOptions(cfg, log),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: cfg.AutoProvision,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return sub, nil
}

// Open builds the pub/sub pair for driver. withSubscriber controls whether a
// NATS subscriber connection is opened; the GoChannel driver always returns
// both sides since they share one instance.
func Open(driver string, cfg NATSConfig, outputBuffer int64, withSubscriber bool, log watermill.LoggerAdapter) (PubSub, error) {
	switch driver {
	case "", DriverGoChannel:
		gc := NewGoChannel(outputBuffer, log)
		return PubSub{Publisher: gc, Subscriber: gc}, nil
	case DriverNATS:
		pub, err := NewNATSPublisher(cfg, log)
		if err != nil {
			return PubSub{}, err
		}
		ps := PubSub{Publisher: pub}
		if withSubscriber {
			sub, err := NewNATSSubscriber(cfg, log)
			if err != nil {
				_ = pub.Close()
				return PubSub{}, err
			}
			ps.Subscriber = sub
		}
		return ps, nil
	default:
		return PubSub{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func natsOptions(cfg NATSConfig, log watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Error("nats disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info("nats reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

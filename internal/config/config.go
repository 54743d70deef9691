// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// CatalogDriver selects the catalog store: memory or postgres.
	CatalogDriver string `koanf:"catalog_driver" validate:"oneof=memory postgres"`

	// PostgresDSN is required with the postgres driver.
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=CatalogDriver postgres"`

	// CatalogCSV optionally seeds the catalog from a CSV export at startup.
	CatalogCSV string `koanf:"catalog_csv"`

	// EventTopic is the topic book events are published to.
	EventTopic string `koanf:"topic" validate:"required"`

	// EventShards sets the number of ordered publish lanes (one worker each).
	EventShards int `koanf:"worker_count" validate:"min=1"`

	// EventQueueSize bounds each shard's in-memory queue.
	EventQueueSize int `koanf:"queue_size" validate:"min=1"`

	// DrainTimeoutMS bounds how long shutdown waits for queued events.
	DrainTimeoutMS int `koanf:"drain_timeout_ms" validate:"min=1"`

	// PublisherDriver selects the message channel: gochannel or nats.
	PublisherDriver string `koanf:"publisher_driver" validate:"oneof=gochannel nats"`

	// NATSURL is required with the nats driver.
	NATSURL string `koanf:"nats_url" validate:"required_if=PublisherDriver nats"`

	// NATSAutoProvision lets the driver create the JetStream stream.
	NATSAutoProvision bool `koanf:"nats_auto_provision"`

	// NATSQueueGroup is the consumer queue group.
	NATSQueueGroup string `koanf:"nats_queue_group"`

	// BreakerFailureThreshold opens the publish circuit after this many consecutive failures.
	BreakerFailureThreshold int `koanf:"breaker_failure_threshold" validate:"min=1"`

	// BreakerTimeoutMS is how long the circuit stays open.
	BreakerTimeoutMS int `koanf:"breaker_timeout_ms" validate:"min=1"`

	// ConsumerEnabled runs the logging consumer in-process.
	ConsumerEnabled bool `koanf:"consumer_enabled"`

	// GenAIAPIKey authorizes description requests; empty yields placeholders.
	GenAIAPIKey string `koanf:"genai_api_key"`

	// GenAIModel names the text model.
	GenAIModel string `koanf:"genai_model" validate:"required"`

	// GenAIRatePerSec caps outgoing model calls; 0 disables the cap.
	GenAIRatePerSec float64 `koanf:"genai_rate_per_sec" validate:"min=0"`

	// RedisURL enables the description cache when set.
	RedisURL string `koanf:"redis_url"`

	// DescriptionCacheTTLSeconds is how long cached descriptions live.
	DescriptionCacheTTLSeconds int `koanf:"description_cache_ttl_seconds" validate:"min=1"`

	// DescribeRateLimit caps description requests per client per minute; 0 disables.
	DescribeRateLimit int `koanf:"describe_rate_limit" validate:"min=0"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins" validate:"dive,required"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		CatalogDriver:              "memory",
		EventTopic:                 "book-events",
		EventShards:                4,
		EventQueueSize:             1000,
		DrainTimeoutMS:             5000,
		PublisherDriver:            "gochannel",
		NATSQueueGroup:             "booklookup",
		BreakerFailureThreshold:    5,
		BreakerTimeoutMS:           30000,
		ConsumerEnabled:            true,
		GenAIModel:                 "gemini-2.0-flash",
		GenAIRatePerSec:            2,
		DescriptionCacheTTLSeconds: 86400,
		DescribeRateLimit:          30,
		CORSOrigins:                []string{"http://localhost:8501"},
	}
}

// DrainTimeout returns DrainTimeoutMS as a duration.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// BreakerTimeout returns BreakerTimeoutMS as a duration.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutMS) * time.Millisecond
}

// DescriptionCacheTTL returns DescriptionCacheTTLSeconds as a duration.
func (c *Config) DescriptionCacheTTL() time.Duration {
	return time.Duration(c.DescriptionCacheTTLSeconds) * time.Second
}

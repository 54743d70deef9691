package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/booklookup/internal/config"
)

var configEnvVars = []string{
	"BOOKLOOKUP_CONFIG",
	"BOOKLOOKUP_ADDR",
	"BOOKLOOKUP_QUEUE_SIZE",
	"BOOKLOOKUP_WORKER_COUNT",
	"BOOKLOOKUP_LOG_LEVEL",
	"BOOKLOOKUP_CATALOG_DRIVER",
	"BOOKLOOKUP_POSTGRES_DSN",
	"BOOKLOOKUP_PUBLISHER_DRIVER",
	"BOOKLOOKUP_NATS_URL",
	"BOOKLOOKUP_CONSUMER_ENABLED",
	"BOOKLOOKUP_CORS_ORIGINS",
	"BOOKLOOKUP_DRAIN_TIMEOUT_MS",
	"BOOKLOOKUP_GENAI_API_KEY",
	"GOOGLE_GENAI_API_KEY",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "booklookup-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventTopic, convey.ShouldEqual, "book-events")
			convey.So(cfg.EventShards, convey.ShouldEqual, 4)
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.CatalogDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.PublisherDriver, convey.ShouldEqual, "gochannel")
			convey.So(cfg.GenAIModel, convey.ShouldEqual, "gemini-2.0-flash")
			convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://localhost:8501"})
			convey.So(cfg.DrainTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.BreakerTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.DescriptionCacheTTL(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ConsumerEnabled, convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BOOKLOOKUP_ADDR", ":8080")
			_ = os.Setenv("BOOKLOOKUP_QUEUE_SIZE", "500")
			_ = os.Setenv("BOOKLOOKUP_WORKER_COUNT", "16")
			_ = os.Setenv("BOOKLOOKUP_CONSUMER_ENABLED", "false")
			_ = os.Setenv("BOOKLOOKUP_CORS_ORIGINS", "http://a.example, http://b.example")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
			convey.So(cfg.EventShards, convey.ShouldEqual, 16)
			convey.So(cfg.ConsumerEnabled, convey.ShouldBeFalse)
			convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://a.example", "http://b.example"})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 3000
worker_count: 8
drain_timeout_ms: 250
cors_origins:
  - "http://ui.example"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("BOOKLOOKUP_CONFIG", tmpFile)
			_ = os.Setenv("BOOKLOOKUP_WORKER_COUNT", "2")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 3000)
			convey.So(cfg.EventShards, convey.ShouldEqual, 2)
			convey.So(cfg.DrainTimeout(), convey.ShouldEqual, 250*time.Millisecond)
			convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://ui.example"})
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("BOOKLOOKUP_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BOOKLOOKUP_CONFIG", "/non/existent/booklookup.yaml")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BOOKLOOKUP_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with an empty addr", func() {
			_ = os.Setenv("BOOKLOOKUP_ADDR", "")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the postgres driver has no DSN", func() {
			_ = os.Setenv("BOOKLOOKUP_CATALOG_DRIVER", "postgres")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the nats driver has a URL", func() {
			_ = os.Setenv("BOOKLOOKUP_PUBLISHER_DRIVER", "nats")
			_ = os.Setenv("BOOKLOOKUP_NATS_URL", "nats://localhost:4222")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://localhost:4222")
		})

		convey.Convey("When an unknown log level is given", func() {
			_ = os.Setenv("BOOKLOOKUP_LOG_LEVEL", "verbose")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the API key comes from the standard variable", func() {
			_ = os.Setenv("GOOGLE_GENAI_API_KEY", "from-google-env")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.GenAIAPIKey, convey.ShouldEqual, "from-google-env")

			convey.Convey("the prefixed variable wins", func() {
				_ = os.Setenv("BOOKLOOKUP_GENAI_API_KEY", "prefixed")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GenAIAPIKey, convey.ShouldEqual, "prefixed")
			})
		})
	})
}

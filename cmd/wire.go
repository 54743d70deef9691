package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/booklookup/internal/adapters/description"
	"github.com/okian/booklookup/internal/adapters/http/api"
	"github.com/okian/booklookup/internal/adapters/mq/broker"
	"github.com/okian/booklookup/internal/adapters/mq/consumer"
	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/internal/adapters/repository"
	service "github.com/okian/booklookup/internal/app"
	"github.com/okian/booklookup/internal/config"
	"github.com/okian/booklookup/internal/events"
	"github.com/okian/booklookup/pkg/logger"
)

const (
	describeRateWindow = time.Minute
	brokerOutputBuffer = 1024
)

// application holds the wired components and what must be released on exit.
type application struct {
	service *service.Service
	handler http.Handler
	closers []func() error
}

func (a *application) close(log logger.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
}

// build wires the catalog, event pipeline, description service and HTTP API
// from cfg. Nothing is started.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close(log)
		}
	}()

	store, err := buildStore(ctx, cfg, log, app)
	if err != nil {
		return nil, err
	}

	wmLogger := broker.NewLoggerAdapter(log)
	ps, err := broker.Open(cfg.PublisherDriver, broker.NATSConfig{
		URL:           cfg.NATSURL,
		QueueGroup:    cfg.NATSQueueGroup,
		DurableName:   cfg.NATSQueueGroup,
		AutoProvision: cfg.NATSAutoProvision,
		TrackMsgID:    true,
	}, brokerOutputBuffer, cfg.ConsumerEnabled, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("open %s broker: %w", cfg.PublisherDriver, err)
	}
	app.closers = append(app.closers, ps.Close)

	pub, err := publisher.New(ps.Publisher,
		publisher.WithLogger(log),
		publisher.WithName(cfg.EventTopic),
		publisher.WithMessageIDHeader(cfg.PublisherDriver == broker.DriverNATS),
		publisher.WithBreaker(publisher.BreakerConfig{
			FailureThreshold: uint32(cfg.BreakerFailureThreshold), //nolint:gosec // validated >= 1
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          cfg.BreakerTimeout(),
		}),
	)
	if err != nil {
		return nil, err
	}

	pipeline, err := events.New(pub,
		events.WithLogger(log),
		events.WithTopic(cfg.EventTopic),
		events.WithShards(cfg.EventShards),
		events.WithQueueCapacity(cfg.EventQueueSize),
		events.WithDrainTimeout(cfg.DrainTimeout()),
	)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithStore(store),
		service.WithPipeline(pipeline),
		service.WithDescriber(buildDescriber(ctx, cfg, log, app)),
	}
	if cfg.ConsumerEnabled && ps.Subscriber != nil {
		c, cerr := consumer.New(ps.Subscriber, cfg.EventTopic, log)
		if cerr != nil {
			return nil, cerr
		}
		opts = append(opts, service.WithRunner(c))
	}

	app.service = service.New(opts...)
	svc := app.service
	app.handler = api.NewServer(svc,
		func(ctx context.Context) any { return svc.GetStats(ctx) },
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithDescribeRateLimit(cfg.DescribeRateLimit, describeRateWindow),
		api.WithLogger(log.Named("http")),
	).Handler(ctx)

	return app, nil
}

func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger, app *application) (repository.Store, error) {
	var (
		store  repository.Store
		writer repository.Writer
	)
	switch cfg.CatalogDriver {
	case "postgres":
		pool, err := repository.NewPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		pg := repository.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store, writer = pg, pg
	default:
		mem := repository.NewMemoryStore()
		store, writer = mem, mem
	}

	if cfg.CatalogCSV != "" {
		n, err := repository.LoadCSVFile(ctx, cfg.CatalogCSV, writer)
		if err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		log.Info(ctx, "catalog seeded", logger.String("path", cfg.CatalogCSV), logger.Int("entries", n))
	}
	return store, nil
}

// buildDescriber never fails: a missing key or unreachable cache degrades to
// placeholders and uncached calls.
func buildDescriber(ctx context.Context, cfg *config.Config, log logger.Logger, app *application) *description.Service {
	gen := description.NewGeminiClient(cfg.GenAIAPIKey,
		description.WithModel(cfg.GenAIModel),
		description.WithRateLimit(cfg.GenAIRatePerSec, 1),
	)
	opts := []description.Option{description.WithLogger(log)}
	if cfg.RedisURL != "" {
		client, err := description.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn(ctx, "description cache disabled", logger.Error(err))
		} else {
			app.closers = append(app.closers, client.Close)
			opts = append(opts, description.WithCache(description.NewRedisCache(client), cfg.DescriptionCacheTTL()))
		}
	}
	if cfg.GenAIAPIKey == "" {
		log.Warn(ctx, "no GenAI API key configured; descriptions will be placeholders")
	}
	return description.NewService(gen, opts...)
}

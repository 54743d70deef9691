// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/booklookup/internal/adapters/mq/broker"
	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/internal/adapters/repository"
	"github.com/okian/booklookup/internal/domain/matching"
	"github.com/okian/booklookup/internal/domain/model"
	"github.com/okian/booklookup/internal/events"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// NoMatchDescription is returned by DescribeBook when no title matches.
const NoMatchDescription = "No matching book found for that title."

// Lookup tiers reported on the lookups metric.
const (
	tierExact    = "exact"
	tierFuzzy    = "fuzzy"
	tierNotFound = "not_found"
	tierError    = "error"
)

// Pipeline is the telemetry sink the service reports lookups to.
type Pipeline interface {
	events.Emitter
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Stats(ctx context.Context) events.Stats
}

// Describer writes free-text descriptions. It never fails; problems come
// back as placeholder text.
type Describer interface {
	DescribeBook(ctx context.Context, e model.CatalogEntry) string
	DescribeAuthor(ctx context.Context, name string) string
}

// Runner is a background component started and stopped with the service.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service implements the API dependencies for book lookups.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	pipeline  Pipeline
	describer Describer
	runners   []Runner

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the catalog store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPipeline sets the event pipeline.
func WithPipeline(p Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithDescriber sets the description generator.
func WithDescriber(d Describer) Option {
	return func(s *Service) {
		if d != nil {
			s.describer = d
		}
	}
}

// WithRunner registers a background component. Runners start before the
// pipeline and stop after it has drained, so a consumer sees every event.
func WithRunner(r Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.runners = append(s.runners, r)
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service. Missing components get in-process defaults
// when the service starts.
func New(opts ...Option) *Service {
	s := &Service{}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes missing components and starts the pipeline and runners.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting book lookup service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using empty in-memory catalog")
	}
	if s.pipeline == nil {
		p, err := defaultPipeline(s.logger)
		if err != nil {
			return err
		}
		s.pipeline = p
		s.logger.Info(ctx, "using in-process event channel")
	}

	for _, r := range s.runners {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("start runner: %w", err)
		}
	}
	if err := s.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("start event pipeline: %w", err)
	}

	s.started = true
	metrics.UpdateCatalogSize(s.store.Count(ctx))
	s.logger.Info(ctx, "book lookup service started",
		logger.Int("catalogSize", s.store.Count(ctx)),
		logger.Bool("descriptions", s.describer != nil),
	)

	return nil
}

func defaultPipeline(l logger.Logger) (*events.Pipeline, error) {
	gc := broker.NewGoChannel(0, broker.NewLoggerAdapter(l))
	pub, err := publisher.New(gc, publisher.WithLogger(l))
	if err != nil {
		return nil, err
	}
	return events.New(pub, events.WithLogger(l))
}

// Stop drains the event pipeline within ctx, then stops runners.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping book lookup service...")

	var errs []error
	if err := s.pipeline.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(s.runners) - 1; i >= 0; i-- {
		if err := s.runners[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.started = false
	s.logger.Info(ctx, "book lookup service stopped")
	return errors.Join(errs...)
}

// BookByTitle resolves title to a single book: an exact title match if one
// exists, otherwise the best scored candidate among titles containing it.
func (s *Service) BookByTitle(ctx context.Context, title string) (model.CatalogEntry, error) {
	entry, err := s.resolveTitle(ctx, title)
	if err != nil {
		return model.CatalogEntry{}, err
	}
	s.pipeline.EmitView(ctx, model.NewViewEvent(entry))
	return entry, nil
}

// BooksByTitle lists books whose title contains title.
func (s *Service) BooksByTitle(ctx context.Context, title string) ([]model.CatalogEntry, error) {
	if isBlank(title) {
		return nil, ErrInvalidQuery
	}
	list, err := s.store.FindAllByTitleContaining(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	metrics.RecordSearch(string(model.SearchTypeTitle))
	s.pipeline.EmitSearch(ctx, model.NewSearchEvent(title, model.SearchTypeTitle, len(list)))
	return list, nil
}

// BookByAuthors returns the first book whose authors string equals authors.
func (s *Service) BookByAuthors(ctx context.Context, authors string) (model.CatalogEntry, error) {
	if isBlank(authors) {
		return model.CatalogEntry{}, ErrInvalidQuery
	}
	entry, ok, err := s.store.FindFirstByAuthors(ctx, authors)
	if err != nil {
		metrics.RecordLookup("author", tierError)
		return model.CatalogEntry{}, fmt.Errorf("authors lookup: %w", err)
	}
	if !ok {
		metrics.RecordLookup("author", tierNotFound)
		return model.CatalogEntry{}, ErrNotFound
	}
	metrics.RecordLookup("author", tierExact)
	s.pipeline.EmitView(ctx, model.NewViewEvent(entry))
	return entry, nil
}

// BooksByAuthor lists books whose authors contain author.
func (s *Service) BooksByAuthor(ctx context.Context, author string) ([]model.CatalogEntry, error) {
	if isBlank(author) {
		return nil, ErrInvalidQuery
	}
	list, err := s.store.FindAllByAuthorsContaining(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("search authors: %w", err)
	}
	metrics.RecordSearch(string(model.SearchTypeAuthor))
	s.pipeline.EmitSearch(ctx, model.NewSearchEvent(author, model.SearchTypeAuthor, len(list)))
	return list, nil
}

// DescribeBook resolves title like BookByTitle and describes the result.
// No view event is emitted.
func (s *Service) DescribeBook(ctx context.Context, title string) (string, error) {
	if s.describer == nil {
		return "", ErrDescriptionsDisabled
	}
	entry, err := s.resolveTitle(ctx, title)
	if errors.Is(err, ErrNotFound) {
		return NoMatchDescription, nil
	}
	if err != nil {
		return "", err
	}
	return s.describer.DescribeBook(ctx, entry), nil
}

// DescribeAuthor describes the named author.
func (s *Service) DescribeAuthor(ctx context.Context, name string) (string, error) {
	if s.describer == nil {
		return "", ErrDescriptionsDisabled
	}
	if isBlank(name) {
		return "", ErrInvalidQuery
	}
	return s.describer.DescribeAuthor(ctx, name), nil
}

func (s *Service) resolveTitle(ctx context.Context, title string) (model.CatalogEntry, error) {
	if isBlank(title) {
		return model.CatalogEntry{}, ErrInvalidQuery
	}

	lookup := &tierTracker{store: s.store}
	entry, ok, err := matching.ResolveExact(ctx, title, lookup)
	switch {
	case err != nil:
		metrics.RecordLookup("title", tierError)
		return model.CatalogEntry{}, err
	case !ok:
		metrics.RecordLookup("title", tierNotFound)
		return model.CatalogEntry{}, ErrNotFound
	case lookup.fuzzy:
		metrics.RecordLookup("title", tierFuzzy)
		metrics.RecordMatchCandidates(lookup.candidates)
		s.logger.Debug(ctx, "resolved title by score",
			logger.String("query", title),
			logger.String("match", entry.Title),
			logger.Int("candidates", lookup.candidates),
		)
	default:
		metrics.RecordLookup("title", tierExact)
	}
	return entry, nil
}

// tierTracker notes which lookup tier produced a result.
type tierTracker struct {
	store      repository.Store
	fuzzy      bool
	candidates int
}

func (t *tierTracker) FindFirstByTitle(ctx context.Context, title string) (model.CatalogEntry, bool, error) {
	return t.store.FindFirstByTitle(ctx, title)
}

func (t *tierTracker) FindAllByTitleContaining(ctx context.Context, title string) ([]model.CatalogEntry, error) {
	t.fuzzy = true
	list, err := t.store.FindAllByTitleContaining(ctx, title)
	t.candidates = len(list)
	return list, err
}

// Stats is the service state reported on /stats.
type Stats struct {
	Started      bool   `json:"started"`
	CatalogSize  int    `json:"catalogSize"`
	Workers      int    `json:"workerCount"`
	QueueLengths []int  `json:"queueLengths"`
	Emitted      int64  `json:"eventsEmitted"`
	Published    int64  `json:"eventsPublished"`
	Failed       int64  `json:"eventsFailed"`
	Dropped      int64  `json:"eventsDropped"`
	Descriptions string `json:"descriptions"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Started: s.started, Descriptions: "disabled"}
	if s.describer != nil {
		stats.Descriptions = "enabled"
	}
	if !s.started {
		return stats
	}

	stats.CatalogSize = s.store.Count(ctx)
	ps := s.pipeline.Stats(ctx)
	stats.Workers = ps.Shards
	stats.QueueLengths = ps.QueueLengths
	stats.Emitted = ps.Emitted
	stats.Published = ps.Published
	stats.Failed = ps.Failed
	stats.Dropped = ps.Dropped

	metrics.UpdateCatalogSize(stats.CatalogSize)
	return stats
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

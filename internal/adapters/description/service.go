// Package description writes short book briefs and author profiles with a
// text generation model.
//
// Callers always get a string back. When the model cannot be reached the
// string is a human-readable placeholder rather than an error.
package description

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/booklookup/internal/domain/model"
	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// Placeholder texts.
const (
	Unavailable      = "Description is currently unavailable."
	bookFailurePfx   = "Unable to generate book brief: "
	authorFailurePfx = "Unable to generate author summary: "
	unknownValue     = "-"
	unknownAuthors   = "Unknown"
)

// Metric labels.
const (
	subjectBook   = "book"
	subjectAuthor = "author"

	outcomeGenerated   = "generated"
	outcomeCached      = "cached"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

const defaultCacheTTL = 24 * time.Hour

// Service produces descriptions, consulting the cache first when one is set.
type Service struct {
	generator Generator
	cache     Cache
	ttl       time.Duration
	logger    logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables caching of generated text for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service backed by gen.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		generator: gen,
		ttl:       defaultCacheTTL,
		logger:    logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("description")
	return s
}

// DescribeBook returns a three paragraph brief for e.
func (s *Service) DescribeBook(ctx context.Context, e model.CatalogEntry) string { //nolint:gocritic // hugeParam: entries are passed by value across layers
	authors := strings.TrimSpace(e.Authors)
	if authors == "" {
		authors = unknownAuthors
	}
	prompt := BookPrompt(e.Title, authors, KnownFacts(e))
	key := cacheKey(subjectBook, e.ID+"\x00"+e.Title)
	return s.describe(ctx, subjectBook, key, prompt, bookFailurePfx)
}

// DescribeAuthor returns a short factual profile of name.
func (s *Service) DescribeAuthor(ctx context.Context, name string) string {
	prompt := AuthorPrompt(name, "")
	key := cacheKey(subjectAuthor, strings.ToLower(strings.TrimSpace(name)))
	return s.describe(ctx, subjectAuthor, key, prompt, authorFailurePfx)
}

func (s *Service) describe(ctx context.Context, subject, key, prompt, failurePfx string) string {
	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RecordDescriptionCache("error")
			s.logger.Warn(ctx, "description cache read failed", logger.Error(err))
		case ok:
			metrics.RecordDescriptionCache("hit")
			metrics.RecordDescription(subject, outcomeCached)
			return text
		default:
			metrics.RecordDescriptionCache("miss")
		}
	}

	if s.generator == nil {
		metrics.RecordDescription(subject, outcomeError)
		return failurePfx + ErrMissingAPIKey.Error()
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.RecordDescription(subject, outcomeError)
		s.logger.Error(ctx, "description generation failed",
			logger.String("subject", subject),
			logger.Error(err),
		)
		return failurePfx + err.Error()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.RecordDescription(subject, outcomeUnavailable)
		return Unavailable
	}

	metrics.RecordDescription(subject, outcomeGenerated)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, text, s.ttl); err != nil {
			s.logger.Warn(ctx, "description cache write failed", logger.Error(err))
		}
	}
	return text
}

// KnownFacts summarizes what the catalog knows about e, with "-" for blanks.
func KnownFacts(e model.CatalogEntry) string { //nolint:gocritic // hugeParam: entries are passed by value across layers
	avg := unknownValue
	if e.AverageRating > 0 {
		avg = strconv.FormatFloat(e.AverageRating, 'f', 2, 64)
	}
	count := unknownValue
	if e.RatingsCount > 0 {
		count = strconv.Itoa(e.RatingsCount)
	}
	return fmt.Sprintf("Publisher=%s; Published=%s; AvgRating=%s; RatingsCount=%s",
		orUnknown(e.Publisher), orUnknown(e.PublishedDate), avg, count)
}

// BookPrompt asks for a brief about a book.
func BookPrompt(title, authors, facts string) string {
	return fmt.Sprintf(`You are a concise literary analyst.
Write exactly 3 short paragraphs about the book %q by %s.
Paragraph 1: a brief, spoiler-aware summary in 2-3 sentences.
Paragraph 2: what readers commonly take away: themes, tone and pacing.
Paragraph 3: general reception and public sentiment, without unverifiable numbers.
If something is unknown, say so briefly instead of inventing details.
Extra context (may be partial): %s`, title, authors, facts)
}

// AuthorPrompt asks for a profile of an author.
func AuthorPrompt(name, facts string) string {
	return fmt.Sprintf(`Write a brief, factual profile of the author %q in 1-2 short paragraphs.
Summarize major achievements, recurring themes and style; avoid speculation.
Known facts (may be partial): %s
Keep it concise, neutral and readable.`, name, facts)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownValue
	}
	return s
}

func cacheKey(subject, id string) string {
	return fmt.Sprintf("%s:%016x", subject, xxhash.Sum64String(id))
}

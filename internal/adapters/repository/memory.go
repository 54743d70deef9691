package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/booklookup/pkg/metrics"
)

// MemoryStore is an in-memory catalog. Its natural order is insertion order,
// which is the order substring searches return.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int

	seed  []Entry
	newID func() string
}

// NewMemoryStore creates an empty in-memory store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:  make(map[string]int),
		newID: func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, e := range s.seed {
		_, _ = s.put(e)
	}
	s.seed = nil
	metrics.UpdateCatalogSize(len(s.entries))

	return s
}

// Put appends an entry to the catalog, assigning an ID when it has none.
func (s *MemoryStore) Put(_ context.Context, e Entry) (Entry, error) { //nolint:gocritic // hugeParam: entries are values
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.put(e)
	if err != nil {
		return Entry{}, err
	}
	metrics.UpdateCatalogSize(len(s.entries))
	return stored, nil
}

// put must be called with mu held (or before the store is shared).
func (s *MemoryStore) put(e Entry) (Entry, error) { //nolint:gocritic // hugeParam: entries are values
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	if _, exists := s.byID[e.ID]; exists {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	s.byID[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
	return e, nil
}

// Get returns an entry by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// FindFirstByTitle returns the first entry whose title equals title.
func (s *MemoryStore) FindFirstByTitle(_ context.Context, title string) (Entry, bool, error) {
	defer observeQuery(time.Now())
	return s.first(func(e *Entry) bool { return e.Title == title })
}

// FindAllByTitleContaining returns entries whose title contains title, ignoring case.
func (s *MemoryStore) FindAllByTitleContaining(_ context.Context, title string) ([]Entry, error) {
	defer observeQuery(time.Now())
	needle := strings.ToLower(title)
	return s.all(func(e *Entry) bool { return strings.Contains(strings.ToLower(e.Title), needle) }), nil
}

// FindFirstByAuthors returns the first entry whose authors equal authors.
func (s *MemoryStore) FindFirstByAuthors(_ context.Context, authors string) (Entry, bool, error) {
	defer observeQuery(time.Now())
	return s.first(func(e *Entry) bool { return e.Authors == authors })
}

// FindAllByAuthorsContaining returns entries whose authors contain author, ignoring case.
func (s *MemoryStore) FindAllByAuthorsContaining(_ context.Context, author string) ([]Entry, error) {
	defer observeQuery(time.Now())
	needle := strings.ToLower(author)
	return s.all(func(e *Entry) bool { return strings.Contains(strings.ToLower(e.Authors), needle) }), nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) first(match func(*Entry) bool) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if match(&s.entries[i]) {
			return s.entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *MemoryStore) all(match func(*Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0)
	for i := range s.entries {
		if match(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func validate(e Entry) error { //nolint:gocritic // hugeParam: entries are values
	switch {
	case e.RatingsCount < 0:
		return fmt.Errorf("%w: negative ratings count", ErrInvalidEntry)
	case e.AverageRating < 0:
		return fmt.Errorf("%w: negative average rating", ErrInvalidEntry)
	}
	return nil
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

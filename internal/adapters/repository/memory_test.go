package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func seedStore() *MemoryStore {
	return NewMemoryStore(WithEntries(
		Entry{ID: "1", Title: "Harry Potter and the Chamber of Secrets", Authors: "J.K. Rowling/Mary GrandPré"},
		Entry{ID: "2", Title: "Harry Potter and the Goblet of Fire", Authors: "J.K. Rowling"},
		Entry{ID: "3", Title: "Dune", Authors: "Frank Herbert", AverageRating: 4.25, RatingsCount: 1000},
		Entry{ID: "4", Title: "Dune Messiah", Authors: "Frank Herbert"},
	))
}

func TestMemoryStore_FindFirstByTitle(t *testing.T) {
	ctx := context.Background()
	store := seedStore()

	e, ok, err := store.FindFirstByTitle(ctx, "Dune")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || e.ID != "3" {
		t.Errorf("expected entry 3, got %+v (found=%v)", e, ok)
	}

	// exact lookup is case-sensitive; case-insensitive matches go through the fuzzy tier
	if _, ok, _ := store.FindFirstByTitle(ctx, "dune"); ok {
		t.Error("expected no exact match for lower-case title")
	}
}

func TestMemoryStore_FindAllByTitleContaining(t *testing.T) {
	ctx := context.Background()
	store := seedStore()

	got, err := store.FindAllByTitleContaining(ctx, "HARRY potter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("expected insertion order [1 2], got [%s %s]", got[0].ID, got[1].ID)
	}

	none, err := store.FindAllByTitleContaining(ctx, "Emma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func TestMemoryStore_Authors(t *testing.T) {
	ctx := context.Background()
	store := seedStore()

	e, ok, err := store.FindFirstByAuthors(ctx, "Frank Herbert")
	if err != nil || !ok || e.ID != "3" {
		t.Errorf("expected entry 3, got %+v ok=%v err=%v", e, ok, err)
	}

	if _, ok, _ := store.FindFirstByAuthors(ctx, "frank herbert"); ok {
		t.Error("expected exact authors lookup to be case-sensitive")
	}

	got, err := store.FindAllByAuthorsContaining(ctx, "rowling")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
}

func TestMemoryStore_Put(t *testing.T) {
	ctx := context.Background()
	n := 0
	store := NewMemoryStore(WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))

	e, err := store.Put(ctx, Entry{Title: "Emma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != "gen-1" {
		t.Errorf("expected generated id gen-1, got %q", e.ID)
	}

	if _, err := store.Put(ctx, Entry{ID: "gen-1", Title: "Persuasion"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := store.Put(ctx, Entry{Title: "Bad", RatingsCount: -1}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}

	if got, ok := store.Get(ctx, "gen-1"); !ok || got.Title != "Emma" {
		t.Errorf("expected to get Emma, got %+v", got)
	}
	if c := store.Count(ctx); c != 1 {
		t.Errorf("expected count 1, got %d", c)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = store.Put(ctx, Entry{ID: fmt.Sprintf("%d-%d", id, j), Title: fmt.Sprintf("Book %d", j)})
				_, _ = store.FindAllByTitleContaining(ctx, "book")
			}
		}(i)
	}
	wg.Wait()

	if c := store.Count(ctx); c != 400 {
		t.Errorf("expected 400 entries, got %d", c)
	}
}

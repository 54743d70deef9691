// Package repository provides catalog storage for book lookups.
package repository

import (
	"context"

	"github.com/okian/booklookup/internal/domain/model"
)

// Entry is the record type held by catalog stores.
type Entry = model.CatalogEntry

// Store provides the lookups the service needs from the catalog.
type Store interface {
	// FindFirstByTitle returns the first entry whose title equals title exactly.
	FindFirstByTitle(ctx context.Context, title string) (Entry, bool, error)

	// FindAllByTitleContaining returns every entry whose title contains title,
	// ignoring case, in the store's natural order.
	FindAllByTitleContaining(ctx context.Context, title string) ([]Entry, error)

	// FindFirstByAuthors returns the first entry whose authors string equals authors exactly.
	FindFirstByAuthors(ctx context.Context, authors string) (Entry, bool, error)

	// FindAllByAuthorsContaining returns every entry whose authors contain
	// author, ignoring case, in the store's natural order.
	FindAllByAuthorsContaining(ctx context.Context, author string) ([]Entry, error)

	// Count returns the number of entries in the catalog.
	Count(ctx context.Context) int
}

// Writer adds entries to a catalog. Entries without an ID get one assigned.
type Writer interface {
	Put(ctx context.Context, e Entry) (Entry, error)
}

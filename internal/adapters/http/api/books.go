package api

import (
	"context"
	"net/http"
)

// BookDependencies defines the lookups behind the book routes.
type BookDependencies interface {
	BookByTitle(ctx context.Context, title string) (Entry, error)
	BooksByTitle(ctx context.Context, title string) ([]Entry, error)
	BookByAuthors(ctx context.Context, authors string) (Entry, error)
	BooksByAuthor(ctx context.Context, author string) ([]Entry, error)
}

// BooksHandler handles book lookup requests.
type BooksHandler struct {
	deps BookDependencies
}

// NewBooksHandler creates a new books handler.
func NewBooksHandler(deps BookDependencies) *BooksHandler {
	return &BooksHandler{deps: deps}
}

// HandleBookByTitle handles GET /book/get-by-title?title=.
func (h *BooksHandler) HandleBookByTitle(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "title", h.deps.BookByTitle)
}

// HandleBookByAuthors handles GET /book/get-by-author?authors=.
func (h *BooksHandler) HandleBookByAuthors(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "authors", h.deps.BookByAuthors)
}

// HandleBooksByTitle handles GET /books/get-title?title=.
func (h *BooksHandler) HandleBooksByTitle(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "title", h.deps.BooksByTitle)
}

// HandleBooksByAuthor handles GET /books/get-author?author=.
func (h *BooksHandler) HandleBooksByAuthor(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "author", h.deps.BooksByAuthor)
}

func (h *BooksHandler) one(w http.ResponseWriter, r *http.Request, param string, find func(context.Context, string) (Entry, error)) {
	q, ok := queryParam(w, r, param)
	if !ok {
		return
	}
	entry, err := find(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *BooksHandler) list(w http.ResponseWriter, r *http.Request, param string, find func(context.Context, string) ([]Entry, error)) {
	q, ok := queryParam(w, r, param)
	if !ok {
		return
	}
	entries, err := find(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

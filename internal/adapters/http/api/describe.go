package api

import (
	"context"
	"net/http"
)

// DescribeDependencies defines the description operations.
type DescribeDependencies interface {
	DescribeBook(ctx context.Context, title string) (string, error)
	DescribeAuthor(ctx context.Context, name string) (string, error)
}

// DescribeHandler handles description requests.
type DescribeHandler struct {
	deps DescribeDependencies
}

type descriptionResponse struct {
	Description string `json:"description"`
}

// NewDescribeHandler creates a new describe handler.
func NewDescribeHandler(deps DescribeDependencies) *DescribeHandler {
	return &DescribeHandler{deps: deps}
}

// HandleDescribeBook handles GET /ai/book/describe?title=.
func (h *DescribeHandler) HandleDescribeBook(w http.ResponseWriter, r *http.Request) {
	h.describe(w, r, "title", h.deps.DescribeBook)
}

// HandleDescribeAuthor handles GET /ai/author/describe?name=.
func (h *DescribeHandler) HandleDescribeAuthor(w http.ResponseWriter, r *http.Request) {
	h.describe(w, r, "name", h.deps.DescribeAuthor)
}

func (h *DescribeHandler) describe(w http.ResponseWriter, r *http.Request, param string, fn func(context.Context, string) (string, error)) {
	q, ok := queryParam(w, r, param)
	if !ok {
		return
	}
	text, err := fn(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptionResponse{Description: text})
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"

	service "github.com/okian/booklookup/internal/app"
	"github.com/okian/booklookup/internal/domain/model"
	"github.com/okian/booklookup/pkg/logger"
)

// Default HTTP settings.
const (
	defaultCORSOrigin      = "http://localhost:8501"
	defaultCORSMaxAge      = 300
	defaultDescribeLimit   = 30
	defaultDescribeWindow  = time.Minute
	describeRoutePrefix    = "/ai/"
	rootRedirectTarget     = "/stats"
	contentTypeJSONCharset = "application/json; charset=utf-8"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	BookDependencies
	DescribeDependencies
}

// Entry is the book shape returned by lookups.
type Entry = model.CatalogEntry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	booksHandler    *BooksHandler
	describeHandler *DescribeHandler

	corsOrigins    []string
	describeLimit  int
	describeWindow time.Duration
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithDescribeRateLimit caps description requests per client IP; a limit of
// zero disables the cap.
func WithDescribeRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.describeLimit = requests
		if window > 0 {
			s.describeWindow = window
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsFunc, opts ...Option) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(stats),
		booksHandler:    NewBooksHandler(deps),
		describeHandler: NewDescribeHandler(deps),
		corsOrigins:     []string{defaultCORSOrigin},
		describeLimit:   defaultDescribeLimit,
		describeWindow:  defaultDescribeWindow,
		logger:          logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	limit := s.describeLimiter()
	route := func(pattern, endpoint string, h http.Handler) {
		mux.Handle(pattern, instrument(h, endpoint, s.logger))
	}

	route("/healthz", "healthz", s.healthHandler)
	route("/stats", "stats", http.HandlerFunc(s.statsHandler.HandleStats))
	route("/book/get-by-title", "book_by_title", http.HandlerFunc(s.booksHandler.HandleBookByTitle))
	route("/books/get-title", "books_by_title", http.HandlerFunc(s.booksHandler.HandleBooksByTitle))
	route("/book/get-by-author", "book_by_author", http.HandlerFunc(s.booksHandler.HandleBookByAuthors))
	route("/books/get-author", "books_by_author", http.HandlerFunc(s.booksHandler.HandleBooksByAuthor))
	route(describeRoutePrefix+"book/describe", "describe_book", limit(http.HandlerFunc(s.describeHandler.HandleDescribeBook)))
	route(describeRoutePrefix+"author/describe", "describe_author", limit(http.HandlerFunc(s.describeHandler.HandleDescribeAuthor)))
	mux.HandleFunc("/", s.handleRoot)
}

// Handler returns the full API behind CORS.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         defaultCORSMaxAge,
	})(mux)
}

func (s *Server) describeLimiter() func(http.Handler) http.Handler {
	if s.describeLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(s.describeLimit, s.describeWindow)
}

// handleRoot redirects the bare root to /stats and 404s everything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, rootRedirectTarget, http.StatusFound)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSONCharset)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrDescriptionsDisabled):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		// The cause stays in the request log; clients only see the status text.
		if rec, ok := w.(*statusRecorder); ok {
			rec.cause = err
		}
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

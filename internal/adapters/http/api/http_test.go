package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/booklookup/internal/adapters/http/api"
	service "github.com/okian/booklookup/internal/app"
	"github.com/okian/booklookup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDeps struct {
	books     map[string]api.Entry
	lists     map[string][]api.Entry
	err       error
	described []string
}

func (m *mockDeps) BookByTitle(_ context.Context, title string) (api.Entry, error) {
	return m.find(title)
}

func (m *mockDeps) BookByAuthors(_ context.Context, authors string) (api.Entry, error) {
	return m.find(authors)
}

func (m *mockDeps) find(key string) (api.Entry, error) {
	if m.err != nil {
		return api.Entry{}, m.err
	}
	e, ok := m.books[key]
	if !ok {
		return api.Entry{}, service.ErrNotFound
	}
	return e, nil
}

func (m *mockDeps) BooksByTitle(_ context.Context, title string) ([]api.Entry, error) {
	return m.lists[title], m.err
}

func (m *mockDeps) BooksByAuthor(_ context.Context, author string) ([]api.Entry, error) {
	return m.lists[author], m.err
}

func (m *mockDeps) DescribeBook(_ context.Context, title string) (string, error) {
	m.described = append(m.described, title)
	return "brief of " + title, m.err
}

func (m *mockDeps) DescribeAuthor(_ context.Context, name string) (string, error) {
	m.described = append(m.described, name)
	return "profile of " + name, m.err
}

func newHandler(deps *mockDeps, opts ...api.Option) http.Handler {
	stats := func(context.Context) any { return map[string]any{"started": true} }
	return api.NewServer(deps, stats, opts...).Handler(context.Background())
}

func get(h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBookRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{
			books: map[string]api.Entry{
				"Dune":          {ID: "2", Title: "Dune", Authors: "Frank Herbert"},
				"Frank Herbert": {ID: "2", Title: "Dune", Authors: "Frank Herbert"},
			},
			lists: map[string][]api.Entry{
				"dune": {{ID: "1", Title: "Dune Messiah"}, {ID: "2", Title: "Dune"}},
			},
		}
		h := newHandler(deps)

		Convey("get-by-title returns the book", func() {
			rec := get(h, "/book/get-by-title?title=Dune")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var got api.Entry
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.ID, ShouldEqual, "2")
			So(got.Authors, ShouldEqual, "Frank Herbert")
		})

		Convey("unknown titles are 404", func() {
			rec := get(h, "/book/get-by-title?title=Neuromancer")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("blank parameters are 400", func() {
			So(get(h, "/book/get-by-title?title=%20%20").Code, ShouldEqual, http.StatusBadRequest)
			So(get(h, "/books/get-title").Code, ShouldEqual, http.StatusBadRequest)
			So(get(h, "/ai/author/describe?name=").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("get-by-author uses the authors parameter", func() {
			rec := get(h, "/book/get-by-author?authors=Frank+Herbert")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("list routes return arrays, empty rather than null", func() {
			rec := get(h, "/books/get-title?title=dune")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var got []api.Entry
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldHaveLength, 2)

			rec = get(h, "/books/get-author?author=nobody")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldStartWith, "[]")
		})

		Convey("storage failures are 500", func() {
			deps.err = errors.New("db down: connection refused on 10.0.0.5")
			rec := get(h, "/book/get-by-title?title=Dune")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(rec.Body.String(), ShouldNotContainSubstring, "db down")
			So(rec.Body.String(), ShouldContainSubstring, http.StatusText(http.StatusInternalServerError))
		})

		Convey("non-GET methods are 404", func() {
			req := httptest.NewRequest(http.MethodPost, "/book/get-by-title?title=Dune", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDescribeRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{}
		h := newHandler(deps)

		Convey("book descriptions are wrapped in a JSON object", func() {
			rec := get(h, "/ai/book/describe?title=Dune")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var got map[string]string
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got["description"], ShouldEqual, "brief of Dune")
		})

		Convey("author descriptions use the name parameter", func() {
			rec := get(h, "/ai/author/describe?name=Frank+Herbert")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.described, ShouldResemble, []string{"Frank Herbert"})
		})

		Convey("disabled descriptions are 503", func() {
			deps.err = service.ErrDescriptionsDisabled
			So(get(h, "/ai/author/describe?name=x").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Description routes are rate limited per client", t, func() {
		h := newHandler(&mockDeps{}, api.WithDescribeRateLimit(2, time.Minute))
		So(get(h, "/ai/author/describe?name=a").Code, ShouldEqual, http.StatusOK)
		So(get(h, "/ai/author/describe?name=a").Code, ShouldEqual, http.StatusOK)
		So(get(h, "/ai/author/describe?name=a").Code, ShouldEqual, http.StatusTooManyRequests)
		So(get(h, "/book/get-by-title?title=missing").Code, ShouldEqual, http.StatusNotFound)
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		h := newHandler(&mockDeps{})

		Convey("the root redirects to stats", func() {
			rec := get(h, "/")
			So(rec.Code, ShouldEqual, http.StatusFound)
			So(rec.Header().Get("Location"), ShouldEqual, "/stats")
		})

		Convey("unknown paths are 404", func() {
			So(get(h, "/nope").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("stats are JSON", func() {
			rec := get(h, "/stats")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("healthz serves Prometheus metrics", func() {
			rec := get(h, "/healthz")
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("CORS allows the configured origin only", t, func() {
		h := newHandler(&mockDeps{}, api.WithCORSOrigins("http://localhost:8501"))

		rec := get(h, "/stats", "Origin", "http://localhost:8501")
		So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:8501")

		rec = get(h, "/stats", "Origin", "http://evil.example")
		So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
	})
}

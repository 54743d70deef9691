package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/booklookup/internal/adapters/repository"
	service "github.com/okian/booklookup/internal/app"
	"github.com/okian/booklookup/internal/domain/model"
	"github.com/okian/booklookup/internal/events"
	"github.com/okian/booklookup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type recordingPipeline struct {
	mu       sync.Mutex
	views    []model.ViewEvent
	searches []model.SearchEvent
	started  bool
	stopped  bool
}

func (r *recordingPipeline) EmitSearch(_ context.Context, e model.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, e)
}

func (r *recordingPipeline) EmitView(_ context.Context, e model.ViewEvent) { //nolint:gocritic // hugeParam: matches interface
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, e)
}

func (r *recordingPipeline) Start(context.Context) error    { r.started = true; return nil }
func (r *recordingPipeline) Shutdown(context.Context) error { r.stopped = true; return nil }
func (r *recordingPipeline) Stats(context.Context) events.Stats {
	return events.Stats{Started: r.started, Shards: 2, QueueLengths: []int{0, 0}, Emitted: int64(len(r.views) + len(r.searches))}
}

type fakeDescriber struct {
	books   []model.CatalogEntry
	authors []string
}

func (f *fakeDescriber) DescribeBook(_ context.Context, e model.CatalogEntry) string { //nolint:gocritic // hugeParam: matches interface
	f.books = append(f.books, e)
	return "brief of " + e.Title
}

func (f *fakeDescriber) DescribeAuthor(_ context.Context, name string) string {
	f.authors = append(f.authors, name)
	return "profile of " + name
}

type failingStore struct{ repository.Store }

func (failingStore) FindFirstByTitle(context.Context, string) (model.CatalogEntry, bool, error) {
	return model.CatalogEntry{}, false, errors.New("db down")
}

func catalog() *repository.MemoryStore {
	return repository.NewMemoryStore(repository.WithEntries(
		model.CatalogEntry{ID: "1", Title: "Dune Messiah", Authors: "Frank Herbert"},
		model.CatalogEntry{ID: "2", Title: "Dune", Authors: "Frank Herbert", AverageRating: 4.25},
		model.CatalogEntry{ID: "3", Title: "Harry Potter and the Chamber of Secrets", Authors: "J.K. Rowling"},
		model.CatalogEntry{ID: "4", Title: "Harry Potter and the Sorcerer's Stone", Authors: "J.K. Rowling"},
	))
}

func TestServiceLookups(t *testing.T) {
	Convey("Given a started service over a small catalog", t, func() {
		ctx := context.Background()
		pipe := &recordingPipeline{}
		desc := &fakeDescriber{}
		svc := service.New(
			service.WithStore(catalog()),
			service.WithPipeline(pipe),
			service.WithDescriber(desc),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		So(pipe.started, ShouldBeTrue)

		Convey("An exact title wins and a view event is emitted", func() {
			got, err := svc.BookByTitle(ctx, "Dune")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, "2")
			So(pipe.views, ShouldHaveLength, 1)
			So(pipe.views[0].BookID, ShouldEqual, "2")
			So(pipe.views[0].AverageRating, ShouldEqual, 4.25)
		})

		Convey("A different-case title falls back to scoring and still finds the exact title", func() {
			got, err := svc.BookByTitle(ctx, "DUNE")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, "2")
		})

		Convey("Ties among substring matches go to the first candidate", func() {
			got, err := svc.BookByTitle(ctx, "harry potter")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, "3")
		})

		Convey("No candidates is not found and emits nothing", func() {
			_, err := svc.BookByTitle(ctx, "Neuromancer")
			So(err, ShouldEqual, service.ErrNotFound)
			So(pipe.views, ShouldBeEmpty)
		})

		Convey("Blank queries are rejected", func() {
			_, err := svc.BookByTitle(ctx, "   ")
			So(err, ShouldEqual, service.ErrInvalidQuery)
			_, err = svc.BooksByAuthor(ctx, "")
			So(err, ShouldEqual, service.ErrInvalidQuery)
		})

		Convey("Title searches list matches and emit a search event", func() {
			list, err := svc.BooksByTitle(ctx, "dune")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
			So(pipe.searches, ShouldHaveLength, 1)
			So(pipe.searches[0].SearchType, ShouldEqual, model.SearchTypeTitle)
			So(pipe.searches[0].ResultsCount, ShouldEqual, 2)
			So(pipe.searches[0].SearchQuery, ShouldEqual, "dune")
		})

		Convey("Empty searches still emit an event with zero results", func() {
			list, err := svc.BooksByAuthor(ctx, "Tolkien")
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
			So(pipe.searches[0].SearchType, ShouldEqual, model.SearchTypeAuthor)
			So(pipe.searches[0].ResultsCount, ShouldEqual, 0)
		})

		Convey("Author lookup is exact", func() {
			got, err := svc.BookByAuthors(ctx, "J.K. Rowling")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, "3")
			So(pipe.views, ShouldHaveLength, 1)

			_, err = svc.BookByAuthors(ctx, "j.k. rowling")
			So(err, ShouldEqual, service.ErrNotFound)
		})

		Convey("Book descriptions resolve the title first and emit no event", func() {
			out, err := svc.DescribeBook(ctx, "Dune")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "brief of Dune")
			So(pipe.views, ShouldBeEmpty)

			out, err = svc.DescribeBook(ctx, "Neuromancer")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, service.NoMatchDescription)
		})

		Convey("Author descriptions pass the name through", func() {
			out, err := svc.DescribeAuthor(ctx, "Frank Herbert")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "profile of Frank Herbert")
		})

		Convey("Stats report the catalog and pipeline", func() {
			_, _ = svc.BookByTitle(ctx, "Dune")
			stats := svc.GetStats(ctx)
			So(stats.Started, ShouldBeTrue)
			So(stats.CatalogSize, ShouldEqual, 4)
			So(stats.Workers, ShouldEqual, 2)
			So(stats.Emitted, ShouldEqual, 1)
			So(stats.Descriptions, ShouldEqual, "enabled")
		})
	})
}

func TestServiceErrors(t *testing.T) {
	Convey("Storage errors reach the caller", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithStore(failingStore{Store: catalog()}),
			service.WithPipeline(&recordingPipeline{}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		_, err := svc.BookByTitle(ctx, "Dune")
		So(err, ShouldNotBeNil)
		So(errors.Is(err, service.ErrNotFound), ShouldBeFalse)

		Convey("and descriptions are unavailable without a describer", func() {
			_, err := svc.DescribeAuthor(ctx, "x")
			So(err, ShouldEqual, service.ErrDescriptionsDisabled)
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service with default components", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("Stats before start report a stopped service", func() {
			So(svc.GetStats(ctx).Started, ShouldBeFalse)
		})

		Convey("Start and Stop are idempotent", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			_, err := svc.BookByTitle(ctx, "anything")
			So(err, ShouldEqual, service.ErrNotFound)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats(ctx).Started, ShouldBeFalse)
		})
	})
}

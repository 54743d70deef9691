package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/booklookup/pkg/logger"
)

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented route", t, func() {
		status := http.StatusOK
		h := instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			w.WriteHeader(http.StatusTeapot)
		}), "test", logger.Get())

		Convey("the first status written reaches the client", func() {
			status = http.StatusServiceUnavailable
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Error statuses are classified", t, func() {
		So(errorKind(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
		So(errorKind(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(errorKind(http.StatusTooManyRequests), ShouldEqual, "rate_limit")
		So(errorKind(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorKind(http.StatusBadRequest), ShouldEqual, "client_error")
		So(errorSeverity(http.StatusInternalServerError), ShouldEqual, "high")
		So(errorSeverity(http.StatusTooManyRequests), ShouldEqual, "medium")
		So(errorSeverity(http.StatusNotFound), ShouldEqual, "low")
	})

	Convey("Internal errors keep their cause out of the response", t, func() {
		cause := errors.New("pgx: relation books does not exist")
		rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
		writeServiceError(rec, cause)
		So(rec.status, ShouldEqual, http.StatusInternalServerError)
		So(rec.cause, ShouldEqual, cause)
		So(rec.ResponseWriter.(*httptest.ResponseRecorder).Body.String(), ShouldNotContainSubstring, "pgx")
	})
}

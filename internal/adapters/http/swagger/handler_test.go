package swagger_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/http/swagger"
)

func TestRegister(t *testing.T) {
	Convey("Given a mux with the docs routes registered", t, func() {
		mux := http.NewServeMux()
		swagger.Register(context.Background(), mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		Convey("When the docs page is fetched", func() {
			resp, err := http.Get(ts.URL + "/api-docs")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it serves the ReDoc viewer", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldStartWith, "text/html")

				body, err := io.ReadAll(resp.Body)
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
			})
		})

		Convey("When the spec is fetched", func() {
			resp, err := http.Get(ts.URL + "/openapi.yaml")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it serves the embedded OpenAPI document", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldStartWith, "application/yaml")

				body, err := io.ReadAll(resp.Body)
				So(err, ShouldBeNil)
				So(strings.Contains(string(body), "openapi:"), ShouldBeTrue)
				So(strings.Contains(string(body), "/leaderboard"), ShouldBeTrue)
			})
		})

		Convey("When Register is handed a nil mux", func() {
			So(func() { swagger.Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

package drawsim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/breakfast/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithOutput(os.Stderr))
}

// fakeServer answers the three endpoints the simulator calls. pick decides
// the recipe returned by the n-th quick draw (n starts at 0).
func fakeServer(odds []Odds, pick func(n int64) (int64, int)) *httptest.Server {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/api/draw/odds", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(odds)
	})
	mux.HandleFunc("/api/draw", func(w http.ResponseWriter, _ *http.Request) {
		id, status := pick(calls.Add(1) - 1)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(drawResponse{ID: id})
	})
	return httptest.NewServer(mux)
}

var twoRecipes = []Odds{
	{RecipeID: 1, Name: "清蒸鸡蛋", Rating: 4, Weight: 16, Probability: 0.8},
	{RecipeID: 2, Name: "燕麦粥", Rating: 2, Weight: 4, Probability: 0.2},
}

func TestRun(t *testing.T) {
	convey.Convey("Given a server whose picks follow the odds exactly", t, func() {
		srv := fakeServer(twoRecipes, func(n int64) (int64, int) {
			if n%5 == 4 {
				return 2, http.StatusOK
			}
			return 1, http.StatusOK
		})
		defer srv.Close()

		convey.Convey("When running the simulation", func() {
			out := filepath.Join(t.TempDir(), "reports", "sim.json")
			report, err := Run(context.Background(), Config{
				BaseURL:    srv.URL,
				Draws:      100,
				Workers:    1,
				Timeout:    5 * time.Second,
				OutputFile: out,
			})

			convey.Convey("Then the observed shares match", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Succeeded, convey.ShouldEqual, 100)
				convey.So(report.Within, convey.ShouldBeTrue)
				convey.So(report.Rows, convey.ShouldHaveLength, 2)
				convey.So(report.Rows[0].RecipeID, convey.ShouldEqual, 1)
				convey.So(report.Rows[0].Count, convey.ShouldEqual, 80)
				convey.So(report.ChiSquare, convey.ShouldAlmostEqual, 0, 1e-9)
			})

			convey.Convey("Then the report is written", func() {
				data, readErr := os.ReadFile(out)
				convey.So(readErr, convey.ShouldBeNil)
				var saved Report
				convey.So(json.Unmarshal(data, &saved), convey.ShouldBeNil)
				convey.So(saved.Succeeded, convey.ShouldEqual, 100)
			})
		})
	})

	convey.Convey("Given a server that always picks the same recipe", t, func() {
		srv := fakeServer(twoRecipes, func(int64) (int64, int) { return 1, http.StatusOK })
		defer srv.Close()

		convey.Convey("When running the simulation", func() {
			report, err := Run(context.Background(), Config{BaseURL: srv.URL, Draws: 50, Workers: 4, Timeout: 5 * time.Second})

			convey.Convey("Then the run is reported out of tolerance", func() {
				convey.So(errors.Is(err, ErrOutOfTolerance), convey.ShouldBeTrue)
				convey.So(report, convey.ShouldNotBeNil)
				convey.So(report.MaxDev, convey.ShouldAlmostEqual, 0.2, 1e-9)
				convey.So(report.Within, convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a server that throttles every other request", t, func() {
		srv := fakeServer(twoRecipes, func(n int64) (int64, int) {
			if n%2 == 1 {
				return 0, http.StatusTooManyRequests
			}
			if n%10 == 8 {
				return 2, http.StatusOK
			}
			return 1, http.StatusOK
		})
		defer srv.Close()

		convey.Convey("When running the simulation", func() {
			report, err := Run(context.Background(), Config{BaseURL: srv.URL, Draws: 20, Workers: 1, Timeout: 5 * time.Second})

			convey.Convey("Then throttled requests are counted apart", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Throttled, convey.ShouldEqual, 10)
				convey.So(report.Succeeded, convey.ShouldEqual, 10)
				convey.So(report.Failed, convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given a server that returns unknown recipes", t, func() {
		srv := fakeServer(twoRecipes, func(int64) (int64, int) { return 99, http.StatusOK })
		defer srv.Close()

		convey.Convey("Then the run fails the comparison", func() {
			report, err := Run(context.Background(), Config{BaseURL: srv.URL, Draws: 5, Workers: 1, Timeout: 5 * time.Second})
			convey.So(errors.Is(err, ErrOutOfTolerance), convey.ShouldBeTrue)
			convey.So(report.Unknown, convey.ShouldEqual, 5)
		})
	})

	convey.Convey("Given invalid input", t, func() {
		convey.Convey("When draws is zero", func() {
			_, err := Run(context.Background(), Config{BaseURL: "http://127.0.0.1:1"})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the service is down", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close()
			_, err := Run(context.Background(), Config{BaseURL: srv.URL, Draws: 1, Timeout: time.Second})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the catalog is empty", func() {
			srv := fakeServer(nil, func(int64) (int64, int) { return 1, http.StatusOK })
			defer srv.Close()
			_, err := Run(context.Background(), Config{BaseURL: srv.URL, Draws: 1, Timeout: time.Second})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

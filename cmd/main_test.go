package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/okian/breakfast/internal/adapters/http/api"
	"github.com/okian/breakfast/internal/config"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(os.Stderr))
}

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BREAKFAST_STORE__DRIVER", "memory")
	t.Setenv("BREAKFAST_TIMEZONE", "Asia/Shanghai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PERPLEXITY_API_KEY", "")
}

func TestBuildService(t *testing.T) {
	memoryEnv(t)

	convey.Convey("Given configuration from the environment", t, func() {
		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")

		convey.Convey("When building and starting the service", func() {
			svc, err := buildService(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the bundled catalog is loaded", func() {
				stats := svc.Stats(ctx)
				convey.So(stats.Started, convey.ShouldBeTrue)
				convey.So(stats.CatalogSize, convey.ShouldEqual, 13)
				convey.So(stats.Timezone, convey.ShouldEqual, "Asia/Shanghai")
				convey.So(stats.NotifyChannels, convey.ShouldBeEmpty)
			})

			convey.Convey("Then the HTTP API serves a draw for tomorrow", func() {
				h := api.NewServer(svc).Handler()
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/draw/tomorrow", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Mars/Olympus"
			_, err := buildService(ctx, cfg, logger.Nop())

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the seed file does not exist", func() {
			cfg.Store.SeedPath = "/nonexistent/recipes.yaml"
			_, err := buildService(ctx, cfg, logger.Nop())

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	memoryEnv(t)
	t.Setenv("BREAKFAST_METRICS__NAMESPACE", "kitchen")
	t.Setenv("BREAKFAST_METRICS__LABELS__ENV", "staging")

	convey.Convey("Given metrics settings from the environment", t, func() {
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the global metrics are set up from them", func() {
			metrics.Setup(metricsOptions(cfg)...)
			convey.Reset(func() { metrics.Setup() })
			metrics.RecordConfirmation()

			convey.Convey("Then series carry the configured namespace and labels", func() {
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "kitchen_draw_confirmations_total" {
						found = true
						convey.So(f.GetMetric()[0].GetLabel()[0].GetName(), convey.ShouldEqual, "env")
						convey.So(f.GetMetric()[0].GetLabel()[0].GetValue(), convey.ShouldEqual, "staging")
					}
				}
				convey.So(found, convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewAdvisor(t *testing.T) {
	memoryEnv(t)

	convey.Convey("Given a config without provider keys", t, func() {
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the advisor answers from built-in text only", func() {
			a := newAdvisor(cfg, logger.Nop())
			convey.So(a.Configured(), convey.ShouldBeFalse)
		})

		convey.Convey("When an OpenAI key is set", func() {
			cfg.AI.OpenAIAPIKey = "sk-test"

			convey.Convey("Then the advisor has a provider", func() {
				a := newAdvisor(cfg, logger.Nop())
				convey.So(a.Configured(), convey.ShouldBeTrue)
				convey.So(a.Providers(), convey.ShouldContain, "openai")
			})
		})
	})
}

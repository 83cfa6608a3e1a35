package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithRefreshInterval(time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				manager.confirmations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_confirmations_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, time.Second)
			})
		})

		Convey("When the same registry is reused", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then a second manager panics on duplicate registration", func() {
				So(func() { _ = NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestDrawEngineMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When draws are recorded by outcome", func() {
			before := testutil.ToFloat64(globalManager.draws.WithLabelValues("provisional"))
			RecordDraw("provisional")
			RecordDraw("provisional")

			Convey("Then the outcome counter grows", func() {
				So(testutil.ToFloat64(globalManager.draws.WithLabelValues("provisional")), ShouldEqual, before+2)
			})
		})

		Convey("When a rating update is recorded", func() {
			before := testutil.ToFloat64(globalManager.ratingUpdates)
			RecordRatingUpdate(5, 3.6)

			Convey("Then the update counter grows", func() {
				So(testutil.ToFloat64(globalManager.ratingUpdates), ShouldEqual, before+1)
			})
		})

		Convey("When the catalog size is updated", func() {
			UpdateCatalogSize(13)

			Convey("Then the gauge holds the value", func() {
				So(testutil.ToFloat64(globalManager.catalogSize), ShouldEqual, 13)
			})
		})

		Convey("When other collectors are exercised", func() {
			So(func() {
				RecordDrawError("confirm", "not_found")
				RecordConfirmation()
				RecordRecipeAdded("seed")
				RecordSelectionLatency(0.1)
				RecordStoreLatency("memory", "list_recipes", 0.2)
				RecordStoreError("sqlite", "confirm_draw")
				UpdateQueueSize(1)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordReminderScheduled()
				RecordReminderDuplicate()
				RecordNotification("email", "ok")
				RecordAdvisorRequest("openai", "help", "ok")
				RecordAdvisorLatency("openai", 120)
				UpdateBreakerState("advisor", 0)
				RecordHTTPRequest("draw", "GET", "200")
				RecordHTTPRequestDuration("draw", "GET", "200", 1)
				RecordErrorByComponent("queue", "closed")
				RecordErrorByEndpoint("rate", "POST", "not_found")
			}, ShouldNotPanic)
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	Convey("Given the system collector", t, func() {
		Convey("When sampling once", func() {
			CollectSystem()

			Convey("Then the goroutine gauge is positive", func() {
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the collector context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Convey("Then it returns the context error", func() {
				So(RunSystemCollector(ctx, time.Millisecond), ShouldEqual, context.Canceled)
			})
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordConfirmation()
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)

		Convey("Then only breakfast metrics are exported", func() {
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "breakfast_draw_"), ShouldBeTrue)
			}
		})
	})
}

package service_test

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/okian/breakfast/internal/adapters/repository"
	service "github.com/okian/breakfast/internal/app"
	"github.com/okian/breakfast/internal/catalog"
	"github.com/okian/breakfast/internal/domain/model"
)

func openSQLite(t *testing.T) repository.Store {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "breakfast.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return store
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service on SQLite with the bundled catalog", t, func() {
		drafts, err := catalog.Load("")
		So(err, ShouldBeNil)

		n := &stubNotifier{sent: make(chan any, 4)}
		store := openSQLite(t)
		svc := service.New(
			service.WithStore(store),
			service.WithCatalog(drafts),
			service.WithNotifier(n),
			service.WithLocation(shanghai),
			service.WithClock(fixedClock),
			service.WithReminder(true, 18, 0),
			service.WithWorkerCount(2),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When listing recipes", func() {
			recipes, err := svc.Recipes(ctx)

			Convey("Then the whole catalog is present", func() {
				So(err, ShouldBeNil)
				So(recipes, ShouldHaveLength, len(drafts))
				So(svc.Stats(ctx).CatalogSize, ShouldEqual, len(drafts))
			})
		})

		Convey("When another service starts on the same store", func() {
			other := service.New(service.WithStore(store), service.WithCatalog(drafts))
			So(other.Start(ctx), ShouldBeNil)

			Convey("Then the catalog is not seeded twice", func() {
				So(svc.Stats(ctx).CatalogSize, ShouldEqual, len(drafts))
			})
		})

		Convey("When drawing, confirming and rating end-to-end", func() {
			tomorrow := svc.Tomorrow()
			d, err := svc.Draw(ctx, tomorrow)
			So(err, ShouldBeNil)

			_, err = svc.Confirm(ctx, tomorrow, model.RecipeID(d.ID))
			So(err, ShouldBeNil)

			res, err := svc.Rate(ctx, model.RecipeID(d.ID), 1)
			So(err, ShouldBeNil)

			Convey("Then the ledger holds one confirmed record", func() {
				h, err := svc.History(ctx, 10)
				So(err, ShouldBeNil)
				So(h, ShouldHaveLength, 1)
				So(h[0].Confirmed, ShouldBeTrue)
				So(h[0].RecipeID, ShouldEqual, d.ID)
				So(h[0].DrawDate, ShouldEqual, tomorrow.String())
			})

			Convey("And the rating and draw count are persisted", func() {
				So(res.NewRating, ShouldAlmostEqual, 2.4, 1e-9)
				r, err := svc.Recipe(ctx, model.RecipeID(d.ID))
				So(err, ShouldBeNil)
				So(r.Rating, ShouldAlmostEqual, 2.4, 1e-9)
				So(r.TimesDrawn, ShouldEqual, 1)
			})
		})

		Convey("When confirming the same date concurrently", func() {
			tomorrow := svc.Tomorrow()
			var wg sync.WaitGroup
			for i := 1; i <= 5; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					_, _ = svc.Confirm(ctx, tomorrow, model.RecipeID(id))
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one record survives for the date", func() {
				h, err := svc.History(ctx, 10)
				So(err, ShouldBeNil)
				So(h, ShouldHaveLength, 1)
				So(h[0].Confirmed, ShouldBeTrue)

				conf, err := svc.Confirmed(ctx, tomorrow)
				So(err, ShouldBeNil)
				So(conf.Recipe.ID, ShouldEqual, h[0].RecipeID)
			})
		})

		Convey("When the daily scheduler fires", func() {
			fired := make(chan time.Time, 1)
			fired <- fixedClock()
			sched := svc.ReminderScheduler()
			So(sched, ShouldNotBeNil)
			sched.SetAfter(func(time.Duration) <-chan time.Time { return fired })

			runCtx, stop := context.WithCancel(ctx)
			defer stop()
			go func() { _ = svc.ReminderPool().Serve(runCtx) }()
			go func() { _ = sched.Serve(runCtx) }()

			Convey("Then tomorrow's reminder is delivered by the workers", func() {
				select {
				case <-n.sent:
				case <-time.After(5 * time.Second):
					t.Fatal("reminder was not delivered")
				}
				msgs := n.messages()
				So(msgs, ShouldHaveLength, 1)
				So(msgs[0].Date.String(), ShouldEqual, "2025-06-02")
				So(msgs[0].Recipe, ShouldBeNil)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a service on SQLite", t, func() {
		svc := service.New(
			service.WithStore(openSQLite(t)),
			service.WithCatalog(testCatalog()),
			service.WithAdvisor(&stubAdvisor{}),
		)
		defer svc.Stop()

		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When rating one recipe from many goroutines", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.Rate(ctx, 1, 5)
				}()
			}
			wg.Wait()

			Convey("Then no update is lost", func() {
				r, err := svc.Recipe(ctx, 1)
				So(err, ShouldBeNil)
				want := model.DefaultRating
				for i := 0; i < 10; i++ {
					want = math.Round((want*0.7+5*0.3)*100) / 100
				}
				So(r.Rating, ShouldAlmostEqual, want, 1e-9)
			})
		})

		Convey("When generating the same dish concurrently", func() {
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = map[int64]struct{}{}
			)
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					added, err := svc.GenerateRecipe(ctx, "番茄炒蛋")
					if err != nil {
						return
					}
					mu.Lock()
					ids[added.RecipeID] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			Convey("Then each stored recipe came from one advisor call", func() {
				stats := svc.Stats(ctx)
				So(len(ids), ShouldBeGreaterThan, 0)
				So(stats.CatalogSize, ShouldEqual, 3+len(ids))
			})
		})
	})
}

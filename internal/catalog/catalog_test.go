package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/breakfast/internal/adapters/repository"
	"github.com/okian/breakfast/internal/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given the embedded catalog", t, func() {
		drafts, err := catalog.Load("")

		Convey("Then all thirteen recipes are decoded", func() {
			So(err, ShouldBeNil)
			So(drafts, ShouldHaveLength, 13)

			egg := drafts[0]
			So(egg.Name, ShouldEqual, "清蒸鸡蛋")
			So(egg.NameEn, ShouldEqual, "Steamed Egg")
			So(egg.Source.Likes, ShouldEqual, 11000)
			So(egg.Ingredients, ShouldHaveLength, 3)
			So(egg.Ingredients[2].Quantity, ShouldEqual, 0.5)
			So(egg.Ingredients[1].Notes, ShouldEqual, "约45ml")
			So(egg.Instructions, ShouldHaveLength, 4)
			So(egg.Instructions[3].Number, ShouldEqual, 4)
			So(egg.Nutrition.Carbohydrate, ShouldEqual, 1.1)
		})

		Convey("Then every recipe has steps and a difficulty in range", func() {
			for _, d := range drafts {
				So(d.Instructions, ShouldNotBeEmpty)
				So(d.Difficulty, ShouldBeBetweenOrEqual, 1, 3)
			}
		})
	})

	Convey("Given a catalog file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		data := []byte("recipes:\n  - name: 番茄炒蛋\n    difficulty: 9\n    steps: [切番茄, 炒蛋]\n")
		So(os.WriteFile(path, data, 0o600), ShouldBeNil)

		Convey("When loaded", func() {
			drafts, err := catalog.Load(path)

			Convey("Then drafts are normalized", func() {
				So(err, ShouldBeNil)
				So(drafts, ShouldHaveLength, 1)
				So(drafts[0].Difficulty, ShouldEqual, 3)
				So(drafts[0].Instructions[1].Text, ShouldEqual, "炒蛋")
			})
		})
	})

	Convey("Given malformed input", t, func() {
		Convey("Then an empty catalog is rejected", func() {
			_, err := catalog.Parse([]byte("recipes: []\n"))
			So(errors.Is(err, catalog.ErrNoRecipes), ShouldBeTrue)
		})

		Convey("Then a nameless recipe is rejected", func() {
			_, err := catalog.Parse([]byte("recipes:\n  - category: 饮品\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Then a missing file is reported", func() {
			_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}

func TestSeed(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		drafts, err := catalog.Load("")
		So(err, ShouldBeNil)

		Convey("When seeding", func() {
			n, err := catalog.Seed(ctx, store, drafts)

			Convey("Then every recipe is added with the default rating", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 13)

				recipes, err := store.ListRecipes(ctx)
				So(err, ShouldBeNil)
				So(recipes, ShouldHaveLength, 13)
				for _, r := range recipes {
					So(r.Rating, ShouldEqual, 3.0)
					So(r.DrawCount, ShouldEqual, 0)
				}
			})

			Convey("Then seeding again is a no-op", func() {
				n, err := catalog.Seed(ctx, store, drafts)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				count, err := store.CountRecipes(ctx)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 13)
			})
		})
	})
}

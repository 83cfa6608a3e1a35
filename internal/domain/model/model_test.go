package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/breakfast/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDate(t *testing.T) {
	convey.Convey("Given calendar dates", t, func() {
		convey.Convey("When parsing a valid date", func() {
			d, err := model.ParseDate("2025-06-01")

			convey.Convey("Then it round-trips through String", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(d.String(), convey.ShouldEqual, "2025-06-01")
			})
		})

		convey.Convey("When parsing garbage", func() {
			_, err := model.ParseDate("06/01/2025")

			convey.Convey("Then it wraps ErrInvalidDate", func() {
				convey.So(errors.Is(err, model.ErrInvalidDate), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When adding days across a month boundary", func() {
			d := model.MustParseDate("2025-02-28").AddDays(1)

			convey.Convey("Then the month rolls over", func() {
				convey.So(d.String(), convey.ShouldEqual, "2025-03-01")
			})
		})

		convey.Convey("When computing tomorrow in a zone ahead of UTC", func() {
			shanghai := time.FixedZone("CST", 8*60*60)
			now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC) // 04:00 on June 2nd in Shanghai

			convey.Convey("Then the local calendar day is used", func() {
				convey.So(model.Tomorrow(now, shanghai).String(), convey.ShouldEqual, "2025-06-03")
				convey.So(model.Tomorrow(now, nil).String(), convey.ShouldEqual, "2025-06-02")
			})
		})

		convey.Convey("When comparing dates", func() {
			a := model.MustParseDate("2025-06-01")
			b := model.MustParseDate("2025-06-09")

			convey.So(a.Before(b), convey.ShouldBeTrue)
			convey.So(b.Before(a), convey.ShouldBeFalse)
			convey.So(model.Date{}.IsZero(), convey.ShouldBeTrue)
		})

		convey.Convey("When unmarshalling text", func() {
			var d model.Date
			err := d.UnmarshalText([]byte("2025-12-31"))

			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldResemble, model.Date{Year: 2025, Month: time.December, Day: 31})
		})
	})
}

func TestRecipe(t *testing.T) {
	convey.Convey("Given a recipe", t, func() {
		r := model.Recipe{
			ID:   1,
			Name: "清蒸鸡蛋",
			Instructions: []model.InstructionStep{
				{Number: 1, Text: "鸡蛋打入碗中"},
				{Number: 2, Text: "过筛去泡沫"},
			},
		}

		convey.Convey("When the rating is unset", func() {
			convey.Convey("Then the default rating applies", func() {
				convey.So(r.EffectiveRating(), convey.ShouldEqual, model.DefaultRating)
			})
		})

		convey.Convey("When looking up steps", func() {
			step, ok := r.Step(2)
			_, missing := r.Step(9)

			convey.So(ok, convey.ShouldBeTrue)
			convey.So(step.Text, convey.ShouldEqual, "过筛去泡沫")
			convey.So(missing, convey.ShouldBeFalse)
		})
	})
}

func TestRecipeDraftNormalize(t *testing.T) {
	convey.Convey("Given a draft from an untrusted source", t, func() {
		d := model.RecipeDraft{
			Name:         "番茄炒蛋",
			Difficulty:   7,
			CookingTime:  -5,
			Instructions: []model.InstructionStep{{Text: "切番茄"}, {Text: "炒蛋"}},
		}

		convey.Convey("When normalized", func() {
			d.Normalize()

			convey.Convey("Then fields are brought into range", func() {
				convey.So(d.Difficulty, convey.ShouldEqual, 3)
				convey.So(d.CookingTime, convey.ShouldEqual, 0)
				convey.So(d.Instructions[0].Number, convey.ShouldEqual, 1)
				convey.So(d.Instructions[1].Number, convey.ShouldEqual, 2)
			})
		})
	})
}

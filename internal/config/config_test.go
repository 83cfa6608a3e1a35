package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/breakfast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given default configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then defaults describe a local SQLite service", func() {
			convey.So(cfg.Server.Addr, convey.ShouldEqual, ":5000")
			convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Store.Seed, convey.ShouldBeTrue)
			convey.So(cfg.Draw.RecordProvisional, convey.ShouldBeTrue)
			convey.So(cfg.Reminder.At, convey.ShouldEqual, "18:00")
			convey.So(cfg.Timezone, convey.ShouldEqual, "Asia/Shanghai")
			convey.So(cfg.AI.PerplexityModel, convey.ShouldEqual, "sonar-pro")
			convey.So(cfg.AI.VisionModel, convey.ShouldEqual, "gpt-4o")
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the reminder time parses", func() {
			h, m, err := cfg.ReminderTime()
			convey.So(err, convey.ShouldBeNil)
			convey.So(h, convey.ShouldEqual, 18)
			convey.So(m, convey.ShouldEqual, 0)
		})

		convey.Convey("When the timezone is an IANA name", func() {
			cfg.Timezone = "Asia/Shanghai"
			loc, err := cfg.Location()

			convey.So(err, convey.ShouldBeNil)
			_, offset := time.Date(2025, 6, 1, 0, 0, 0, 0, loc).Zone()
			convey.So(offset, convey.ShouldEqual, 8*60*60)
		})
	})
}

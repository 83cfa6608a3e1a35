package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/breakfast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

// isolate clears every variable Load reads for the duration of the test.
func isolate(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] != '=' {
				continue
			}
			name := kv[:i]
			if len(name) > len(config.EnvPrefix) && name[:len(config.EnvPrefix)] == config.EnvPrefix {
				t.Setenv(name, "")
				_ = os.Unsetenv(name)
			}
			break
		}
	}
	for _, name := range []string{
		"PERPLEXITY_API_KEY", "OPENAI_API_KEY", "SMTP_SERVER", "SMTP_PORT", "SMTP_EMAIL",
		"SMTP_PASSWORD", "NOTIFICATION_EMAIL", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
		"TWILIO_WHATSAPP_FROM", "WHATSAPP_TO", "NOTIFICATION_TIME", "TIMEZONE", "PORT",
	} {
		t.Setenv(name, "")
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		isolate(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":5000")
				convey.So(cfg.Server.HistoryLimit, convey.ShouldEqual, 30)
				convey.So(cfg.AI.OpenAIAPIKey, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("BREAKFAST_LOG_LEVEL", "debug")
			t.Setenv("BREAKFAST_SERVER__ADDR", ":8080")
			t.Setenv("BREAKFAST_SERVER__READ_TIMEOUT", "3s")
			t.Setenv("BREAKFAST_SERVER__CORS_ORIGINS", "http://localhost:3000,https://breakfast.example")
			t.Setenv("BREAKFAST_STORE__DRIVER", "memory")
			t.Setenv("BREAKFAST_DRAW__SEED", "42")
			t.Setenv("BREAKFAST_REMINDER__AT", "07:30")

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested keys override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Server.ReadTimeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.Server.CORSOrigins, convey.ShouldResemble,
					[]string{"http://localhost:3000", "https://breakfast.example"})
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
				convey.So(cfg.Draw.Seed, convey.ShouldEqual, int64(42))
				convey.So(cfg.Reminder.At, convey.ShouldEqual, "07:30")
			})
		})

		convey.Convey("When metrics are shaped through the environment", func() {
			t.Setenv("BREAKFAST_METRICS__NAMESPACE", "kitchen")
			t.Setenv("BREAKFAST_METRICS__BUCKETS", "0.05, 0.5,5")
			t.Setenv("BREAKFAST_METRICS__LABELS__ENV", "staging")

			cfg, err := config.Load(ctx)

			convey.Convey("Then buckets are parsed from the comma list", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "kitchen")
				convey.So(cfg.Metrics.Subsystem, convey.ShouldEqual, "draw")
				convey.So(cfg.Metrics.Buckets, convey.ShouldResemble, []float64{0.05, 0.5, 5})
				convey.So(cfg.Metrics.Labels, convey.ShouldResemble, map[string]string{"env": "staging"})
			})
		})

		convey.Convey("When metric buckets are out of order", func() {
			t.Setenv("BREAKFAST_METRICS__BUCKETS", "5,1")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When only the legacy .env names are set", func() {
			t.Setenv("OPENAI_API_KEY", "sk-legacy")
			t.Setenv("SMTP_PORT", "465")
			t.Setenv("WHATSAPP_TO", "whatsapp:+8613800000000")
			t.Setenv("NOTIFICATION_TIME", "07:45")
			t.Setenv("PORT", "8000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they are picked up", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AI.OpenAIAPIKey, convey.ShouldEqual, "sk-legacy")
				convey.So(cfg.Notify.SMTP.Port, convey.ShouldEqual, 465)
				convey.So(cfg.Notify.WhatsApp.To, convey.ShouldEqual, "whatsapp:+8613800000000")
				convey.So(cfg.Reminder.At, convey.ShouldEqual, "07:45")
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8000")
			})

			convey.Convey("Then a prefixed variable still wins", func() {
				t.Setenv("BREAKFAST_AI__OPENAI_API_KEY", "sk-new")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AI.OpenAIAPIKey, convey.ShouldEqual, "sk-new")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(t.TempDir(), "breakfast.yaml")
			yaml := []byte(`
timezone: Europe/Berlin
store:
  driver: postgres
  dsn: postgres://breakfast@localhost/breakfast
reminder:
  enabled: false
`)
			convey.So(os.WriteFile(path, yaml, 0o600), convey.ShouldBeNil)
			t.Setenv("BREAKFAST_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Berlin")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Reminder.Enabled, convey.ShouldBeFalse)
				convey.So(cfg.Reminder.Workers, convey.ShouldEqual, 2)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		ctx := context.Background()
		isolate(t)

		convey.Convey("When the driver is unknown", func() {
			t.Setenv("BREAKFAST_STORE__DRIVER", "mongodb")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When postgres has no DSN", func() {
			t.Setenv("BREAKFAST_STORE__DRIVER", "postgres")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the reminder time is malformed", func() {
			t.Setenv("BREAKFAST_REMINDER__AT", "8pm")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the timezone does not exist", func() {
			t.Setenv("BREAKFAST_TIMEZONE", "Mars/Olympus")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the config file is missing", func() {
			t.Setenv("BREAKFAST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

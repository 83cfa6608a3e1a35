// Package config defines service configuration and how it is loaded.
//
// Conventions:
// - New returns a Config filled with defaults.
// - Load layers a YAML file and BREAKFAST_* environment variables on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: json or text.
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`

	// Timezone is the IANA zone that decides what "tomorrow" is.
	Timezone string `koanf:"timezone" validate:"required"`

	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Draw     DrawConfig     `koanf:"draw"`
	Reminder ReminderConfig `koanf:"reminder"`
	AI       AIConfig       `koanf:"ai"`
	Notify   NotifyConfig   `koanf:"notify"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables limiting.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`

	// HistoryLimit is the default and MaxHistoryLimit the cap for
	// GET /api/history?limit.
	HistoryLimit    int `koanf:"history_limit" validate:"gt=0"`
	MaxHistoryLimit int `koanf:"max_history_limit" validate:"gtefield=HistoryLimit"`
}

// StoreConfig selects and tunes the recipe store.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory sqlite postgres"`

	// Path is the SQLite database file; ":memory:" keeps it in RAM.
	Path string `koanf:"path" validate:"required_if=Driver sqlite"`

	// DSN is the Postgres connection string.
	DSN string `koanf:"dsn" validate:"required_if=Driver postgres"`

	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	DebugSQL        bool          `koanf:"debug_sql"`

	// Seed loads the catalog into an empty store at start. SeedPath replaces
	// the built-in catalog.
	Seed     bool   `koanf:"seed"`
	SeedPath string `koanf:"seed_path"`
}

// DrawConfig tunes the weighted draw.
type DrawConfig struct {
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64 `koanf:"seed"`

	// RecordProvisional keeps unconfirmed picks in the history.
	RecordProvisional bool `koanf:"record_provisional"`
}

// ReminderConfig schedules the evening reminder about tomorrow's breakfast.
type ReminderConfig struct {
	Enabled bool `koanf:"enabled"`

	// At is the local send time, HH:MM in Config.Timezone.
	At string `koanf:"at" validate:"required"`

	QueueSize  int           `koanf:"queue_size" validate:"gt=0"`
	Workers    int           `koanf:"workers" validate:"gt=0"`
	JobTimeout time.Duration `koanf:"job_timeout" validate:"gt=0"`
}

// AIConfig configures the cooking advisor.
type AIConfig struct {
	PerplexityAPIKey string `koanf:"perplexity_api_key"`
	PerplexityURL    string `koanf:"perplexity_url" validate:"omitempty,url"`
	PerplexityModel  string `koanf:"perplexity_model"`

	OpenAIAPIKey string `koanf:"openai_api_key"`
	OpenAIURL    string `koanf:"openai_url" validate:"omitempty,url"`
	OpenAIModel  string `koanf:"openai_model"`
	VisionModel  string `koanf:"vision_model"`

	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gt=0"`
	BreakerFailures   uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// NotifyConfig holds reminder channel credentials. A channel with missing
// settings is skipped.
type NotifyConfig struct {
	SMTP     SMTPConfig     `koanf:"smtp"`
	WhatsApp WhatsAppConfig `koanf:"whatsapp"`
}

// SMTPConfig configures email reminders.
type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port" validate:"gte=0,lte=65535"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from" validate:"omitempty,email"`
	To       string        `koanf:"to"`
	StartTLS bool          `koanf:"starttls"`
	Timeout  time.Duration `koanf:"timeout"`
}

// WhatsAppConfig configures Twilio WhatsApp reminders.
type WhatsAppConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	From       string `koanf:"from"`
	To         string `koanf:"to"`
	BaseURL    string `koanf:"base_url" validate:"omitempty,url"`
}

// MetricsConfig shapes the exported Prometheus series.
type MetricsConfig struct {
	Namespace string `koanf:"namespace" validate:"required"`
	Subsystem string `koanf:"subsystem"`
	// Buckets replaces the latency histogram buckets; must be increasing.
	Buckets []float64 `koanf:"buckets" validate:"omitempty,dive,gt=0"`
	// Labels are attached to every series as constant labels.
	Labels          map[string]string `koanf:"labels"`
	RefreshInterval time.Duration     `koanf:"refresh_interval" validate:"gte=0"`
}

// New returns a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Timezone:  "Asia/Shanghai",
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
			HistoryLimit:    30,
			MaxHistoryLimit: 365,
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			Path:            "breakfast.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Seed:            true,
		},
		Draw: DrawConfig{
			RecordProvisional: true,
		},
		Reminder: ReminderConfig{
			Enabled:    true,
			At:         "18:00",
			QueueSize:  16,
			Workers:    2,
			JobTimeout: 2 * time.Minute,
		},
		AI: AIConfig{
			PerplexityURL:     "https://api.perplexity.ai",
			PerplexityModel:   "sonar-pro",
			OpenAIURL:         "https://api.openai.com/v1",
			OpenAIModel:       "gpt-4o-mini",
			VisionModel:       "gpt-4o",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
			BreakerFailures:   3,
			BreakerTimeout:    time.Minute,
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Host:     "smtp.gmail.com",
				Port:     587,
				StartTLS: true,
				Timeout:  30 * time.Second,
			},
			WhatsApp: WhatsAppConfig{
				BaseURL: "https://api.twilio.com",
			},
		},
		Metrics: MetricsConfig{
			Namespace:       "breakfast",
			Subsystem:       "draw",
			RefreshInterval: 10 * time.Second,
		},
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ReminderTime returns the hour and minute of Reminder.At.
func (c *Config) ReminderTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.Reminder.At)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

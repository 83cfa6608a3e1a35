package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BREAKFAST_"

// legacyEnv maps the unprefixed variable names of existing .env files to
// config keys. Prefixed variables win.
var legacyEnv = map[string]string{
	"PERPLEXITY_API_KEY":   "ai.perplexity_api_key",
	"OPENAI_API_KEY":       "ai.openai_api_key",
	"SMTP_SERVER":          "notify.smtp.host",
	"SMTP_PORT":            "notify.smtp.port",
	"SMTP_EMAIL":           "notify.smtp.from",
	"SMTP_PASSWORD":        "notify.smtp.password",
	"NOTIFICATION_EMAIL":   "notify.smtp.to",
	"TWILIO_ACCOUNT_SID":   "notify.whatsapp.account_sid",
	"TWILIO_AUTH_TOKEN":    "notify.whatsapp.auth_token",
	"TWILIO_WHATSAPP_FROM": "notify.whatsapp.from",
	"WHATSAPP_TO":          "notify.whatsapp.to",
	"NOTIFICATION_TIME":    "reminder.at",
	"TIMEZONE":             "timezone",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. legacy unprefixed variables (OPENAI_API_KEY, SMTP_SERVER, PORT, ...)
//  3. file (YAML) if BREAKFAST_CONFIG is set
//  4. env (prefix BREAKFAST_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, name, err)
			}
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		if err := k.Set("server.addr", ":"+port); err != nil {
			return nil, fmt.Errorf("%w: PORT: %w", ErrLoadConfig, err)
		}
	}

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BREAKFAST_STORE__DRIVER -> store.driver, BREAKFAST_LOG_LEVEL -> log_level
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the values that need parsing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %q", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	if _, _, err := c.ReminderTime(); err != nil {
		return fmt.Errorf("%w: reminder.at %q must be HH:MM", ErrInvalidConfig, c.Reminder.At)
	}
	if !sort.Float64sAreSorted(c.Metrics.Buckets) {
		return fmt.Errorf("%w: metrics.buckets must be increasing", ErrInvalidConfig)
	}
	return nil
}

// listKeys are slice fields that env vars set as comma-separated strings.
var listKeys = []string{
	"server.cors_origins",
	"metrics.buckets",
}

// splitLists turns comma-separated string values of listKeys into slices.
// Values already loaded as lists from YAML are left alone.
func splitLists(k *koanf.Koanf) error {
	for _, key := range listKeys {
		str, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(str, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(key, out); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, key, err)
		}
	}
	return nil
}

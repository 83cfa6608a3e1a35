package repository

import (
	"time"

	"github.com/okian/breakfast/pkg/logger"
)

type settings struct {
	now          func() time.Time
	log          logger.Logger
	maxOpenConns int
	maxIdleConns int
	connLifetime time.Duration
	debugSQL     bool
}

func defaultSettings() settings {
	return settings{
		now:          time.Now,
		log:          logger.Default("repository"),
		maxOpenConns: 10,
		maxIdleConns: 5,
		connLifetime: 30 * time.Minute,
	}
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithClock overrides the clock used for created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPool tunes the connection pool of SQL-backed stores.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(s *settings) {
		if maxOpen > 0 {
			s.maxOpenConns = maxOpen
		}
		if maxIdle >= 0 {
			s.maxIdleConns = maxIdle
		}
		if lifetime > 0 {
			s.connLifetime = lifetime
		}
	}
}

// WithDebugSQL logs every statement issued by the Postgres store.
func WithDebugSQL(enabled bool) Option {
	return func(s *settings) {
		s.debugSQL = enabled
	}
}

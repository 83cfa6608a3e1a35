package repository

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a store implementation.
type Config struct {
	Driver string // memory, sqlite or postgres
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// Open creates the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", driverMemory:
		return NewMemoryStore(opts...), nil
	case driverSQLite:
		return NewSQLiteStore(ctx, cfg.Path, opts...)
	case driverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

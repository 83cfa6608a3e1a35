package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqliteMigration is one versioned schema change.
type sqliteMigration struct {
	Version int
	Name    string
	SQL     string
}

// sqliteMigrations is the ordered list of schema changes.
var sqliteMigrations = []sqliteMigration{
	{
		Version: 1,
		Name:    "catalog_and_ledger",
		SQL: `
			CREATE TABLE IF NOT EXISTS recipes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipe_name TEXT NOT NULL,
				recipe_name_en TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				difficulty INTEGER NOT NULL DEFAULT 1,
				cooking_time INTEGER NOT NULL DEFAULT 0,
				source_article TEXT NOT NULL DEFAULT '',
				source_author TEXT NOT NULL DEFAULT '',
				source_link TEXT NOT NULL DEFAULT '',
				thumbnail_url TEXT NOT NULL DEFAULT '',
				publish_date TEXT NOT NULL DEFAULT '',
				likes_count INTEGER NOT NULL DEFAULT 0,
				user_rating REAL DEFAULT 3.0,
				times_drawn INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS ingredients (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipe_id INTEGER NOT NULL,
				ingredient_name TEXT NOT NULL,
				quantity REAL NOT NULL DEFAULT 0,
				unit TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_ingredients_recipe ON ingredients(recipe_id);

			CREATE TABLE IF NOT EXISTS instructions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipe_id INTEGER NOT NULL,
				step_number INTEGER NOT NULL,
				instruction TEXT NOT NULL,
				tips TEXT NOT NULL DEFAULT '',
				FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_instructions_recipe ON instructions(recipe_id, step_number);

			CREATE TABLE IF NOT EXISTS nutrition (
				recipe_id INTEGER PRIMARY KEY,
				calories REAL NOT NULL DEFAULT 0,
				protein REAL NOT NULL DEFAULT 0,
				carbohydrate REAL NOT NULL DEFAULT 0,
				fat REAL NOT NULL DEFAULT 0,
				fiber REAL NOT NULL DEFAULT 0,
				FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
			);

			CREATE TABLE IF NOT EXISTS draw_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipe_id INTEGER NOT NULL,
				draw_date TEXT NOT NULL,
				confirmed INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				FOREIGN KEY(recipe_id) REFERENCES recipes(id)
			);
			CREATE INDEX IF NOT EXISTS idx_draw_history_date ON draw_history(draw_date DESC);
		`,
	},
	{
		Version: 2,
		Name:    "one_confirmed_per_date",
		SQL: `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_draw_history_confirmed
				ON draw_history(draw_date) WHERE confirmed = 1;
		`,
	},
}

// sqliteMigrator applies sqliteMigrations and tracks them in schema_versions.
type sqliteMigrator struct {
	db *sql.DB
}

func (m *sqliteMigrator) run(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_versions table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, mig := range sqliteMigrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}

func (m *sqliteMigrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_versions ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions[v] = true
	}
	return versions, rows.Err()
}

func (m *sqliteMigrator) apply(ctx context.Context, mig sqliteMigration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("execute migration %d (%s): %w", mig.Version, mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
		mig.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", mig.Version, err)
	}
	return tx.Commit()
}

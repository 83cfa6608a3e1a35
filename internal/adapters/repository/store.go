// Package repository holds the recipe catalog and the day-keyed draw ledger.
//
// Three implementations share one contract: an in-memory store for tests
// and demos, SQLite for a single-node deployment and Postgres for shared
// deployments. Every implementation makes ConfirmDraw atomic per date and
// UpdateRating a locked read-modify-write.
package repository

import (
	"context"

	"github.com/okian/breakfast/internal/domain/model"
)

// Store provides read/write access to recipes and draw records.
type Store interface {
	// ListRecipes returns every recipe without its children, ordered by
	// rating desc then id asc.
	ListRecipes(ctx context.Context) ([]model.Recipe, error)
	// GetRecipe returns one recipe with ingredients, steps and nutrition.
	// Returns ErrNotFound if the id is unknown.
	GetRecipe(ctx context.Context, id model.RecipeID) (model.Recipe, error)
	// AddRecipe stores a new recipe with the default rating and zero draws.
	AddRecipe(ctx context.Context, draft model.RecipeDraft) (model.Recipe, error)
	// CountRecipes returns the catalog size.
	CountRecipes(ctx context.Context) (int, error)

	// FindConfirmed returns the confirmed record for date.
	// Returns ErrNoConfirmedDraw if there is none.
	FindConfirmed(ctx context.Context, date model.Date) (model.DrawRecord, error)
	// RecordProvisional appends an unconfirmed record for date.
	RecordProvisional(ctx context.Context, date model.Date, id model.RecipeID) (model.DrawRecord, error)
	// ConfirmDraw deletes every record for date, inserts one confirmed
	// record for id and increments the recipe's draw count, atomically.
	ConfirmDraw(ctx context.Context, date model.Date, id model.RecipeID) (model.DrawRecord, error)
	// History returns up to limit records, newest date first.
	History(ctx context.Context, limit int) ([]model.HistoryEntry, error)

	// UpdateRating applies fn to the current rating under a row lock and
	// persists the result.
	UpdateRating(ctx context.Context, id model.RecipeID, fn func(current float64) float64) (float64, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}

package repository

import (
	"errors"

	"github.com/okian/breakfast/internal/domain/model"
)

// Sentinel kinds for store errors. The domain errors are aliased so callers
// can match with errors.Is against either package.
var (
	ErrNotFound        = model.ErrRecipeNotFound
	ErrNoConfirmedDraw = model.ErrNoConfirmedDraw
	ErrConflict        = model.ErrConcurrentConfirmation
	ErrUnavailable     = model.ErrStoreUnavailable
	ErrDateConfirmed   = model.ErrDateConfirmed
	ErrInvalidLimit    = errors.New("invalid history limit")
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrInvalidRecipe   = errors.New("invalid recipe")
)

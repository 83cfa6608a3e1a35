package draw

import (
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/selector"
)

// Errors returned by the coordinator, re-exported for callers that only
// import this package.
var (
	ErrEmptyCatalog           = selector.ErrEmptyCatalog
	ErrRecipeNotFound         = model.ErrRecipeNotFound
	ErrNoConfirmedDraw        = model.ErrNoConfirmedDraw
	ErrConcurrentConfirmation = model.ErrConcurrentConfirmation
	ErrStoreUnavailable       = model.ErrStoreUnavailable
)

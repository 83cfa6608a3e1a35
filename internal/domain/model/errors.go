package model

import "errors"

// Errors shared by the draw engine and every store implementation.
var (
	ErrRecipeNotFound         = errors.New("recipe not found")
	ErrNoConfirmedDraw        = errors.New("no confirmed draw for date")
	ErrConcurrentConfirmation = errors.New("concurrent confirmation for date, retry")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrStepNotFound           = errors.New("recipe step not found")
	// ErrDateConfirmed is returned when a provisional record is refused
	// because the date already has a confirmed one.
	ErrDateConfirmed = errors.New("date already confirmed")
)

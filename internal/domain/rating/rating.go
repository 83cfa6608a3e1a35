// Package rating applies user feedback to recipe ratings.
//
// The rating is an exponential moving average: each piece of feedback,
// clamped to [1,5], contributes 30% and the previous rating 70%. The result
// is rounded to two decimals.
package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// Smoothing is the weight given to new feedback.
const Smoothing = 0.3

// Store updates a rating with a locked read-modify-write.
type Store interface {
	UpdateRating(ctx context.Context, id model.RecipeID, fn func(current float64) float64) (float64, error)
}

// Clamp bounds feedback to [model.MinRating, model.MaxRating]. NaN is
// treated as the default rating.
func Clamp(feedback float64) float64 {
	if math.IsNaN(feedback) {
		return model.DefaultRating
	}
	return math.Max(model.MinRating, math.Min(model.MaxRating, feedback))
}

// Blend returns round(current*0.7 + clamp(feedback)*0.3, 2). An unset
// current rating counts as model.DefaultRating.
func Blend(current, feedback float64) float64 {
	if current <= 0 {
		current = model.DefaultRating
	}
	v := current*(1-Smoothing) + Clamp(feedback)*Smoothing
	return math.Round(v*100) / 100
}

// Updater applies feedback through a Store.
type Updater struct {
	store Store
	log   logger.Logger
}

// New creates an Updater.
func New(store Store, log logger.Logger) *Updater {
	if log == nil {
		log = logger.Default("rating")
	}
	return &Updater{store: store, log: log}
}

// Rate blends feedback into the recipe's rating and returns the new value.
// Store errors, including model.ErrRecipeNotFound, are returned unchanged
// apart from wrapping.
func (u *Updater) Rate(ctx context.Context, id model.RecipeID, feedback float64) (float64, error) {
	fb := Clamp(feedback)
	v, err := u.store.UpdateRating(ctx, id, func(current float64) float64 {
		return Blend(current, fb)
	})
	if err != nil {
		return 0, fmt.Errorf("update rating of recipe %d: %w", id, err)
	}

	metrics.RecordRatingUpdate(fb, v)
	u.log.Info(ctx, "rating updated",
		logger.Int64("recipe_id", int64(id)),
		logger.Float64("feedback", fb),
		logger.Float64("rating", v),
	)
	return v, nil
}

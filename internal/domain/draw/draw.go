// Package draw coordinates the per-day breakfast lottery: it returns an
// existing confirmed pick unchanged, otherwise draws a provisional one, and
// promotes a pick to the single confirmed record for its date.
package draw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/selector"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// Store is the slice of the recipe store the coordinator depends on.
type Store interface {
	// ListRecipes returns every recipe with its current rating.
	ListRecipes(ctx context.Context) ([]model.Recipe, error)
	// GetRecipe returns a recipe with ingredients, steps and nutrition.
	// Returns model.ErrRecipeNotFound for unknown ids.
	GetRecipe(ctx context.Context, id model.RecipeID) (model.Recipe, error)
	// FindConfirmed returns the confirmed record for date or
	// model.ErrNoConfirmedDraw.
	FindConfirmed(ctx context.Context, date model.Date) (model.DrawRecord, error)
	// RecordProvisional appends an unconfirmed record for date. It returns
	// model.ErrDateConfirmed when date already has a confirmed record.
	RecordProvisional(ctx context.Context, date model.Date, id model.RecipeID) (model.DrawRecord, error)
	// ConfirmDraw atomically replaces every record for date with one
	// confirmed record for id and increments the recipe's draw count.
	ConfirmDraw(ctx context.Context, date model.Date, id model.RecipeID) (model.DrawRecord, error)
}

// Picker chooses one recipe from a snapshot.
type Picker interface {
	SelectIndex(recipes []model.Recipe) (int, error)
}

// Result is the outcome of a draw request.
type Result struct {
	Recipe           model.Recipe
	Date             model.Date
	AlreadyConfirmed bool
	// Probability is the share the recipe had in this draw; zero when the
	// date was already confirmed.
	Probability float64
}

// Odds is one recipe's weight and probability in the current catalog.
type Odds struct {
	Recipe      model.Recipe
	Weight      float64
	Probability float64
}

// Coordinator implements the draw/confirm workflow on top of a Store.
type Coordinator struct {
	store             Store
	picker            Picker
	recordProvisional bool
	log               logger.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPicker replaces the default selector.
func WithPicker(p Picker) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.picker = p
		}
	}
}

// WithRecordProvisional controls whether RequestDraw appends an
// unconfirmed record to the ledger.
func WithRecordProvisional(enabled bool) Option {
	return func(c *Coordinator) {
		c.recordProvisional = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Coordinator.
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:             store,
		picker:            selector.New(),
		recordProvisional: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Default("draw")
	}
	return c
}

// RequestDraw returns the confirmed recipe for date if there is one.
// Otherwise it draws from the whole catalog and returns a provisional pick.
func (c *Coordinator) RequestDraw(ctx context.Context, date model.Date) (Result, error) {
	res, ok, err := c.confirmed(ctx, date)
	if err != nil || ok {
		return res, err
	}

	recipe, p, err := c.pick(ctx)
	if err != nil {
		metrics.RecordDrawError("request", reason(err))
		return Result{}, err
	}

	if c.recordProvisional {
		_, err := c.store.RecordProvisional(ctx, date, recipe.ID)
		switch {
		case errors.Is(err, model.ErrDateConfirmed):
			// confirmed after the first lookup; the confirmation wins
			res, ok, err := c.confirmed(ctx, date)
			if err == nil && !ok {
				err = fmt.Errorf("record provisional draw: %w", model.ErrConcurrentConfirmation)
				metrics.RecordDrawError("request", reason(err))
			}
			return res, err
		case err != nil:
			metrics.RecordDrawError("request", reason(err))
			return Result{}, fmt.Errorf("record provisional draw: %w", err)
		}
	}

	metrics.RecordDraw("provisional")
	c.log.Debug(ctx, "provisional draw",
		logger.String("date", date.String()),
		logger.Int64("recipe_id", int64(recipe.ID)),
		logger.Float64("probability", p),
	)
	return Result{Recipe: recipe, Date: date, Probability: p}, nil
}

// confirmed loads the confirmed result for date. ok is false when the date
// has no confirmed record.
func (c *Coordinator) confirmed(ctx context.Context, date model.Date) (Result, bool, error) {
	rec, err := c.store.FindConfirmed(ctx, date)
	switch {
	case errors.Is(err, model.ErrNoConfirmedDraw):
		return Result{}, false, nil
	case err != nil:
		metrics.RecordDrawError("request", reason(err))
		return Result{}, false, fmt.Errorf("find confirmed draw: %w", err)
	}
	recipe, err := c.store.GetRecipe(ctx, rec.RecipeID)
	if err != nil {
		metrics.RecordDrawError("request", reason(err))
		return Result{}, false, fmt.Errorf("load confirmed recipe %d: %w", rec.RecipeID, err)
	}
	metrics.RecordDraw("already_confirmed")
	return Result{Recipe: recipe, Date: date, AlreadyConfirmed: true}, true, nil
}

// QuickDraw draws from the catalog without touching the ledger.
func (c *Coordinator) QuickDraw(ctx context.Context) (Result, error) {
	recipe, p, err := c.pick(ctx)
	if err != nil {
		metrics.RecordDrawError("quick", reason(err))
		return Result{}, err
	}
	metrics.RecordDraw("quick")
	return Result{Recipe: recipe, Probability: p}, nil
}

// Confirm makes id the single confirmed recipe for date, replacing any
// earlier provisional or confirmed records for that date.
func (c *Coordinator) Confirm(ctx context.Context, date model.Date, id model.RecipeID) (model.DrawRecord, error) {
	rec, err := c.store.ConfirmDraw(ctx, date, id)
	if err != nil {
		metrics.RecordDrawError("confirm", reason(err))
		return model.DrawRecord{}, fmt.Errorf("confirm recipe %d for %s: %w", id, date, err)
	}
	metrics.RecordConfirmation()
	c.log.Info(ctx, "draw confirmed",
		logger.String("date", date.String()),
		logger.Int64("recipe_id", int64(id)),
	)
	return rec, nil
}

// GetConfirmed returns the confirmed recipe for date, or
// model.ErrNoConfirmedDraw.
func (c *Coordinator) GetConfirmed(ctx context.Context, date model.Date) (model.Recipe, error) {
	rec, err := c.store.FindConfirmed(ctx, date)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("find confirmed draw: %w", err)
	}
	recipe, err := c.store.GetRecipe(ctx, rec.RecipeID)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("load confirmed recipe %d: %w", rec.RecipeID, err)
	}
	return recipe, nil
}

// Odds returns every recipe's weight and probability, in store order.
func (c *Coordinator) Odds(ctx context.Context) ([]Odds, error) {
	recipes, err := c.store.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	probs, err := selector.Probabilities(recipes)
	if err != nil {
		return nil, err
	}
	out := make([]Odds, len(recipes))
	for i, r := range recipes {
		out[i] = Odds{Recipe: r, Weight: selector.Weight(r.Rating), Probability: probs[i]}
	}
	return out, nil
}

func (c *Coordinator) pick(ctx context.Context) (model.Recipe, float64, error) {
	recipes, err := c.store.ListRecipes(ctx)
	if err != nil {
		return model.Recipe{}, 0, fmt.Errorf("list recipes: %w", err)
	}

	start := time.Now()
	i, err := c.picker.SelectIndex(recipes)
	metrics.RecordSelectionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return model.Recipe{}, 0, err
	}

	probs, err := selector.Probabilities(recipes)
	if err != nil {
		return model.Recipe{}, 0, err
	}

	recipe, err := c.store.GetRecipe(ctx, recipes[i].ID)
	if err != nil {
		return model.Recipe{}, 0, fmt.Errorf("load drawn recipe %d: %w", recipes[i].ID, err)
	}
	return recipe, probs[i], nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, selector.ErrEmptyCatalog):
		return "empty_catalog"
	case errors.Is(err, model.ErrRecipeNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConcurrentConfirmation):
		return "conflict"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

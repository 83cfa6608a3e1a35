// Package service wires the recipe store, the draw coordinator, the rating
// updater, the advisor and the reminder pipeline into the operations the
// HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/breakfast/internal/adapters/advisor"
	reminderqueue "github.com/okian/breakfast/internal/adapters/mq/queue"
	workerpool "github.com/okian/breakfast/internal/adapters/mq/worker"
	"github.com/okian/breakfast/internal/adapters/notify"
	repository "github.com/okian/breakfast/internal/adapters/repository"
	"github.com/okian/breakfast/internal/catalog"
	"github.com/okian/breakfast/internal/domain/dedupe"
	"github.com/okian/breakfast/internal/domain/draw"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/rating"
	"github.com/okian/breakfast/internal/domain/selector"
	"github.com/okian/breakfast/internal/domain/types"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// ErrStepNotFound is returned when a recipe has no step with the given number.
var ErrStepNotFound = model.ErrStepNotFound

// Advisor is the cooking assistant used by the AI endpoints.
type Advisor interface {
	CookingHelp(ctx context.Context, r *model.Recipe, question string) advisor.Answer
	ExplainStep(ctx context.Context, recipeName string, number int, text string) advisor.Answer
	IngredientTips(ctx context.Context, name string) advisor.Answer
	GenerateRecipe(ctx context.Context, dishName string) (model.RecipeDraft, error)
	ExtractRecipe(ctx context.Context, imageBase64 string) (model.RecipeDraft, error)
	Providers() []string
}

// Notifier delivers rendered reminders.
type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message) ([]notify.Result, error)
	Channels() []string
}

// Service implements the API dependencies for the breakfast planner.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	coordinator *draw.Coordinator
	rater       *rating.Updater
	advisor     Advisor
	notifier    Notifier

	// Reminder pipeline
	deduper dedupe.Deduper
	queue   *reminderqueue.InMemoryQueue
	pool    *workerpool.Pool

	// Configuration
	loc               *time.Location
	now               func() time.Time
	drawSeed          int64
	recordProvisional bool
	catalog           []model.RecipeDraft
	reminderEnabled   bool
	reminderHour      int
	reminderMinute    int
	queueSize         int
	workerCount       int
	jobTimeout        time.Duration
	dedupeSize        int

	generating singleflight.Group

	started bool
	stopped bool
	logger  logger.Logger
}

// New constructs a Service. Components are usable immediately; Start seeds
// the catalog.
func New(opts ...Option) *Service {
	s := &Service{
		loc:               time.Local,
		now:               time.Now,
		recordProvisional: true,
		reminderHour:      18,
		queueSize:         16,
		workerCount:       2,
		jobTimeout:        2 * time.Minute,
		dedupeSize:        366,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default("service")
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.advisor == nil {
		s.advisor = advisor.New(advisor.Config{}, advisor.WithLogger(s.logger.Named("advisor")))
	}
	if s.notifier == nil {
		s.notifier = notify.NewDispatcher(s.logger.Named("notify"))
	}

	seed := s.drawSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.coordinator = draw.New(s.store,
		draw.WithPicker(selector.New(selector.WithSeed(seed))),
		draw.WithRecordProvisional(s.recordProvisional),
		draw.WithLogger(s.logger.Named("draw")))
	s.rater = rating.New(s.store, s.logger.Named("rating"))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = reminderqueue.NewInMemoryQueue(reminderqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithPoolLogger(s.logger.Named("reminder-worker")),
		workerpool.WithJobTimeout(s.jobTimeout))
	return s
}

// Start seeds an empty store with the catalog.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting breakfast service...")

	if len(s.catalog) > 0 {
		n, err := catalog.Seed(ctx, s.store, s.catalog)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if n > 0 {
			s.logger.Info(ctx, "seeded recipe catalog", logger.Int("recipes", n))
		}
	}
	count, err := s.store.CountRecipes(ctx)
	if err != nil {
		return fmt.Errorf("count recipes: %w", err)
	}
	metrics.UpdateCatalogSize(count)

	s.started = true
	s.logger.Info(ctx, "breakfast service started",
		logger.Int("recipes", count),
		logger.String("timezone", s.loc.String()),
		logger.Bool("reminder", s.reminderEnabled),
		logger.Int("workers", s.workerCount))
	return nil
}

// Stop closes the reminder queue and the store. It also releases them when
// Start failed; calls after the first are no-ops.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.logger.Info(context.Background(), "stopping breakfast service...")

	_ = s.queue.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "breakfast service stopped")
}

// Tomorrow returns tomorrow's date in the service's zone.
func (s *Service) Tomorrow() model.Date {
	return model.Tomorrow(s.now(), s.loc)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Recipes lists the catalog, best rated first.
func (s *Service) Recipes(ctx context.Context) ([]types.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, types.FromRecipe(r))
	}
	return out, nil
}

// Recipe returns one recipe with its children.
func (s *Service) Recipe(ctx context.Context, id model.RecipeID) (types.Recipe, error) {
	r, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return types.Recipe{}, err
	}
	return types.FromRecipe(r), nil
}

// QuickDraw picks a recipe without touching the draw history.
func (s *Service) QuickDraw(ctx context.Context) (types.Draw, error) {
	res, err := s.coordinator.QuickDraw(ctx)
	if err != nil {
		return types.Draw{}, err
	}
	return types.Draw{Recipe: types.FromRecipe(res.Recipe), Probability: res.Probability}, nil
}

// Draw returns the confirmed recipe for date or a fresh weighted pick.
func (s *Service) Draw(ctx context.Context, date model.Date) (types.Draw, error) {
	res, err := s.coordinator.RequestDraw(ctx, date)
	if err != nil {
		return types.Draw{}, err
	}
	return types.Draw{
		Recipe:           types.FromRecipe(res.Recipe),
		DrawDate:         res.Date.String(),
		AlreadyConfirmed: res.AlreadyConfirmed,
		Probability:      res.Probability,
	}, nil
}

// Confirm fixes date's breakfast to recipe id.
func (s *Service) Confirm(ctx context.Context, date model.Date, id model.RecipeID) (types.Confirmation, error) {
	rec, err := s.coordinator.Confirm(ctx, date, id)
	if err != nil {
		return types.Confirmation{}, err
	}
	msg := "Dish confirmed for tomorrow!"
	if rec.Date != s.Tomorrow() {
		msg = "Dish confirmed for " + rec.Date.String() + "!"
	}
	return types.Confirmation{
		Success:  true,
		Message:  msg,
		DrawDate: rec.Date.String(),
		RecipeID: int64(rec.RecipeID),
	}, nil
}

// Confirmed reports date's confirmed meal. A missing confirmation is not an
// error.
func (s *Service) Confirmed(ctx context.Context, date model.Date) (types.Tomorrow, error) {
	r, err := s.coordinator.GetConfirmed(ctx, date)
	switch {
	case errors.Is(err, draw.ErrNoConfirmedDraw):
		return types.Tomorrow{
			Confirmed: false,
			Message:   "No meal confirmed for " + dayLabel(date, s.Tomorrow()) + " yet",
			DrawDate:  date.String(),
		}, nil
	case err != nil:
		return types.Tomorrow{}, err
	}
	wire := types.FromRecipe(r)
	return types.Tomorrow{Confirmed: true, DrawDate: date.String(), Recipe: &wire}, nil
}

// History returns the latest draw records.
func (s *Service) History(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	entries, err := s.store.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	return types.FromHistory(entries), nil
}

// Rate blends feedback into the recipe's rating.
func (s *Service) Rate(ctx context.Context, id model.RecipeID, feedback float64) (types.RatingResult, error) {
	r, err := s.rater.Rate(ctx, id, feedback)
	if err != nil {
		return types.RatingResult{}, err
	}
	return types.RatingResult{
		Success:   true,
		NewRating: r,
		Message:   "Rating updated to " + strconv.FormatFloat(r, 'f', -1, 64),
	}, nil
}

// Odds explains how likely each recipe is to be drawn.
func (s *Service) Odds(ctx context.Context) ([]types.Odds, error) {
	odds, err := s.coordinator.Odds(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Odds, 0, len(odds))
	for _, o := range odds {
		out = append(out, types.Odds{
			RecipeID:    int64(o.Recipe.ID),
			Name:        o.Recipe.Name,
			Rating:      o.Recipe.EffectiveRating(),
			Weight:      o.Weight,
			Probability: o.Probability,
		})
	}
	return out, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) types.Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	st := types.Stats{
		Started:          started,
		Timezone:         s.loc.String(),
		ReminderQueue:    s.queue.Len(),
		ReminderWorkers:  s.pool.Size(),
		RemindersTracked: s.deduper.Size(),
		AIProviders:      s.advisor.Providers(),
		NotifyChannels:   s.notifier.Channels(),
	}
	if s.reminderEnabled {
		st.ReminderAt = fmt.Sprintf("%02d:%02d", s.reminderHour, s.reminderMinute)
	}
	if n, err := s.store.CountRecipes(ctx); err == nil {
		st.CatalogSize = n
		metrics.UpdateCatalogSize(n)
	}
	return st
}

func dayLabel(date, tomorrow model.Date) string {
	if date == tomorrow {
		return "tomorrow"
	}
	return date.String()
}

package repository

import (
	"context"
	"sync"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/metrics"
)

// MemoryStore keeps the catalog and ledger in process memory behind a
// single RWMutex, which makes ConfirmDraw a single-writer critical section.
type MemoryStore struct {
	mu      sync.RWMutex
	recipes map[model.RecipeID]*model.Recipe
	records []model.DrawRecord
	nextID  model.RecipeID
	nextRec int64
	closed  bool

	cfg settings
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{
		recipes: make(map[model.RecipeID]*model.Recipe),
		cfg:     cfg,
	}
}

// ListRecipes implements Store.ListRecipes.
func (s *MemoryStore) ListRecipes(ctx context.Context) (out []model.Recipe, err error) {
	defer observe(driverMemory, "list_recipes", &err)()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err = s.check(ctx); err != nil {
		return nil, err
	}

	out = make([]model.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		row := *r
		row.Ingredients, row.Instructions, row.Nutrition = nil, nil, nil
		out = append(out, row)
	}
	sortRecipes(out)
	return out, nil
}

// GetRecipe implements Store.GetRecipe.
func (s *MemoryStore) GetRecipe(ctx context.Context, id model.RecipeID) (r model.Recipe, err error) {
	defer observe(driverMemory, "get_recipe", &err)()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err = s.check(ctx); err != nil {
		return model.Recipe{}, err
	}

	stored, ok := s.recipes[id]
	if !ok {
		return model.Recipe{}, ErrNotFound
	}
	return cloneRecipe(stored), nil
}

// AddRecipe implements Store.AddRecipe.
func (s *MemoryStore) AddRecipe(ctx context.Context, draft model.RecipeDraft) (r model.Recipe, err error) {
	defer observe(driverMemory, "add_recipe", &err)()

	if err = validateDraft(draft); err != nil {
		return model.Recipe{}, err
	}
	draft.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.check(ctx); err != nil {
		return model.Recipe{}, err
	}

	s.nextID++
	stored := &model.Recipe{
		ID:           s.nextID,
		Name:         draft.Name,
		NameEn:       draft.NameEn,
		Category:     draft.Category,
		Difficulty:   draft.Difficulty,
		CookingTime:  draft.CookingTime,
		Source:       draft.Source,
		Rating:       model.DefaultRating,
		CreatedAt:    s.cfg.now().UTC(),
		Ingredients:  append([]model.Ingredient(nil), draft.Ingredients...),
		Instructions: append([]model.InstructionStep(nil), draft.Instructions...),
	}
	if draft.Nutrition != nil {
		n := *draft.Nutrition
		stored.Nutrition = &n
	}
	s.recipes[stored.ID] = stored
	metrics.UpdateCatalogSize(len(s.recipes))
	return cloneRecipe(stored), nil
}

// CountRecipes implements Store.CountRecipes.
func (s *MemoryStore) CountRecipes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return len(s.recipes), nil
}

// FindConfirmed implements Store.FindConfirmed.
func (s *MemoryStore) FindConfirmed(ctx context.Context, date model.Date) (rec model.DrawRecord, err error) {
	defer observe(driverMemory, "find_confirmed", &err)()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err = s.check(ctx); err != nil {
		return model.DrawRecord{}, err
	}

	for _, r := range s.records {
		if r.Date == date && r.Confirmed {
			return r, nil
		}
	}
	return model.DrawRecord{}, ErrNoConfirmedDraw
}

// RecordProvisional implements Store.RecordProvisional.
func (s *MemoryStore) RecordProvisional(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverMemory, "record_provisional", &err)()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.check(ctx); err != nil {
		return model.DrawRecord{}, err
	}
	if _, ok := s.recipes[id]; !ok {
		return model.DrawRecord{}, ErrNotFound
	}
	for _, r := range s.records {
		if r.Date == date && r.Confirmed {
			return model.DrawRecord{}, ErrDateConfirmed
		}
	}

	rec = s.appendRecord(date, id, false)
	return rec, nil
}

// ConfirmDraw implements Store.ConfirmDraw.
func (s *MemoryStore) ConfirmDraw(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverMemory, "confirm_draw", &err)()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.check(ctx); err != nil {
		return model.DrawRecord{}, err
	}
	recipe, ok := s.recipes[id]
	if !ok {
		return model.DrawRecord{}, ErrNotFound
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if r.Date != date {
			kept = append(kept, r)
		}
	}
	s.records = kept

	rec = s.appendRecord(date, id, true)
	recipe.DrawCount++
	return rec, nil
}

// History implements Store.History.
func (s *MemoryStore) History(ctx context.Context, limit int) (out []model.HistoryEntry, err error) {
	defer observe(driverMemory, "history", &err)()

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err = s.check(ctx); err != nil {
		return nil, err
	}

	out = make([]model.HistoryEntry, 0, len(s.records))
	for _, r := range s.records {
		e := model.HistoryEntry{DrawRecord: r}
		if recipe, ok := s.recipes[r.RecipeID]; ok {
			e.RecipeName, e.RecipeNameEn = recipe.Name, recipe.NameEn
		}
		out = append(out, e)
	}
	sortHistory(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateRating implements Store.UpdateRating.
func (s *MemoryStore) UpdateRating(ctx context.Context, id model.RecipeID, fn func(float64) float64) (v float64, err error) {
	defer observe(driverMemory, "update_rating", &err)()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.check(ctx); err != nil {
		return 0, err
	}
	recipe, ok := s.recipes[id]
	if !ok {
		return 0, ErrNotFound
	}

	recipe.Rating = fn(recipe.EffectiveRating())
	return recipe.Rating, nil
}

// Ping implements Store.Ping.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx)
}

// Close implements Store.Close. Later calls fail with ErrUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// check must be called with s.mu held.
func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrUnavailable
	}
	return nil
}

// appendRecord must be called with s.mu held for writing.
func (s *MemoryStore) appendRecord(date model.Date, id model.RecipeID, confirmed bool) model.DrawRecord {
	s.nextRec++
	rec := model.DrawRecord{
		ID:        s.nextRec,
		RecipeID:  id,
		Date:      date,
		Confirmed: confirmed,
		CreatedAt: s.cfg.now().UTC(),
	}
	s.records = append(s.records, rec)
	return rec
}

func cloneRecipe(r *model.Recipe) model.Recipe {
	out := *r
	out.Ingredients = append([]model.Ingredient(nil), r.Ingredients...)
	out.Instructions = append([]model.InstructionStep(nil), r.Instructions...)
	if r.Nutrition != nil {
		n := *r.Nutrition
		out.Nutrition = &n
	}
	return out
}

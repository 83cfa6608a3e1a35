package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/breakfast/internal/adapters/repository"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) repository.Store {
		return repository.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()

	added, err := s.AddRecipe(ctx, steamedEgg())
	require.NoError(t, err)

	added.Ingredients[0].Name = "鸭蛋"
	added.Nutrition.Calories = 0

	got, err := s.GetRecipe(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "鸡蛋", got.Ingredients[0].Name)
	assert.Equal(t, 155.0, got.Nutrition.Calories)
}

func TestMemoryStore_ListOmitsChildren(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()

	_, err := s.AddRecipe(ctx, steamedEgg())
	require.NoError(t, err)

	recipes, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Nil(t, recipes[0].Ingredients)
	assert.Nil(t, recipes[0].Nutrition)
}

func TestMemoryStore_Clock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	s := repository.NewMemoryStore(repository.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	r, err := s.AddRecipe(ctx, model.RecipeDraft{Name: "豆浆"})
	require.NoError(t, err)
	assert.Equal(t, fixed, r.CreatedAt)

	rec, err := s.ConfirmDraw(ctx, model.MustParseDate("2025-06-02"), r.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.CreatedAt)
}

func TestMemoryStore_Closed(t *testing.T) {
	s := repository.NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.ListRecipes(context.Background())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), repository.ErrUnavailable)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListRecipes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := repository.Open(ctx, repository.Config{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryStore{}, s)

	s, err = repository.Open(ctx, repository.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &repository.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = repository.Open(ctx, repository.Config{Driver: "mongo"})
	assert.ErrorIs(t, err, repository.ErrUnknownDriver)
}

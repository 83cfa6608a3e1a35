package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/breakfast/internal/adapters/repository"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("empty catalog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		recipes, err := s.ListRecipes(ctx)
		require.NoError(t, err)
		assert.Empty(t, recipes)

		n, err := s.CountRecipes(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("add and get recipe", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		added, err := s.AddRecipe(ctx, steamedEgg())
		require.NoError(t, err)
		assert.NotZero(t, added.ID)
		assert.Equal(t, model.DefaultRating, added.Rating)
		assert.Zero(t, added.DrawCount)

		got, err := s.GetRecipe(ctx, added.ID)
		require.NoError(t, err)
		assert.Equal(t, "清蒸鸡蛋", got.Name)
		assert.Equal(t, "Steamed Egg", got.NameEn)
		require.Len(t, got.Ingredients, 2)
		assert.Equal(t, "鸡蛋", got.Ingredients[0].Name)
		assert.Equal(t, 2.0, got.Ingredients[0].Quantity)
		require.Len(t, got.Instructions, 2)
		assert.Equal(t, 1, got.Instructions[0].Number)
		assert.Equal(t, "蒸8分钟", got.Instructions[1].Text)
		require.NotNil(t, got.Nutrition)
		assert.Equal(t, 155.0, got.Nutrition.Calories)
	})

	t.Run("get unknown recipe", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetRecipe(context.Background(), 404)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, err, model.ErrRecipeNotFound)
	})

	t.Run("reject nameless draft", func(t *testing.T) {
		s := newStore(t)

		_, err := s.AddRecipe(context.Background(), model.RecipeDraft{Name: "  "})
		assert.ErrorIs(t, err, repository.ErrInvalidRecipe)
	})

	t.Run("list orders by rating", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := mustAdd(t, s, "燕麦粥")
		b := mustAdd(t, s, "小米粥")
		c := mustAdd(t, s, "豆浆")

		_, err := s.UpdateRating(ctx, b.ID, func(float64) float64 { return 4.5 })
		require.NoError(t, err)
		_, err = s.UpdateRating(ctx, c.ID, func(float64) float64 { return 1.2 })
		require.NoError(t, err)

		recipes, err := s.ListRecipes(ctx)
		require.NoError(t, err)
		require.Len(t, recipes, 3)
		assert.Equal(t, []model.RecipeID{b.ID, a.ID, c.ID}, ids(recipes))
		assert.Equal(t, 4.5, recipes[0].Rating)
	})

	t.Run("no confirmed draw", func(t *testing.T) {
		s := newStore(t)

		_, err := s.FindConfirmed(context.Background(), model.MustParseDate("2025-06-01"))
		assert.ErrorIs(t, err, repository.ErrNoConfirmedDraw)
	})

	t.Run("provisional draws stay unconfirmed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := mustAdd(t, s, "水煮鸡蛋")
		date := model.MustParseDate("2025-06-01")

		rec, err := s.RecordProvisional(ctx, date, r.ID)
		require.NoError(t, err)
		assert.False(t, rec.Confirmed)
		assert.Equal(t, date, rec.Date)

		_, err = s.FindConfirmed(ctx, date)
		assert.ErrorIs(t, err, repository.ErrNoConfirmedDraw)

		_, err = s.RecordProvisional(ctx, date, 999)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("confirmed date refuses provisional draws", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := mustAdd(t, s, "小米粥")
		second := mustAdd(t, s, "葱油饼")
		date := model.MustParseDate("2025-06-01")

		_, err := s.ConfirmDraw(ctx, date, first.ID)
		require.NoError(t, err)

		_, err = s.RecordProvisional(ctx, date, second.ID)
		assert.ErrorIs(t, err, repository.ErrDateConfirmed)

		history, err := s.History(ctx, 30)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Confirmed)
		assert.Equal(t, first.ID, history[0].RecipeID)

		_, err = s.RecordProvisional(ctx, date.AddDays(1), second.ID)
		assert.NoError(t, err)
	})

	t.Run("last confirmation wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := mustAdd(t, s, "烤红薯")
		second := mustAdd(t, s, "清蒸玉米")
		date := model.MustParseDate("2025-06-01")

		_, err := s.RecordProvisional(ctx, date, first.ID)
		require.NoError(t, err)
		_, err = s.RecordProvisional(ctx, date, second.ID)
		require.NoError(t, err)

		_, err = s.ConfirmDraw(ctx, date, first.ID)
		require.NoError(t, err)
		rec, err := s.ConfirmDraw(ctx, date, second.ID)
		require.NoError(t, err)
		assert.True(t, rec.Confirmed)

		got, err := s.FindConfirmed(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.RecipeID)

		history, err := s.History(ctx, 30)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Confirmed)
		assert.Equal(t, second.ID, history[0].RecipeID)
		assert.Equal(t, "清蒸玉米", history[0].RecipeName)

		r1, err := s.GetRecipe(ctx, first.ID)
		require.NoError(t, err)
		r2, err := s.GetRecipe(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, r1.DrawCount)
		assert.Equal(t, 1, r2.DrawCount)
	})

	t.Run("confirming an unknown recipe changes nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := mustAdd(t, s, "牛油果吐司")
		date := model.MustParseDate("2025-06-02")

		_, err := s.ConfirmDraw(ctx, date, r.ID)
		require.NoError(t, err)

		_, err = s.ConfirmDraw(ctx, date, 999)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		got, err := s.FindConfirmed(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.RecipeID)
	})

	t.Run("dates are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := mustAdd(t, s, "酸奶水果杯")
		d1 := model.MustParseDate("2025-06-01")
		d2 := model.MustParseDate("2025-06-02")

		_, err := s.ConfirmDraw(ctx, d1, r.ID)
		require.NoError(t, err)
		_, err = s.ConfirmDraw(ctx, d2, r.ID)
		require.NoError(t, err)

		history, err := s.History(ctx, 30)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, d2, history[0].Date)
		assert.Equal(t, d1, history[1].Date)

		history, err = s.History(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, history, 1)

		_, err = s.History(ctx, 0)
		assert.ErrorIs(t, err, repository.ErrInvalidLimit)
	})

	t.Run("concurrent confirmations leave one record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const n = 8
		recipes := make([]model.Recipe, n)
		for i := range recipes {
			recipes[i] = mustAdd(t, s, "蔬菜煎蛋")
		}
		date := model.MustParseDate("2025-06-03")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for _, r := range recipes {
			wg.Add(1)
			go func(id model.RecipeID) {
				defer wg.Done()
				_, err := s.ConfirmDraw(ctx, date, id)
				if err != nil && !errors.Is(err, repository.ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}(r.ID)
		}
		wg.Wait()

		require.Positive(t, success)
		history, err := s.History(ctx, 100)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Confirmed)

		total := 0
		for _, r := range recipes {
			got, err := s.GetRecipe(ctx, r.ID)
			require.NoError(t, err)
			total += got.DrawCount
		}
		assert.Equal(t, success, total)
	})

	t.Run("concurrent rating updates are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := mustAdd(t, s, "香煎鸡胸肉")

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpdateRating(ctx, r.ID, func(cur float64) float64 { return cur + 0.1 })
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := s.GetRecipe(ctx, r.ID)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, got.Rating, 1e-9)
	})

	t.Run("rating unknown recipe", func(t *testing.T) {
		s := newStore(t)

		_, err := s.UpdateRating(context.Background(), 77, func(cur float64) float64 { return cur })
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func steamedEgg() model.RecipeDraft {
	return model.RecipeDraft{
		Name:        "清蒸鸡蛋",
		NameEn:      "Steamed Egg",
		Category:    "蛋白质",
		Difficulty:  1,
		CookingTime: 10,
		Ingredients: []model.Ingredient{
			{Name: "鸡蛋", Quantity: 2, Unit: "个"},
			{Name: "温水", Quantity: 3, Unit: "汤匙", Notes: "约45ml"},
		},
		Instructions: []model.InstructionStep{
			{Number: 1, Text: "鸡蛋加温水打散"},
			{Number: 2, Text: "蒸8分钟"},
		},
		Nutrition: &model.Nutrition{Calories: 155, Protein: 12, Carbohydrate: 1.1, Fat: 11},
	}
}

func mustAdd(t *testing.T, s repository.Store, name string) model.Recipe {
	t.Helper()
	r, err := s.AddRecipe(context.Background(), model.RecipeDraft{Name: name, Difficulty: 1})
	require.NoError(t, err)
	return r
}

func ids(recipes []model.Recipe) []model.RecipeID {
	out := make([]model.RecipeID, len(recipes))
	for i, r := range recipes {
		out[i] = r.ID
	}
	return out
}

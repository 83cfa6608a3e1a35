package service

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/breakfast/internal/adapters/advisor"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/types"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// CookingHelp answers a question, falling back to canned advice when no AI
// provider answers.
func (s *Service) CookingHelp(ctx context.Context, req types.HelpRequest) (types.HelpAnswer, error) {
	var r model.Recipe
	if req.RecipeID > 0 {
		stored, err := s.store.GetRecipe(ctx, model.RecipeID(req.RecipeID))
		if err != nil {
			return types.HelpAnswer{}, err
		}
		r = stored
	} else {
		r.Name = req.RecipeName
		for i, text := range req.Steps {
			r.Instructions = append(r.Instructions, model.InstructionStep{Number: i + 1, Text: text})
		}
		for _, name := range req.Ingredients {
			r.Ingredients = append(r.Ingredients, model.Ingredient{Name: name})
		}
	}

	ans := s.advisor.CookingHelp(ctx, &r, req.Question)
	return types.HelpAnswer{Response: ans.Text, Provider: ans.Provider, Fallback: ans.Fallback()}, nil
}

// ExplainStep expands step number of recipe id.
func (s *Service) ExplainStep(ctx context.Context, id model.RecipeID, number int) (types.StepExplanation, error) {
	r, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return types.StepExplanation{}, err
	}
	step, ok := r.Step(number)
	if !ok {
		return types.StepExplanation{}, ErrStepNotFound
	}

	ans := s.advisor.ExplainStep(ctx, r.Name, step.Number, step.Text)
	return types.StepExplanation{
		RecipeID:    int64(r.ID),
		Step:        step.Number,
		Explanation: ans.Text,
		Provider:    ans.Provider,
	}, nil
}

// IngredientTips gives buying and storage advice for an ingredient.
func (s *Service) IngredientTips(ctx context.Context, name string) types.IngredientTips {
	ans := s.advisor.IngredientTips(ctx, name)
	return types.IngredientTips{Ingredient: name, Tips: ans.Text, Provider: ans.Provider}
}

// GenerateRecipe asks the advisor for a recipe by dish name and stores it.
// Concurrent requests for the same dish share one advisor call and one
// stored recipe.
func (s *Service) GenerateRecipe(ctx context.Context, dishName string) (types.RecipeAdded, error) {
	dishName = strings.TrimSpace(dishName)
	if dishName == "" {
		return types.RecipeAdded{}, advisor.ErrEmptyInput
	}

	v, err, shared := s.generating.Do("generate:"+dishName, func() (any, error) {
		draft, err := s.advisor.GenerateRecipe(ctx, dishName)
		if err != nil {
			return nil, err
		}
		return s.addRecipe(ctx, draft, "generated")
	})
	if err != nil {
		s.logger.Warn(ctx, "recipe generation failed",
			logger.String("dish", dishName), logger.Error(err))
		return types.RecipeAdded{}, err
	}
	if shared {
		s.logger.Debug(ctx, "recipe generation shared", logger.String("dish", dishName))
	}
	return v.(types.RecipeAdded), nil
}

// UploadRecipe recognises a recipe in a base64 image and stores it. A data
// URL prefix is accepted and stripped.
func (s *Service) UploadRecipe(ctx context.Context, image string) (types.RecipeAdded, error) {
	if i := strings.IndexByte(image, ','); i >= 0 && strings.HasPrefix(image, "data:") {
		image = image[i+1:]
	}
	image = strings.TrimSpace(image)
	if image == "" {
		return types.RecipeAdded{}, advisor.ErrEmptyInput
	}

	draft, err := s.advisor.ExtractRecipe(ctx, image)
	if err != nil {
		if !errors.Is(err, advisor.ErrUnrecognized) {
			s.logger.Warn(ctx, "recipe extraction failed", logger.Error(err))
		}
		return types.RecipeAdded{}, err
	}
	return s.addRecipe(ctx, draft, "image")
}

func (s *Service) addRecipe(ctx context.Context, draft model.RecipeDraft, source string) (types.RecipeAdded, error) {
	r, err := s.store.AddRecipe(ctx, draft)
	if err != nil {
		return types.RecipeAdded{}, err
	}
	metrics.RecordRecipeAdded(source)
	if n, err := s.store.CountRecipes(ctx); err == nil {
		metrics.UpdateCatalogSize(n)
	}
	s.logger.Info(ctx, "recipe added",
		logger.Int64("recipe_id", int64(r.ID)),
		logger.String("name", r.Name),
		logger.String("source", source))

	wire := types.FromRecipe(r)
	return types.RecipeAdded{
		Success:  true,
		Message:  "✅ 成功添加食谱: " + r.Name,
		RecipeID: int64(r.ID),
		Recipe:   &wire,
	}, nil
}

// Package catalog loads the seed recipe catalog from YAML.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// ErrNoRecipes is returned when a catalog file holds no recipes.
var ErrNoRecipes = errors.New("catalog: no recipes")

type file struct {
	Recipes []entry `yaml:"recipes"`
}

type entry struct {
	Name        string       `yaml:"name"`
	NameEn      string       `yaml:"name_en"`
	Category    string       `yaml:"category"`
	Difficulty  int          `yaml:"difficulty"`
	CookingTime int          `yaml:"cooking_time"`
	Source      source       `yaml:"source"`
	Ingredients []ingredient `yaml:"ingredients"`
	Steps       []string     `yaml:"steps"`
	Nutrition   *nutrition   `yaml:"nutrition"`
}

type source struct {
	Article     string `yaml:"article"`
	Author      string `yaml:"author"`
	Link        string `yaml:"link"`
	Thumbnail   string `yaml:"thumbnail"`
	PublishDate string `yaml:"publish_date"`
	Likes       int    `yaml:"likes"`
}

type ingredient struct {
	Name     string  `yaml:"name"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
	Notes    string  `yaml:"notes"`
}

type nutrition struct {
	Calories     float64 `yaml:"calories"`
	Protein      float64 `yaml:"protein"`
	Carbohydrate float64 `yaml:"carbohydrate"`
	Fat          float64 `yaml:"fat"`
	Fiber        float64 `yaml:"fiber"`
}

// Parse decodes a YAML catalog into recipe drafts.
func Parse(data []byte) ([]model.RecipeDraft, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(f.Recipes) == 0 {
		return nil, ErrNoRecipes
	}

	out := make([]model.RecipeDraft, 0, len(f.Recipes))
	for i, e := range f.Recipes {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog: recipe %d has no name", i+1)
		}
		d := model.RecipeDraft{
			Name:        e.Name,
			NameEn:      e.NameEn,
			Category:    e.Category,
			Difficulty:  e.Difficulty,
			CookingTime: e.CookingTime,
			Source:      model.Source(e.Source),
		}
		for _, ing := range e.Ingredients {
			d.Ingredients = append(d.Ingredients, model.Ingredient(ing))
		}
		for n, text := range e.Steps {
			d.Instructions = append(d.Instructions, model.InstructionStep{Number: n + 1, Text: text})
		}
		if e.Nutrition != nil {
			n := model.Nutrition(*e.Nutrition)
			d.Nutrition = &n
		}
		d.Normalize()
		out = append(out, d)
	}
	return out, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) ([]model.RecipeDraft, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Store is the part of the recipe store seeding needs.
type Store interface {
	CountRecipes(ctx context.Context) (int, error)
	AddRecipe(ctx context.Context, draft model.RecipeDraft) (model.Recipe, error)
}

// Seed adds drafts to store when the store is empty and returns how many
// recipes were added. A non-empty store is left alone.
func Seed(ctx context.Context, store Store, drafts []model.RecipeDraft) (int, error) {
	log := logger.Default("catalog")

	n, err := store.CountRecipes(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: count recipes: %w", err)
	}
	if n > 0 {
		log.Info(ctx, "catalog already populated, skipping seed", logger.Int("recipes", n))
		metrics.UpdateCatalogSize(n)
		return 0, nil
	}

	for _, d := range drafts {
		if _, err := store.AddRecipe(ctx, d); err != nil {
			return 0, fmt.Errorf("catalog: add %q: %w", d.Name, err)
		}
		metrics.RecordRecipeAdded("seed")
	}
	metrics.UpdateCatalogSize(len(drafts))
	log.Info(ctx, "catalog seeded", logger.Int("recipes", len(drafts)))
	return len(drafts), nil
}

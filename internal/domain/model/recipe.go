// Package model contains domain models passed between layers.
package model

import "time"

// DefaultRating is the rating a recipe starts with and the value assumed
// when a stored rating is missing.
const DefaultRating = 3.0

// Rating bounds.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// RecipeID identifies a recipe in the catalog.
type RecipeID int64

// Recipe is a catalog entry together with its mutable draw statistics.
type Recipe struct {
	ID          RecipeID
	Name        string
	NameEn      string
	Category    string
	Difficulty  int // 1..3
	CookingTime int // minutes
	Source      Source
	Rating      float64 // [1,5], 0 means unset
	DrawCount   int
	CreatedAt   time.Time

	Ingredients  []Ingredient
	Instructions []InstructionStep
	Nutrition    *Nutrition
}

// EffectiveRating returns the rating, substituting DefaultRating when unset.
func (r Recipe) EffectiveRating() float64 {
	if r.Rating <= 0 {
		return DefaultRating
	}
	return r.Rating
}

// Source records where a recipe came from.
type Source struct {
	Article     string
	Author      string
	Link        string
	Thumbnail   string
	PublishDate string
	Likes       int
}

// Ingredient is one line of a recipe's shopping list.
type Ingredient struct {
	Name     string
	Quantity float64
	Unit     string
	Notes    string
}

// InstructionStep is a numbered cooking step.
type InstructionStep struct {
	Number int
	Text   string
	Tips   string
}

// Nutrition holds per-serving nutrition facts.
type Nutrition struct {
	Calories     float64
	Protein      float64
	Carbohydrate float64
	Fat          float64
	Fiber        float64
}

// Step returns the instruction with the given number.
func (r Recipe) Step(number int) (InstructionStep, bool) {
	for _, s := range r.Instructions {
		if s.Number == number {
			return s, true
		}
	}
	return InstructionStep{}, false
}

// DrawRecord is one day's selection in the draw ledger.
type DrawRecord struct {
	ID        int64
	RecipeID  RecipeID
	Date      Date
	Confirmed bool
	CreatedAt time.Time
}

// HistoryEntry is a draw record joined with the recipe's display names.
type HistoryEntry struct {
	DrawRecord
	RecipeName   string
	RecipeNameEn string
}

// RecipeDraft is a recipe that has not been stored yet, as produced by the
// seed catalog or the advisor.
type RecipeDraft struct {
	Name         string
	NameEn       string
	Category     string
	Difficulty   int
	CookingTime  int
	Source       Source
	Ingredients  []Ingredient
	Instructions []InstructionStep
	Nutrition    *Nutrition
}

// Normalize clamps difficulty into [1,3], drops negative cooking times and
// renumbers steps that arrive without numbers.
func (d *RecipeDraft) Normalize() {
	switch {
	case d.Difficulty < 1:
		d.Difficulty = 1
	case d.Difficulty > 3:
		d.Difficulty = 3
	}
	if d.CookingTime < 0 {
		d.CookingTime = 0
	}
	for i := range d.Instructions {
		if d.Instructions[i].Number <= 0 {
			d.Instructions[i].Number = i + 1
		}
	}
}

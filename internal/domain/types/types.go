// Package types contains the JSON shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/breakfast/internal/domain/model"
)

// Ingredient is the wire form of model.Ingredient.
type Ingredient struct {
	Name     string  `json:"ingredient_name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Notes    string  `json:"notes,omitempty"`
}

// Instruction is the wire form of model.InstructionStep.
type Instruction struct {
	Step int    `json:"step_number"`
	Text string `json:"instruction"`
	Tips string `json:"tips,omitempty"`
}

// Nutrition is the wire form of model.Nutrition.
type Nutrition struct {
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Carbohydrate float64 `json:"carbohydrate"`
	Fat          float64 `json:"fat"`
	Fiber        float64 `json:"fiber"`
}

// Recipe is a catalog entry with its children.
type Recipe struct {
	ID            int64         `json:"id"`
	Name          string        `json:"recipe_name"`
	NameEn        string        `json:"recipe_name_en"`
	Category      string        `json:"category"`
	Difficulty    int           `json:"difficulty"`
	CookingTime   int           `json:"cooking_time"`
	SourceArticle string        `json:"source_article,omitempty"`
	SourceAuthor  string        `json:"source_author,omitempty"`
	SourceLink    string        `json:"source_link,omitempty"`
	ThumbnailURL  string        `json:"thumbnail_url,omitempty"`
	LikesCount    int           `json:"likes_count,omitempty"`
	Rating        float64       `json:"user_rating"`
	TimesDrawn    int           `json:"times_drawn"`
	Nutrition     *Nutrition    `json:"nutrition,omitempty"`
	Ingredients   []Ingredient  `json:"ingredients,omitempty"`
	Instructions  []Instruction `json:"instructions,omitempty"`
}

// Draw is the response to a draw request.
type Draw struct {
	Recipe
	DrawDate         string  `json:"draw_date,omitempty"`
	AlreadyConfirmed bool    `json:"already_confirmed"`
	Probability      float64 `json:"probability,omitempty"`
}

// Odds explains one recipe's share of the weighted draw.
type Odds struct {
	RecipeID    int64   `json:"recipe_id"`
	Name        string  `json:"recipe_name"`
	Rating      float64 `json:"user_rating"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
}

// Confirmation acknowledges a confirmed draw.
type Confirmation struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	DrawDate string `json:"draw_date"`
	RecipeID int64  `json:"recipe_id"`
}

// RatingResult is returned after feedback is applied.
type RatingResult struct {
	Success   bool    `json:"success"`
	NewRating float64 `json:"new_rating"`
	Message   string  `json:"message"`
}

// HistoryEntry is one row of the draw ledger.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	RecipeID  int64     `json:"recipe_id"`
	Name      string    `json:"recipe_name"`
	NameEn    string    `json:"recipe_name_en"`
	DrawDate  string    `json:"draw_date"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Tomorrow reports tomorrow's confirmed meal, if any.
type Tomorrow struct {
	Confirmed bool    `json:"confirmed"`
	Message   string  `json:"message,omitempty"`
	DrawDate  string  `json:"draw_date"`
	Recipe    *Recipe `json:"recipe,omitempty"`
}

// HelpRequest is a cooking question. Either RecipeID names a stored recipe
// or the recipe's name, steps and ingredients are passed inline.
type HelpRequest struct {
	RecipeID    int64    `json:"recipe_id,omitempty" validate:"gte=0"`
	RecipeName  string   `json:"recipe_name"`
	Steps       []string `json:"steps"`
	Ingredients []string `json:"ingredients"`
	Question    string   `json:"question" validate:"required"`
}

// HelpAnswer is the advisor's reply to a cooking question.
type HelpAnswer struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
	Fallback bool   `json:"fallback"`
}

// StepExplanation expands one recipe step.
type StepExplanation struct {
	RecipeID    int64  `json:"recipe_id"`
	Step        int    `json:"step_number"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
}

// IngredientTips gives buying and storage advice.
type IngredientTips struct {
	Ingredient string `json:"ingredient"`
	Tips       string `json:"tips"`
	Provider   string `json:"provider"`
}

// RecipeAdded is returned after a generated or extracted recipe is stored.
type RecipeAdded struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	RecipeID int64   `json:"recipe_id"`
	Recipe   *Recipe `json:"recipe,omitempty"`
}

// ChannelResult is one channel's delivery outcome.
type ChannelResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ReminderResult reports a reminder that was sent.
type ReminderResult struct {
	Success   bool            `json:"success"`
	DrawDate  string          `json:"draw_date"`
	Confirmed bool            `json:"confirmed"`
	Recipe    string          `json:"recipe_name,omitempty"`
	Channels  []ChannelResult `json:"channels"`
}

// Stats summarizes the running service.
type Stats struct {
	Started          bool     `json:"started"`
	CatalogSize      int      `json:"catalog_size"`
	Timezone         string   `json:"timezone"`
	ReminderAt       string   `json:"reminder_at,omitempty"`
	ReminderQueue    int      `json:"reminder_queue"`
	ReminderWorkers  int      `json:"reminder_workers"`
	RemindersTracked int64    `json:"reminders_tracked"`
	AIProviders      []string `json:"ai_providers"`
	NotifyChannels   []string `json:"notify_channels"`
}

// FromRecipe converts a domain recipe to its wire form.
func FromRecipe(r model.Recipe) Recipe {
	out := Recipe{
		ID:            int64(r.ID),
		Name:          r.Name,
		NameEn:        r.NameEn,
		Category:      r.Category,
		Difficulty:    r.Difficulty,
		CookingTime:   r.CookingTime,
		SourceArticle: r.Source.Article,
		SourceAuthor:  r.Source.Author,
		SourceLink:    r.Source.Link,
		ThumbnailURL:  r.Source.Thumbnail,
		LikesCount:    r.Source.Likes,
		Rating:        r.EffectiveRating(),
		TimesDrawn:    r.DrawCount,
	}
	if r.Nutrition != nil {
		n := Nutrition(*r.Nutrition)
		out.Nutrition = &n
	}
	for _, ing := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, Ingredient(ing))
	}
	for _, s := range r.Instructions {
		out.Instructions = append(out.Instructions, Instruction{Step: s.Number, Text: s.Text, Tips: s.Tips})
	}
	return out
}

// FromHistory converts ledger rows to their wire form.
func FromHistory(entries []model.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			ID:        e.ID,
			RecipeID:  int64(e.RecipeID),
			Name:      e.RecipeName,
			NameEn:    e.RecipeNameEn,
			DrawDate:  e.Date.String(),
			Confirmed: e.Confirmed,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

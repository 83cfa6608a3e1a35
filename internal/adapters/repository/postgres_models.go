package repository

import (
	"database/sql"
	"time"

	"github.com/okian/breakfast/internal/domain/model"
)

// GORM models for the Postgres store. Column names match the SQLite schema.

type recipeRow struct {
	CreatedAt     time.Time        `gorm:"not null"`
	Nutrition     *nutritionRow    `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Name          string           `gorm:"column:recipe_name;not null"`
	NameEn        string           `gorm:"column:recipe_name_en;not null;default:''"`
	Category      string           `gorm:"not null;default:''"`
	SourceArticle string           `gorm:"not null;default:''"`
	SourceAuthor  string           `gorm:"not null;default:''"`
	SourceLink    string           `gorm:"not null;default:''"`
	ThumbnailURL  string           `gorm:"column:thumbnail_url;not null;default:''"`
	PublishDate   string           `gorm:"not null;default:''"`
	Ingredients   []ingredientRow  `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Instructions  []instructionRow `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Rating        sql.NullFloat64  `gorm:"column:user_rating;type:double precision;default:3.0;index:idx_recipes_rating,sort:desc"`
	ID            int64            `gorm:"primaryKey;autoIncrement"`
	Difficulty    int              `gorm:"not null;default:1"`
	CookingTime   int              `gorm:"not null;default:0"`
	LikesCount    int              `gorm:"not null;default:0"`
	TimesDrawn    int              `gorm:"not null;default:0"`
}

func (recipeRow) TableName() string { return "recipes" }

type ingredientRow struct {
	Name     string  `gorm:"column:ingredient_name;not null"`
	Unit     string  `gorm:"not null;default:''"`
	Notes    string  `gorm:"not null;default:''"`
	ID       int64   `gorm:"primaryKey;autoIncrement"`
	RecipeID int64   `gorm:"index;not null"`
	Quantity float64 `gorm:"not null;default:0"`
}

func (ingredientRow) TableName() string { return "ingredients" }

type instructionRow struct {
	Instruction string `gorm:"not null"`
	Tips        string `gorm:"not null;default:''"`
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RecipeID    int64  `gorm:"index:idx_instructions_recipe,priority:1;not null"`
	StepNumber  int    `gorm:"index:idx_instructions_recipe,priority:2;not null"`
}

func (instructionRow) TableName() string { return "instructions" }

type nutritionRow struct {
	RecipeID     int64 `gorm:"primaryKey;autoIncrement:false"`
	Calories     float64
	Protein      float64
	Carbohydrate float64
	Fat          float64
	Fiber        float64
}

func (nutritionRow) TableName() string { return "nutrition" }

type drawRow struct {
	CreatedAt time.Time `gorm:"not null"`
	DrawDate  string    `gorm:"type:varchar(10);index:idx_draw_history_date;not null"`
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	RecipeID  int64     `gorm:"index;not null"`
	Confirmed bool      `gorm:"not null;default:false"`
}

func (drawRow) TableName() string { return "draw_history" }

type historyRow struct {
	CreatedAt    time.Time
	DrawDate     string
	RecipeName   string
	RecipeNameEn string
	ID           int64
	RecipeID     int64
	Confirmed    bool
}

func (r recipeRow) toModel() model.Recipe {
	out := model.Recipe{
		ID:          model.RecipeID(r.ID),
		Name:        r.Name,
		NameEn:      r.NameEn,
		Category:    r.Category,
		Difficulty:  r.Difficulty,
		CookingTime: r.CookingTime,
		Source: model.Source{
			Article:     r.SourceArticle,
			Author:      r.SourceAuthor,
			Link:        r.SourceLink,
			Thumbnail:   r.ThumbnailURL,
			PublishDate: r.PublishDate,
			Likes:       r.LikesCount,
		},
		Rating:    r.Rating.Float64,
		DrawCount: r.TimesDrawn,
		CreatedAt: r.CreatedAt.UTC(),
	}
	for _, ing := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, model.Ingredient{
			Name: ing.Name, Quantity: ing.Quantity, Unit: ing.Unit, Notes: ing.Notes,
		})
	}
	for _, st := range r.Instructions {
		out.Instructions = append(out.Instructions, model.InstructionStep{
			Number: st.StepNumber, Text: st.Instruction, Tips: st.Tips,
		})
	}
	if r.Nutrition != nil {
		out.Nutrition = &model.Nutrition{
			Calories:     r.Nutrition.Calories,
			Protein:      r.Nutrition.Protein,
			Carbohydrate: r.Nutrition.Carbohydrate,
			Fat:          r.Nutrition.Fat,
			Fiber:        r.Nutrition.Fiber,
		}
	}
	return out
}

func recipeRowFromDraft(d model.RecipeDraft, created time.Time) recipeRow {
	row := recipeRow{
		Name:          d.Name,
		NameEn:        d.NameEn,
		Category:      d.Category,
		Difficulty:    d.Difficulty,
		CookingTime:   d.CookingTime,
		SourceArticle: d.Source.Article,
		SourceAuthor:  d.Source.Author,
		SourceLink:    d.Source.Link,
		ThumbnailURL:  d.Source.Thumbnail,
		PublishDate:   d.Source.PublishDate,
		LikesCount:    d.Source.Likes,
		Rating:        sql.NullFloat64{Float64: model.DefaultRating, Valid: true},
		CreatedAt:     created,
	}
	for _, ing := range d.Ingredients {
		row.Ingredients = append(row.Ingredients, ingredientRow{
			Name: ing.Name, Quantity: ing.Quantity, Unit: ing.Unit, Notes: ing.Notes,
		})
	}
	for _, st := range d.Instructions {
		row.Instructions = append(row.Instructions, instructionRow{
			StepNumber: st.Number, Instruction: st.Text, Tips: st.Tips,
		})
	}
	if n := d.Nutrition; n != nil {
		row.Nutrition = &nutritionRow{
			Calories: n.Calories, Protein: n.Protein, Carbohydrate: n.Carbohydrate, Fat: n.Fat, Fiber: n.Fiber,
		}
	}
	return row
}

func (r drawRow) toModel() (model.DrawRecord, error) {
	d, err := model.ParseDate(r.DrawDate)
	if err != nil {
		return model.DrawRecord{}, err
	}
	return model.DrawRecord{
		ID:        r.ID,
		RecipeID:  model.RecipeID(r.RecipeID),
		Date:      d,
		Confirmed: r.Confirmed,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

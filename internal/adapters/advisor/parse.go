package advisor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/okian/breakfast/internal/domain/model"
)

// recipeReply is the JSON shape the generation and extraction prompts ask for.
type recipeReply struct {
	Success     *bool   `json:"success,omitempty"`
	Error       string  `json:"error,omitempty"`
	Name        string  `json:"recipe_name"`
	NameEn      string  `json:"recipe_name_en"`
	Category    string  `json:"category"`
	Difficulty  flexNum `json:"difficulty"`
	CookingTime flexNum `json:"cooking_time"`
	Ingredients []struct {
		Name     string  `json:"name"`
		Quantity flexNum `json:"quantity"`
		Unit     string  `json:"unit"`
		Notes    string  `json:"notes"`
	} `json:"ingredients"`
	Instructions []struct {
		Step        flexNum `json:"step"`
		Description string  `json:"description"`
	} `json:"instructions"`
	Nutrition *struct {
		Calories     flexNum `json:"calories"`
		Protein      flexNum `json:"protein"`
		Carbohydrate flexNum `json:"carbohydrate"`
		Fat          flexNum `json:"fat"`
		Fiber        flexNum `json:"fiber"`
	} `json:"nutrition"`
}

// flexNum accepts numbers, numeric strings and anything else as zero. Models
// often answer "适量" for a quantity.
type flexNum float64

func (f *flexNum) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			*f = 0
			return nil //nolint:nilerr // unparsable strings count as zero
		}
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil //nolint:nilerr // unparsable strings count as zero
	}
	*f = flexNum(v)
	return nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseRecipe turns a model reply into a normalized draft.
func parseRecipe(reply string) (model.RecipeDraft, error) {
	var r recipeReply
	if err := json.Unmarshal([]byte(stripFences(reply)), &r); err != nil {
		return model.RecipeDraft{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	if r.Error != "" || (r.Success != nil && !*r.Success) {
		msg := r.Error
		if msg == "" {
			msg = "no recipe in reply"
		}
		return model.RecipeDraft{}, fmt.Errorf("%w: %s", ErrUnrecognized, msg)
	}
	if strings.TrimSpace(r.Name) == "" {
		return model.RecipeDraft{}, fmt.Errorf("%w: missing recipe_name", ErrUnrecognized)
	}

	d := model.RecipeDraft{
		Name:        strings.TrimSpace(r.Name),
		NameEn:      strings.TrimSpace(r.NameEn),
		Category:    r.Category,
		Difficulty:  int(r.Difficulty),
		CookingTime: int(r.CookingTime),
	}
	if d.Category == "" {
		d.Category = "其他"
	}
	if d.Difficulty == 0 {
		d.Difficulty = 2
	}
	if d.CookingTime == 0 {
		d.CookingTime = 15
	}
	for _, ing := range r.Ingredients {
		if ing.Name == "" {
			continue
		}
		d.Ingredients = append(d.Ingredients, model.Ingredient{
			Name:     ing.Name,
			Quantity: float64(ing.Quantity),
			Unit:     ing.Unit,
			Notes:    ing.Notes,
		})
	}
	for _, st := range r.Instructions {
		if st.Description == "" {
			continue
		}
		d.Instructions = append(d.Instructions, model.InstructionStep{
			Number: int(st.Step),
			Text:   st.Description,
		})
	}
	if n := r.Nutrition; n != nil {
		d.Nutrition = &model.Nutrition{
			Calories:     float64(n.Calories),
			Protein:      float64(n.Protein),
			Carbohydrate: float64(n.Carbohydrate),
			Fat:          float64(n.Fat),
			Fiber:        float64(n.Fiber),
		}
	}
	d.Normalize()
	return d, nil
}

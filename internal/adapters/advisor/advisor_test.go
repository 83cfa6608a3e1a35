package advisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
)

// fakeAPI serves chat completions with a fixed reply or status.
type fakeAPI struct {
	srv    *httptest.Server
	hits   atomic.Int32
	status int
	reply  string
	last   atomic.Value // payload
}

func newFakeAPI(status int, reply string) *fakeAPI {
	f := &fakeAPI{status: status, reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		var p payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		f.last.Store(p)
		if r.URL.Path != "/chat/completions" || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": f.reply}}},
		})
	}))
	return f
}

func (f *fakeAPI) payload() payload {
	p, _ := f.last.Load().(payload)
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.Timeout = 5 * time.Second
	return cfg
}

const omeletteJSON = "```json\n" + `{
  "recipe_name": "番茄炒蛋",
  "recipe_name_en": "Tomato Scrambled Eggs",
  "category": "蛋白质",
  "difficulty": 1,
  "cooking_time": "10",
  "ingredients": [
    {"name": "鸡蛋", "quantity": 2, "unit": "个", "notes": ""},
    {"name": "盐", "quantity": "适量", "unit": "", "notes": ""}
  ],
  "instructions": [
    {"step": 1, "description": "番茄切块"},
    {"step": 2, "description": "炒蛋后加入番茄"}
  ],
  "nutrition": {"calories": 180, "protein": 12, "carbohydrate": 6, "fat": 11, "fiber": 1}
}` + "\n```"

func TestAdvisorWithoutProviders(t *testing.T) {
	Convey("Given an advisor without API keys", t, func() {
		a := New(testConfig(), WithLogger(logger.Nop()))
		ctx := context.Background()

		So(a.Configured(), ShouldBeFalse)

		Convey("When asking about heat", func() {
			ans := a.CookingHelp(ctx, nil, "这道菜火候怎么控制？")

			Convey("Then the keyword answer is returned", func() {
				So(ans.Fallback(), ShouldBeTrue)
				So(ans.Text, ShouldStartWith, "🔥")
			})
		})

		Convey("When asking something without a keyword", func() {
			ans := a.CookingHelp(ctx, nil, "hello")
			So(ans.Text, ShouldStartWith, "🤔")
		})

		Convey("When explaining a step", func() {
			ans := a.ExplainStep(ctx, "清蒸鸡蛋", 2, "过筛去泡沫")
			So(ans.Text, ShouldContainSubstring, "步骤 2: 过筛去泡沫")
		})

		Convey("When asking about an uncommon ingredient", func() {
			ans := a.IngredientTips(ctx, "山药")
			So(ans.Text, ShouldEqual, "💡 山药: 选择新鲜的，储存在适当条件下。")
		})

		Convey("When generating or extracting a recipe", func() {
			_, genErr := a.GenerateRecipe(ctx, "番茄炒蛋")
			_, imgErr := a.ExtractRecipe(ctx, "aGVsbG8=")

			Convey("Then both report that nothing is configured", func() {
				So(errors.Is(genErr, ErrNotConfigured), ShouldBeTrue)
				So(errors.Is(imgErr, ErrNotConfigured), ShouldBeTrue)
			})
		})

		Convey("When the dish name is blank", func() {
			_, err := a.GenerateRecipe(ctx, "  ")
			So(errors.Is(err, ErrEmptyInput), ShouldBeTrue)
		})
	})
}

// countingTransport counts requests sent through it.
type countingTransport struct {
	n atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.n.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestAdvisorSharedHTTPClient(t *testing.T) {
	Convey("Given an advisor built with a shared HTTP client and no global logger", t, func() {
		api := newFakeAPI(http.StatusOK, "多放葱花")
		defer api.srv.Close()

		tr := &countingTransport{}
		cfg := testConfig()
		cfg.OpenAIKey, cfg.OpenAIURL = "ok", api.srv.URL
		a := New(cfg, WithSharedHTTPClient(&http.Client{Transport: tr, Timeout: 5 * time.Second}))

		Convey("When a provider is called", func() {
			ans := a.IngredientTips(context.Background(), "葱")

			Convey("Then the request goes through the shared client", func() {
				So(ans.Provider, ShouldEqual, ProviderOpenAI)
				So(ans.Text, ShouldEqual, "多放葱花")
				So(tr.n.Load(), ShouldEqual, int32(1))
				So(api.hits.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestAdvisorProviderChain(t *testing.T) {
	Convey("Given a failing Perplexity and a healthy OpenAI", t, func() {
		pplx := newFakeAPI(http.StatusInternalServerError, "")
		openai := newFakeAPI(http.StatusOK, "先用中火预热锅 🍳")
		defer pplx.srv.Close()
		defer openai.srv.Close()

		cfg := testConfig()
		cfg.PerplexityKey, cfg.PerplexityURL = "pk", pplx.srv.URL
		cfg.OpenAIKey, cfg.OpenAIURL = "ok", openai.srv.URL
		a := New(cfg, WithLogger(logger.Nop()))
		ctx := context.Background()

		So(a.Providers(), ShouldResemble, []string{ProviderPerplexity, ProviderOpenAI})

		Convey("When asking for help with a recipe", func() {
			r := &model.Recipe{
				Name:         "清蒸鸡蛋",
				Ingredients:  []model.Ingredient{{Name: "鸡蛋"}},
				Instructions: []model.InstructionStep{{Number: 1, Text: "打蛋"}},
			}
			ans := a.CookingHelp(ctx, r, "要蒸多久？")

			Convey("Then OpenAI answers after Perplexity fails", func() {
				So(ans.Provider, ShouldEqual, ProviderOpenAI)
				So(ans.Text, ShouldEqual, "先用中火预热锅 🍳")
				So(pplx.hits.Load(), ShouldEqual, int32(1))
			})

			Convey("Then the prompt carries the recipe", func() {
				p := openai.payload()
				So(p.Model, ShouldEqual, "gpt-4o-mini")
				So(p.MaxTokens, ShouldEqual, helpMaxTokens)
				So(p.Messages, ShouldHaveLength, 2)
				So(p.Messages[1].Content[0].Text, ShouldContainSubstring, "当前菜品: 清蒸鸡蛋")
				So(p.Messages[1].Content[0].Text, ShouldContainSubstring, "1. 打蛋")
			})
		})

		Convey("When Perplexity keeps failing", func() {
			for i := 0; i < 5; i++ {
				a.ExplainStep(ctx, "清蒸鸡蛋", 1, "打蛋")
			}

			Convey("Then its breaker opens and it stops being called", func() {
				So(pplx.hits.Load(), ShouldEqual, int32(cfg.BreakerFailures))
				So(openai.hits.Load(), ShouldEqual, int32(5))
			})
		})

		Convey("When asking about eggs", func() {
			ans := a.IngredientTips(ctx, "鸡蛋")

			Convey("Then the local tip is used without a request", func() {
				So(ans.Text, ShouldStartWith, "🥚")
				So(pplx.hits.Load()+openai.hits.Load(), ShouldEqual, int32(0))
			})
		})
	})

	Convey("Given every provider failing", t, func() {
		pplx := newFakeAPI(http.StatusBadGateway, "")
		defer pplx.srv.Close()

		cfg := testConfig()
		cfg.PerplexityKey, cfg.PerplexityURL = "pk", pplx.srv.URL
		a := New(cfg, WithLogger(logger.Nop()))

		Convey("Then help degrades to the keyword answer", func() {
			ans := a.CookingHelp(context.Background(), nil, "失败了怎么办")
			So(ans.Fallback(), ShouldBeTrue)
			So(ans.Text, ShouldStartWith, "💪")
		})

		Convey("Then generation reports the provider error", func() {
			_, err := a.GenerateRecipe(context.Background(), "豆浆")
			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Code, ShouldEqual, http.StatusBadGateway)
		})
	})
}

func TestAdvisorRecipes(t *testing.T) {
	Convey("Given a provider that returns a fenced recipe", t, func() {
		api := newFakeAPI(http.StatusOK, omeletteJSON)
		defer api.srv.Close()

		cfg := testConfig()
		cfg.OpenAIKey, cfg.OpenAIURL = "ok", api.srv.URL
		a := New(cfg, WithLogger(logger.Nop()))

		Convey("When generating a recipe", func() {
			d, err := a.GenerateRecipe(context.Background(), "番茄炒蛋")

			Convey("Then the draft is parsed", func() {
				So(err, ShouldBeNil)
				So(d.Name, ShouldEqual, "番茄炒蛋")
				So(d.CookingTime, ShouldEqual, 10)
				So(d.Ingredients, ShouldHaveLength, 2)
				So(d.Ingredients[1].Quantity, ShouldEqual, 0.0)
				So(d.Instructions[1].Number, ShouldEqual, 2)
				So(d.Nutrition.Calories, ShouldEqual, 180.0)
			})
		})

		Convey("When extracting from a photo", func() {
			_, err := a.ExtractRecipe(context.Background(), "aGVsbG8=")

			Convey("Then the vision model receives a data URL", func() {
				So(err, ShouldBeNil)
				p := api.payload()
				So(p.Model, ShouldEqual, "gpt-4o")
				So(p.Messages[1].Content[1].ImageURL.URL, ShouldEqual, "data:image/jpeg;base64,aGVsbG8=")
			})
		})
	})

	Convey("Given a vision reply without a recipe", t, func() {
		api := newFakeAPI(http.StatusOK, `{"success": false, "error": "无法识别食谱信息"}`)
		defer api.srv.Close()

		cfg := testConfig()
		cfg.OpenAIKey, cfg.OpenAIURL = "ok", api.srv.URL
		a := New(cfg, WithLogger(logger.Nop()))

		_, err := a.ExtractRecipe(context.Background(), "aGVsbG8=")
		So(errors.Is(err, ErrUnrecognized), ShouldBeTrue)
	})

	Convey("Given only Perplexity", t, func() {
		cfg := testConfig()
		cfg.PerplexityKey = "pk"
		a := New(cfg, WithLogger(logger.Nop()))

		_, err := a.ExtractRecipe(context.Background(), "aGVsbG8=")
		So(errors.Is(err, ErrVisionUnavailable), ShouldBeTrue)
	})
}

func TestParseHelpers(t *testing.T) {
	Convey("stripFences", t, func() {
		So(stripFences("```json\n{\"a\":1}\n```"), ShouldEqual, `{"a":1}`)
		So(stripFences("```\n{}\n```"), ShouldEqual, "{}")
		So(stripFences(`  {"a":1} `), ShouldEqual, `{"a":1}`)
	})

	Convey("parseRecipe", t, func() {
		Convey("rejects prose", func() {
			_, err := parseRecipe("抱歉，我无法生成")
			So(errors.Is(err, ErrUnrecognized), ShouldBeTrue)
		})

		Convey("rejects a nameless recipe", func() {
			_, err := parseRecipe(`{"category":"饮品"}`)
			So(errors.Is(err, ErrUnrecognized), ShouldBeTrue)
		})

		Convey("fills defaults", func() {
			d, err := parseRecipe(`{"recipe_name":"豆浆","difficulty":9}`)
			So(err, ShouldBeNil)
			So(d.Category, ShouldEqual, "其他")
			So(d.Difficulty, ShouldEqual, 3)
			So(d.CookingTime, ShouldEqual, 15)
			So(d.Nutrition, ShouldBeNil)
		})
	})
}

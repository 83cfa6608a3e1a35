// Package advisor answers cooking questions and turns dish names or photos
// into recipe drafts using OpenAI-compatible chat-completion APIs.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// Provider names.
const (
	ProviderPerplexity = "perplexity"
	ProviderOpenAI     = "openai"
	ProviderFallback   = "fallback"
)

// Token limits per operation.
const (
	helpMaxTokens       = 500
	stepMaxTokens       = 400
	ingredientMaxTokens = 150
	recipeMaxTokens     = 1500
)

var (
	// ErrNotConfigured is returned when no provider has an API key.
	ErrNotConfigured = errors.New("advisor: no AI provider configured")
	// ErrVisionUnavailable is returned for image requests when only a
	// text-only provider is configured.
	ErrVisionUnavailable = errors.New("advisor: image recognition requires OpenAI")
	// ErrUnrecognized is returned when a reply does not contain a recipe.
	ErrUnrecognized = errors.New("advisor: reply is not a recipe")
	// ErrEmptyInput is returned for blank questions, names or images.
	ErrEmptyInput = errors.New("advisor: empty input")
)

// Config holds provider credentials and resilience settings.
type Config struct {
	PerplexityKey   string
	PerplexityURL   string
	PerplexityModel string

	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string
	VisionModel string

	Timeout     time.Duration
	Temperature float64

	RequestsPerSecond float64
	Burst             int

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the public endpoints and models without keys.
func DefaultConfig() Config {
	return Config{
		PerplexityURL:     "https://api.perplexity.ai",
		PerplexityModel:   "sonar-pro",
		OpenAIURL:         "https://api.openai.com/v1",
		OpenAIModel:       "gpt-4o-mini",
		VisionModel:       "gpt-4o",
		Timeout:           30 * time.Second,
		Temperature:       0.7,
		RequestsPerSecond: 2,
		Burst:             4,
		BreakerFailures:   3,
		BreakerTimeout:    time.Minute,
	}
}

// Answer is a text reply together with who produced it.
type Answer struct {
	Text     string
	Provider string
}

// Fallback reports whether the answer came from the built-in texts.
func (a Answer) Fallback() bool { return a.Provider == ProviderFallback }

// Option configures an Advisor.
type Option func(*options)

type options struct {
	log  logger.Logger
	http *http.Client
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSharedHTTPClient shares one HTTP client between providers.
func WithSharedHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.http = hc }
}

type provider struct {
	name    string
	client  *Client
	breaker *gobreaker.CircuitBreaker[string]
}

// Advisor routes requests to the first healthy provider.
type Advisor struct {
	chain   []*provider
	vision  *provider
	limiter *rate.Limiter
	log     logger.Logger
}

// New builds an Advisor. Providers without a key are skipped; an Advisor
// with no providers answers from the built-in texts only.
func New(cfg Config, opts ...Option) *Advisor {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.Default("advisor")
	}
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}

	a := &Advisor{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     o.log,
	}

	clientOpts := func(model string) []ClientOption {
		co := []ClientOption{
			WithModel(model),
			WithTemperature(cfg.Temperature),
			WithHTTPTimeout(cfg.Timeout),
		}
		if o.http != nil {
			co = append(co, WithHTTPClient(o.http))
		}
		return co
	}

	if cfg.PerplexityKey != "" {
		c := NewClient(orDefault(cfg.PerplexityURL, def.PerplexityURL), cfg.PerplexityKey,
			clientOpts(orDefault(cfg.PerplexityModel, def.PerplexityModel))...)
		a.chain = append(a.chain, a.newProvider(ProviderPerplexity, c, cfg))
	}
	if cfg.OpenAIKey != "" {
		c := NewClient(orDefault(cfg.OpenAIURL, def.OpenAIURL), cfg.OpenAIKey,
			clientOpts(orDefault(cfg.OpenAIModel, def.OpenAIModel))...)
		a.chain = append(a.chain, a.newProvider(ProviderOpenAI, c, cfg))

		vc := NewClient(orDefault(cfg.OpenAIURL, def.OpenAIURL), cfg.OpenAIKey,
			clientOpts(orDefault(cfg.VisionModel, def.VisionModel))...)
		a.vision = a.newProvider(ProviderOpenAI+"-vision", vc, cfg)
	}
	return a
}

func (a *Advisor) newProvider(name string, c *Client, cfg Config) *provider {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultConfig().BreakerFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().BreakerTimeout
	}
	metrics.UpdateBreakerState(name, int(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the provider
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateBreakerState(name, int(to))
		},
	})
	return &provider{name: name, client: c, breaker: cb}
}

// Configured reports whether at least one provider has credentials.
func (a *Advisor) Configured() bool { return len(a.chain) > 0 }

// Providers lists the configured provider names in the order they are tried.
func (a *Advisor) Providers() []string {
	out := make([]string, 0, len(a.chain))
	for _, p := range a.chain {
		out = append(out, p.name)
	}
	return out
}

// call runs one request on p behind the limiter and p's breaker.
func (a *Advisor) call(ctx context.Context, p *provider, op string, msgs []Message, maxTokens int) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("advisor: rate limit wait: %w", err)
	}
	start := time.Now()
	reply, err := p.breaker.Execute(func() (string, error) {
		return p.client.Chat(ctx, msgs, maxTokens)
	})
	metrics.RecordAdvisorLatency(p.name, float64(time.Since(start).Milliseconds()))

	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "breaker_open"
	case err != nil:
		status = "error"
	}
	metrics.RecordAdvisorRequest(p.name, op, status)
	if err != nil {
		a.log.Warn(ctx, "advisor request failed",
			logger.String("provider", p.name),
			logger.String("operation", op),
			logger.Error(err))
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// ask tries each provider in order and returns the first reply.
func (a *Advisor) ask(ctx context.Context, op string, msgs []Message, maxTokens int) (Answer, error) {
	if len(a.chain) == 0 {
		return Answer{}, ErrNotConfigured
	}
	var errs []error
	for _, p := range a.chain {
		reply, err := a.call(ctx, p, op, msgs, maxTokens)
		if err == nil {
			return Answer{Text: reply, Provider: p.name}, nil
		}
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return Answer{}, errors.Join(errs...)
}

// CookingHelp answers a free-form question, optionally about recipe r. It
// never fails: without a provider the keyword answers are used.
func (a *Advisor) CookingHelp(ctx context.Context, r *model.Recipe, question string) Answer {
	if !a.Configured() {
		metrics.RecordAdvisorRequest(ProviderFallback, "help", "ok")
		return Answer{Text: fallbackHelp(question), Provider: ProviderFallback}
	}

	name, ingredients, steps := "未指定", "未提供", ""
	if r != nil {
		name = r.Name
		if len(r.Ingredients) > 0 {
			names := make([]string, 0, len(r.Ingredients))
			for _, ing := range r.Ingredients {
				names = append(names, ing.Name)
			}
			ingredients = strings.Join(names, ", ")
		}
		var b strings.Builder
		for i, s := range r.Instructions {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s", i+1, s.Text)
		}
		steps = b.String()
	}

	ans, err := a.ask(ctx, "help", []Message{
		TextMessage(RoleSystem, helpSystemPrompt),
		TextMessage(RoleUser, fmt.Sprintf(helpUserPrompt, name, ingredients, steps, question)),
	}, helpMaxTokens)
	if err != nil {
		return Answer{Text: fallbackHelp(question), Provider: ProviderFallback}
	}
	return ans
}

// ExplainStep expands one numbered step of a recipe.
func (a *Advisor) ExplainStep(ctx context.Context, recipeName string, number int, text string) Answer {
	if !a.Configured() {
		return Answer{Text: fallbackStep(number, text), Provider: ProviderFallback}
	}
	ans, err := a.ask(ctx, "step", []Message{
		TextMessage(RoleSystem, stepSystemPrompt),
		TextMessage(RoleUser, fmt.Sprintf(stepUserPrompt, recipeName, number, text)),
	}, stepMaxTokens)
	if err != nil {
		return Answer{Text: fallbackStepFailed(number, text), Provider: ProviderFallback}
	}
	return ans
}

// IngredientTips gives buying and storage advice. Common ingredients are
// answered locally.
func (a *Advisor) IngredientTips(ctx context.Context, name string) Answer {
	name = strings.TrimSpace(name)
	if tip, ok := ingredientTips[name]; ok {
		return Answer{Text: tip, Provider: ProviderFallback}
	}
	if !a.Configured() {
		return Answer{Text: fallbackIngredient(name), Provider: ProviderFallback}
	}
	ans, err := a.ask(ctx, "ingredient", []Message{
		TextMessage(RoleSystem, ingredientSystemPrompt),
		TextMessage(RoleUser, fmt.Sprintf(ingredientUserPrompt, name)),
	}, ingredientMaxTokens)
	if err != nil {
		return Answer{Text: fallbackIngredientFailed(name), Provider: ProviderFallback}
	}
	return ans
}

// GenerateRecipe asks a provider for a complete recipe for dishName.
func (a *Advisor) GenerateRecipe(ctx context.Context, dishName string) (model.RecipeDraft, error) {
	dishName = strings.TrimSpace(dishName)
	if dishName == "" {
		return model.RecipeDraft{}, ErrEmptyInput
	}
	ans, err := a.ask(ctx, "generate", []Message{
		TextMessage(RoleSystem, generateSystemPrompt),
		TextMessage(RoleUser, fmt.Sprintf(generateUserPrompt, dishName)),
	}, recipeMaxTokens)
	if err != nil {
		return model.RecipeDraft{}, err
	}
	return parseRecipe(ans.Text)
}

// ExtractRecipe reads a recipe from a base64-encoded JPEG. Only OpenAI
// supports images.
func (a *Advisor) ExtractRecipe(ctx context.Context, imageBase64 string) (model.RecipeDraft, error) {
	imageBase64 = strings.TrimSpace(imageBase64)
	if imageBase64 == "" {
		return model.RecipeDraft{}, ErrEmptyInput
	}
	if a.vision == nil {
		if a.Configured() {
			return model.RecipeDraft{}, ErrVisionUnavailable
		}
		return model.RecipeDraft{}, ErrNotConfigured
	}
	if !strings.HasPrefix(imageBase64, "data:") {
		imageBase64 = "data:image/jpeg;base64," + imageBase64
	}

	reply, err := a.call(ctx, a.vision, "extract", []Message{
		TextMessage(RoleSystem, extractSystemPrompt),
		{
			Role: RoleUser,
			Content: []Content{
				{Type: "text", Text: extractUserPrompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageBase64}},
			},
		},
	}, recipeMaxTokens)
	if err != nil {
		return model.RecipeDraft{}, err
	}
	return parseRecipe(reply)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// IsUpstream reports whether err came from a provider: a non-200 reply, an
// empty reply or an open breaker.
func IsUpstream(err error) bool {
	var se *StatusError
	return errors.As(err, &se) ||
		errors.Is(err, ErrEmptyReply) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Package api exposes the breakfast service over JSON/HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/okian/breakfast/internal/adapters/http/swagger"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/types"
	"github.com/okian/breakfast/pkg/logger"
)

const (
	defaultHistoryLimit = 30
	defaultMaxHistory   = 365
	// Base64 photos of cookbook pages are large.
	defaultMaxBodyBytes = 16 << 20
)

// RecipeReader lists and loads recipes.
type RecipeReader interface {
	Recipes(ctx context.Context) ([]types.Recipe, error)
	Recipe(ctx context.Context, id model.RecipeID) (types.Recipe, error)
}

// Drawer runs the per-day draw.
type Drawer interface {
	Tomorrow() model.Date
	QuickDraw(ctx context.Context) (types.Draw, error)
	Draw(ctx context.Context, date model.Date) (types.Draw, error)
	Odds(ctx context.Context) ([]types.Odds, error)
	Confirm(ctx context.Context, date model.Date, id model.RecipeID) (types.Confirmation, error)
	Confirmed(ctx context.Context, date model.Date) (types.Tomorrow, error)
	History(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// Rater applies feedback.
type Rater interface {
	Rate(ctx context.Context, id model.RecipeID, feedback float64) (types.RatingResult, error)
}

// Assistant answers cooking questions and adds recipes.
type Assistant interface {
	CookingHelp(ctx context.Context, req types.HelpRequest) (types.HelpAnswer, error)
	ExplainStep(ctx context.Context, id model.RecipeID, step int) (types.StepExplanation, error)
	IngredientTips(ctx context.Context, name string) types.IngredientTips
	GenerateRecipe(ctx context.Context, dishName string) (types.RecipeAdded, error)
	UploadRecipe(ctx context.Context, image string) (types.RecipeAdded, error)
}

// Reminder sends the evening reminder on demand.
type Reminder interface {
	SendReminder(ctx context.Context, date model.Date) (types.ReminderResult, error)
}

// StatsProvider reports service statistics and health.
type StatsProvider interface {
	Stats(ctx context.Context) types.Stats
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RecipeReader
	Drawer
	Rater
	Assistant
	Reminder
	StatsProvider
}

// Option configures the Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit sets the per-IP request budget per minute for /api.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithHistoryLimits sets the default and maximum history page size.
func WithHistoryLimits(def, maxLimit int) Option {
	return func(s *Server) {
		if def > 0 {
			s.historyLimit = def
		}
		if maxLimit > 0 {
			s.maxHistory = maxLimit
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	validate     *validator.Validate
	log          logger.Logger
	corsOrigins  []string
	rateLimit    int
	historyLimit int
	maxHistory   int
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		validate:     validator.New(),
		historyLimit: defaultHistoryLimit,
		maxHistory:   defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default("api")
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.corsOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", handleMetrics)
	r.Get("/metrics", handleMetrics)
	swagger.Register(r)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.rateLimit))
		r.Use(MetricsMiddleware)
		r.Use(chimiddleware.RequestSize(defaultMaxBodyBytes))

		r.Get("/recipes", s.handleRecipes)
		r.Get("/recipe/{id}", s.handleRecipe)

		r.Get("/draw", s.handleQuickDraw)
		r.Get("/draw/tomorrow", s.handleDrawTomorrow)
		r.Get("/draw/odds", s.handleOdds)
		r.Get("/draw/{date}", s.handleDrawDate)
		r.Post("/confirm/{id}", s.handleConfirm)
		r.Get("/tomorrow", s.handleTomorrow)
		r.Get("/history", s.handleHistory)
		r.Post("/rate/{id}", s.handleRate)
		r.Get("/stats", s.handleStats)

		r.Route("/ai", func(r chi.Router) {
			r.Post("/help", s.handleHelp)
			r.Get("/step/{id}/{step}", s.handleStep)
			r.Get("/ingredient/{name}", s.handleIngredient)
			r.Post("/generate-recipe", s.handleGenerate)
			r.Post("/upload-recipe", s.handleUpload)
		})

		r.Post("/notify/test", s.handleNotifyTest)
	})
	return r
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}

// fail maps err to a response. Server-side failures are logged with the
// request id; the client only sees the generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("request_id", chimiddleware.GetReqID(r.Context())),
			logger.String("path", r.URL.Path),
			logger.Error(err))
	}
	writeError(w, status, code, errors.New(msg))
}

// badRequest responds 400 with a caller-facing message.
func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "bad_request", errors.New(msg))
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return WrapKind("api.decode", ErrBadRequest, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return NewKind("api.decode", ErrBadRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return WrapKind("api.decode", ErrBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return WrapKind("api.decode", ErrBadRequest, err)
	}
	return nil
}

func recipeID(r *http.Request) (model.RecipeID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return model.RecipeID(id), true
}

// dateParam reads ?date=, defaulting to tomorrow.
func (s *Server) dateParam(r *http.Request) (model.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.deps.Tomorrow(), nil
	}
	return model.ParseDate(raw)
}

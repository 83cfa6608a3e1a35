package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/breakfast/internal/domain/types"
)

type generateRequest struct {
	DishName string `json:"dish_name" validate:"required"`
}

type uploadRequest struct {
	Image string `json:"image" validate:"required"`
}

// handleHelp handles POST /api/ai/help.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	var req types.HelpRequest
	if err := s.decode(r, &req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(w, "请输入问题")
		return
	}
	ans, err := s.deps.CookingHelp(r.Context(), req)
	if err != nil {
		s.fail(w, r, Wrap("api.ai_help", err))
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// handleStep handles GET /api/ai/step/{id}/{step}.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if !ok || err != nil || step < 1 {
		badRequest(w, "invalid recipe id or step number")
		return
	}
	exp, err := s.deps.ExplainStep(r.Context(), id, step)
	if err != nil {
		s.fail(w, r, Wrap("api.ai_step", err))
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleIngredient handles GET /api/ai/ingredient/{name}.
func (s *Server) handleIngredient(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		badRequest(w, "invalid ingredient name")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.IngredientTips(r.Context(), strings.TrimSpace(name)))
}

// handleGenerate handles POST /api/ai/generate-recipe.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := s.decode(r, &req); err != nil || strings.TrimSpace(req.DishName) == "" {
		badRequest(w, "请提供菜品名称")
		return
	}
	added, err := s.deps.GenerateRecipe(r.Context(), req.DishName)
	if err != nil {
		s.fail(w, r, Wrap("api.ai_generate", err))
		return
	}
	writeJSON(w, http.StatusOK, added)
}

// handleUpload handles POST /api/ai/upload-recipe with a base64 image.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, "未提供图片")
		return
	}
	added, err := s.deps.UploadRecipe(r.Context(), req.Image)
	if err != nil {
		s.fail(w, r, Wrap("api.ai_upload", err))
		return
	}
	writeJSON(w, http.StatusOK, added)
}

package api

import "net/http"

// handleRecipes handles GET /api/recipes.
func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.deps.Recipes(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.recipes", err))
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// handleRecipe handles GET /api/recipe/{id}.
func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		badRequest(w, "invalid recipe id")
		return
	}
	recipe, err := s.deps.Recipe(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap("api.recipe", err))
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

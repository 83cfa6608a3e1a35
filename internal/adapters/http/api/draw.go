package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/breakfast/internal/domain/model"
)

type rateRequest struct {
	Rating *float64 `json:"rating" validate:"required"`
}

// handleQuickDraw handles GET /api/draw: a pick with no ledger side effects.
func (s *Server) handleQuickDraw(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.QuickDraw(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.quick_draw", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDrawTomorrow handles GET /api/draw/tomorrow.
func (s *Server) handleDrawTomorrow(w http.ResponseWriter, r *http.Request) {
	s.draw(w, r, s.deps.Tomorrow())
}

// handleDrawDate handles GET /api/draw/{date}.
func (s *Server) handleDrawDate(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.fail(w, r, Wrap("api.draw", err))
		return
	}
	s.draw(w, r, date)
}

func (s *Server) draw(w http.ResponseWriter, r *http.Request, date model.Date) {
	d, err := s.deps.Draw(r.Context(), date)
	if err != nil {
		s.fail(w, r, Wrap("api.draw", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleOdds handles GET /api/draw/odds.
func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	odds, err := s.deps.Odds(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.odds", err))
		return
	}
	writeJSON(w, http.StatusOK, odds)
}

// handleConfirm handles POST /api/confirm/{id}?date=YYYY-MM-DD. The date
// defaults to tomorrow.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		badRequest(w, "invalid recipe id")
		return
	}
	date, err := s.dateParam(r)
	if err != nil {
		s.fail(w, r, Wrap("api.confirm", err))
		return
	}
	c, err := s.deps.Confirm(r.Context(), date, id)
	if err != nil {
		s.fail(w, r, Wrap("api.confirm", err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleTomorrow handles GET /api/tomorrow.
func (s *Server) handleTomorrow(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Confirmed(r.Context(), s.deps.Tomorrow())
	if err != nil {
		s.fail(w, r, Wrap("api.tomorrow", err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleHistory handles GET /api/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := s.historyLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		if v > s.maxHistory {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				fmt.Errorf("limit must not exceed %d", s.maxHistory))
			return
		}
		n = v
	}
	h, err := s.deps.History(r.Context(), n)
	if err != nil {
		s.fail(w, r, Wrap("api.history", err))
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// handleRate handles POST /api/rate/{id} with body {"rating": x}.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		badRequest(w, "invalid recipe id")
		return
	}
	var req rateRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, "rating is required")
		return
	}
	res, err := s.deps.Rate(r.Context(), id, *req.Rating)
	if err != nil {
		s.fail(w, r, Wrap("api.rate", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

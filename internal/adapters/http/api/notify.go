package api

import (
	"net/http"
)

// handleNotifyTest handles POST /api/notify/test?date=YYYY-MM-DD. It sends
// the reminder immediately; the date defaults to tomorrow.
func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		s.fail(w, r, Wrap("api.notify_test", err))
		return
	}
	res, err := s.deps.SendReminder(r.Context(), date)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case len(res.Channels) > 0:
		// Some channel was tried; report each outcome.
		writeJSON(w, http.StatusBadGateway, res)
	default:
		s.fail(w, r, Wrap("api.notify_test", err))
	}
}

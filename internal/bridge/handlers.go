package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tabwarden/tabwarden/internal/settings"
	"github.com/tabwarden/tabwarden/internal/storage"
)

func (s *Server) registerAPI(r *mux.Router) {
	r.HandleFunc("/data", s.handleGetData).Methods(http.MethodGet)
	r.HandleFunc("/usage", s.handleGetUsage).Methods(http.MethodGet)
	r.HandleFunc("/usage/{site}/reset", s.handleResetUsage).Methods(http.MethodPost)
	r.HandleFunc("/usage/{site}", s.handleSetUsage).Methods(http.MethodPut)
	r.HandleFunc("/limits", s.handleSetLimit).Methods(http.MethodPut)
	r.HandleFunc("/limits/{site}", s.handleRemoveLimit).Methods(http.MethodDelete)
	r.HandleFunc("/notifications", s.handleSetNotifications).Methods(http.MethodPut)
	r.HandleFunc("/blocking", s.handleSetBlocking).Methods(http.MethodPut)
	r.HandleFunc("/theme", s.handleSetTheme).Methods(http.MethodPut)
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	data, err := s.settings.Data(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// handleGetUsage returns the tracking records for one day, default today.
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = storage.DateKey(time.Now())
	} else if _, err := time.Parse(storage.DateFormat, date); err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	data, err := s.settings.Data(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	records := []storage.TimeTrackingRecord{}
	for _, rec := range data.TimeTracking {
		if rec.Date == date {
			records = append(records, rec)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"date": date, "usage": records})
}

func (s *Server) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	site := mux.Vars(r)["site"]
	if err := s.settings.ResetToday(r.Context(), site); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetUsage(w http.ResponseWriter, r *http.Request) {
	site := mux.Vars(r)["site"]

	var body struct {
		Seconds int64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetTodayUsage(r.Context(), site, body.Seconds); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		storage.SiteTimeLimit
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetLimit(r.Context(), body.SiteTimeLimit, body.Approved); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveLimit(w http.ResponseWriter, r *http.Request) {
	site := mux.Vars(r)["site"]
	if err := s.settings.RemoveLimit(r.Context(), site); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetNotifications(w http.ResponseWriter, r *http.Request) {
	var body storage.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.settings.UpdateNotifications(r.Context(), body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetBlocking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetBlocking(r.Context(), body.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme storage.Theme `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetTheme(r.Context(), body.Theme); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps service errors onto HTTP statuses: a rejected friction
// gate is 403, bad input 400, an unavailable store 503.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, settings.ErrNotApproved):
		status = http.StatusForbidden
	case errors.Is(err, settings.ErrInvalidLimit):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	s.logger.Warn().Err(err).Int("status", status).Msg("API request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

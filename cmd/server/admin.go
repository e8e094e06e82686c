package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/store"
	"github.com/fleetwise/truck-tco/internal/tco"
)

func (s *server) handleAdminPresetsList(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, presets)
}

func (s *server) handleAdminPresetsCreate(w http.ResponseWriter, r *http.Request) {
	var preset tco.RatePreset
	if err := decodeJSON(r, &preset); err != nil {
		s.writeError(w, r, err)
		return
	}
	preset.ID = 0

	if err := s.presets.Create(r.Context(), &preset); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.presets.Get(r.Context(), preset.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "preset created", zap.Int64("preset_id", created.ID), zap.Int("year", created.Year))
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleAdminPresetsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var preset tco.RatePreset
	if err := decodeJSON(r, &preset); err != nil {
		s.writeError(w, r, err)
		return
	}
	preset.ID = id

	if err := s.presets.Update(r.Context(), preset); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.presets.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "preset updated", zap.Int64("preset_id", id))
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleAdminPresetsActivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.presets.Activate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "preset activated", zap.Int64("preset_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAdminPresetsDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.presets.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "preset deleted", zap.Int64("preset_id", id))
	w.WriteHeader(http.StatusNoContent)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (s *server) handleAdminUsersList(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *server) handleAdminUsersCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, req.Password, req.IsAdmin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "user created", zap.Int64("user_id", user.ID))
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *server) handleAdminUsersDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if current, ok := userFromContext(r.Context()); ok && current.ID == id {
		s.writeError(w, r, fmt.Errorf("%w: cannot delete the logged-in user", store.ErrConflict))
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "user deleted", zap.Int64("user_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAdminCalculationsDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.calculator.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logAdmin(r, "calculation deleted", zap.String("calculation_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logAdmin(r *http.Request, msg string, fields ...zap.Field) {
	if u, ok := userFromContext(r.Context()); ok {
		fields = append(fields, zap.String("admin", u.Email))
	}
	s.logger.Info(msg, fields...)
}

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/calculator"
	"github.com/fleetwise/truck-tco/internal/session"
)

func (s *server) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	preset, err := s.presets.Active(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	wiz := session.NewWizard(s.newID(), s.now())
	session.ApplyPresetDefaults(wiz, preset)
	if err := s.wizards.Save(r.Context(), wiz); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wiz)
}

func (s *server) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	wiz, err := s.wizards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wiz)
}

// handleWizardStep applies a form-encoded step submission.
func (s *server) handleWizardStep(w http.ResponseWriter, r *http.Request) {
	step, err := session.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid form")
		return
	}

	wiz, err := s.wizards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	values := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		values[k] = r.PostForm.Get(k)
	}
	if err := wiz.Advance(step, values, s.now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.wizards.Save(r.Context(), wiz); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wiz)
}

// handleWizardCalculate turns a completed wizard into a stored calculation
// and discards the wizard.
func (s *server) handleWizardCalculate(w http.ResponseWriter, r *http.Request) {
	wiz, err := s.wizards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := wiz.Ready(); err != nil {
		s.writeError(w, r, err)
		return
	}

	calc, err := s.calculator.Calculate(r.Context(), calculator.Request{
		VehicleName: wiz.VehicleName,
		AreaName:    wiz.AreaName,
		Input:       wiz.Input,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.wizards.Delete(r.Context(), wiz.ID); err != nil {
		s.logger.Warn("failed to discard wizard", zap.String("id", wiz.ID), zap.Error(err))
	}
	s.writeJSON(w, http.StatusCreated, calc)
}

package main

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetwise/truck-tco/internal/calculator"
	"github.com/fleetwise/truck-tco/internal/export"
	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/tco"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *server) handleActivePreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.presets.Active(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, preset)
}

func (s *server) handleCalculationCreate(w http.ResponseWriter, r *http.Request) {
	var req calculator.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	calc, err := s.calculator.Calculate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, calc)
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var input tco.CalculationInput
	if err := decodeJSON(r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}

	cb, err := s.calculator.Preview(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cb)
}

// handleCalculationsList returns stored calculations filtered by ?q=, as CSV
// when ?format=csv.
func (s *server) handleCalculationsList(w http.ResponseWriter, r *http.Request) {
	items, err := s.calculator.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, items); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="calculations.csv"`)
		_, _ = w.Write(buf.Bytes())
		return
	}

	s.writeJSON(w, http.StatusOK, items)
}

func (s *server) calculationFromURL(w http.ResponseWriter, r *http.Request) (model.Calculation, bool) {
	calc, err := s.calculator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return model.Calculation{}, false
	}
	return calc, true
}

func (s *server) handleCalculationDetail(w http.ResponseWriter, r *http.Request) {
	calc, ok := s.calculationFromURL(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, calc)
}

func (s *server) handleCalculationExcel(w http.ResponseWriter, r *http.Request) {
	calc, ok := s.calculationFromURL(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, calc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(calc, "xlsx")))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleCalculationText(w http.ResponseWriter, r *http.Request) {
	calc, ok := s.calculationFromURL(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteText(&buf, calc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

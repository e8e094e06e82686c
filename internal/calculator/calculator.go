package calculator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/tco"
)

// PresetSource resolves the preset a calculation runs against.
type PresetSource interface {
	Active(ctx context.Context) (tco.RatePreset, error)
}

// CalculationRepository persists and reads calculation snapshots.
type CalculationRepository interface {
	Save(ctx context.Context, c model.Calculation) error
	Get(ctx context.Context, id string) (model.Calculation, error)
	List(ctx context.Context, query string) ([]model.CalculationSummary, error)
	Delete(ctx context.Context, id string) error
}

// Request is one calculation submitted by a user.
type Request struct {
	VehicleName string               `json:"vehicleName"`
	AreaName    string               `json:"areaName"`
	Input       tco.CalculationInput `json:"input"`
}

// Service runs calculations against the active preset and stores the
// resulting snapshots.
type Service struct {
	presets      PresetSource
	calculations CalculationRepository
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Service.
func New(presets PresetSource, calculations CalculationRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		presets:      presets,
		calculations: calculations,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Calculate computes all four fuel types and saves the snapshot. Nothing is
// saved when the preset cannot be resolved or the input is rejected.
func (s *Service) Calculate(ctx context.Context, req Request) (model.Calculation, error) {
	vehicleName := strings.TrimSpace(req.VehicleName)
	if vehicleName == "" {
		return model.Calculation{}, fmt.Errorf("%w: vehicleName is required", tco.ErrInvalidInput)
	}

	preset, err := s.presets.Active(ctx)
	if err != nil {
		return model.Calculation{}, fmt.Errorf("resolve preset: %w", err)
	}

	results, err := tco.Compute(req.Input, preset)
	if err != nil {
		return model.Calculation{}, err
	}

	calc := model.Calculation{
		ID:          s.newID(),
		VehicleName: vehicleName,
		AreaName:    strings.TrimSpace(req.AreaName),
		PresetID:    preset.ID,
		PresetYear:  preset.Year,
		Input:       req.Input,
		Results:     results,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	if err := s.calculations.Save(ctx, calc); err != nil {
		return model.Calculation{}, fmt.Errorf("save calculation: %w", err)
	}

	cheapest, _ := results.Cheapest()
	s.logger.Info("calculation saved",
		zap.String("id", calc.ID),
		zap.Int("preset_year", calc.PresetYear),
		zap.String("cheapest", string(cheapest.FuelType)),
		zap.Float64("cheapest_total", cheapest.TotalCost),
	)
	return calc, nil
}

// Preview computes the selected fuel type against the active preset without
// saving anything.
func (s *Service) Preview(ctx context.Context, input tco.CalculationInput) (tco.CostBreakdown, error) {
	preset, err := s.presets.Active(ctx)
	if err != nil {
		return tco.CostBreakdown{}, fmt.Errorf("resolve preset: %w", err)
	}
	return tco.Preview(input, preset)
}

// Get returns a stored snapshot.
func (s *Service) Get(ctx context.Context, id string) (model.Calculation, error) {
	return s.calculations.Get(ctx, id)
}

// List returns stored snapshots matching query, newest first.
func (s *Service) List(ctx context.Context, query string) ([]model.CalculationSummary, error) {
	return s.calculations.List(ctx, strings.TrimSpace(query))
}

// Delete removes a stored snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.calculations.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("calculation deleted", zap.String("id", id))
	return nil
}

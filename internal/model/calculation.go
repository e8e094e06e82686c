package model

import (
	"time"

	"github.com/fleetwise/truck-tco/internal/tco"
)

// Calculation is a persisted TCO comparison: the input, the preset it was
// computed against, and the four-way result snapshot.
type Calculation struct {
	ID          string               `json:"id"`
	VehicleName string               `json:"vehicleName"`
	AreaName    string               `json:"areaName"`
	PresetID    int64                `json:"presetId"`
	PresetYear  int                  `json:"presetYear"`
	Input       tco.CalculationInput `json:"input"`
	Results     tco.Result           `json:"results"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// CalculationSummary is a list row of a stored calculation.
type CalculationSummary struct {
	ID          string       `json:"id"`
	VehicleName string       `json:"vehicleName"`
	AreaName    string       `json:"areaName"`
	PresetYear  int          `json:"presetYear"`
	Cheapest    tco.FuelType `json:"cheapest"`
	CheapestTCO float64      `json:"cheapestTotalCost"`
	CreatedAt   time.Time    `json:"createdAt"`
}

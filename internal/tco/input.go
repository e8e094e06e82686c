package tco

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CalculationInput represents the vehicle, usage and override values of one
// calculation request. Nil overrides fall back to the preset defaults.
type CalculationInput struct {
	PurchasePrice float64  `json:"purchasePrice"`
	GVW           *float64 `json:"gvw,omitempty"`
	Payload       *float64 `json:"payload,omitempty"`

	KmPerYear float64  `json:"kmPerYear"`
	FuelType  FuelType `json:"fuelType"`

	// Consumption and TruckToll are honoured only by Preview.
	Consumption *float64 `json:"consumption,omitempty"`
	TruckToll   *float64 `json:"truckToll,omitempty"`

	MotorTax             *float64 `json:"motorTax,omitempty"`
	Subsidy              *float64 `json:"subsidy,omitempty"`
	InterestRate         *float64 `json:"interestRate,omitempty"`
	DepreciationYears    *float64 `json:"depreciationYears,omitempty"`
	MaintenanceCostPerKm *float64 `json:"maintenanceCostPerKm,omitempty"`
	InsurancePercentage  *float64 `json:"insurancePercentage,omitempty"`
}

// Validate checks the two required positive fields and that every supplied
// override is a finite number.
func (in CalculationInput) Validate() error {
	if err := requirePositive("purchasePrice", in.PurchasePrice); err != nil {
		return err
	}
	if err := requirePositive("kmPerYear", in.KmPerYear); err != nil {
		return err
	}
	if in.FuelType != "" && !in.FuelType.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownFuelType, in.FuelType)
	}

	overrides := []struct {
		name  string
		value *float64
	}{
		{"gvw", in.GVW},
		{"payload", in.Payload},
		{"consumption", in.Consumption},
		{"truckToll", in.TruckToll},
		{"motorTax", in.MotorTax},
		{"subsidy", in.Subsidy},
		{"interestRate", in.InterestRate},
		{"depreciationYears", in.DepreciationYears},
		{"maintenanceCostPerKm", in.MaintenanceCostPerKm},
		{"insurancePercentage", in.InsurancePercentage},
	}
	for _, o := range overrides {
		if o.value == nil {
			continue
		}
		if !finite(*o.value) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, o.name)
		}
	}
	return nil
}

// ParseOverride converts a raw form value into an optional override.
// Blank input yields nil; anything that is not a finite number fails.
func ParseOverride(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrResolution, raw)
	}
	if !finite(v) {
		return nil, fmt.Errorf("%w: %q", ErrResolution, raw)
	}
	return &v, nil
}

func requirePositive(name string, v float64) error {
	if !finite(v) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, name)
	}
	if v <= 0 {
		return fmt.Errorf("%w: %s must be greater than 0", ErrInvalidInput, name)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func orDefault(override *float64, def float64) float64 {
	if override != nil {
		return *override
	}
	return def
}

package tco

import (
	"fmt"
	"math"
	"time"
)

// DefaultValues holds the per-fuel default cost ratios of a preset.
type DefaultValues struct {
	MaintenanceCostPerKm FuelRates `json:"maintenanceCostPerKm" yaml:"maintenanceCostPerKm"`
	InsurancePercentage  *float64  `json:"insurancePercentage,omitempty" yaml:"insurancePercentage,omitempty"`
	Subsidies            FuelRates `json:"subsidies" yaml:"subsidies"`
}

// RatePreset is a versioned bundle of tax rates, energy prices, consumption
// baselines and default ratios. Exactly one preset is active at a time.
type RatePreset struct {
	ID       int64  `json:"id" yaml:"-"`
	Name     string `json:"name" yaml:"name"`
	Year     int    `json:"year" yaml:"year"`
	IsActive bool   `json:"isActive" yaml:"isActive"`

	MotorTaxPerYear float64 `json:"motorTaxPerYear" yaml:"motorTaxPerYear"`
	TruckTollDiesel float64 `json:"truckTollDiesel" yaml:"truckTollDiesel"`
	TruckTollBev    float64 `json:"truckTollBev" yaml:"truckTollBev"`

	DieselPricePerLiter    float64 `json:"dieselPricePerLiter" yaml:"dieselPricePerLiter"`
	ElectricityPricePerKwh float64 `json:"electricityPricePerKwh" yaml:"electricityPricePerKwh"`
	HydrogenPricePerKg     float64 `json:"hydrogenPricePerKg" yaml:"hydrogenPricePerKg"`

	DieselConsumption float64 `json:"dieselConsumption" yaml:"dieselConsumption"`
	BevConsumption    float64 `json:"bevConsumption" yaml:"bevConsumption"`
	FcevConsumption   float64 `json:"fcevConsumption" yaml:"fcevConsumption"`
	H2iceConsumption  float64 `json:"h2iceConsumption" yaml:"h2iceConsumption"`

	InterestRate      float64 `json:"interestRate" yaml:"interestRate"`
	DepreciationYears float64 `json:"depreciationYears" yaml:"depreciationYears"`

	DefaultValues DefaultValues `json:"defaultValues" yaml:"defaultValues"`

	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Validate checks that every number in the preset is finite and non-negative
// and that the fuel-keyed defaults only use known fuel types.
func (p RatePreset) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"motorTaxPerYear", p.MotorTaxPerYear},
		{"truckTollDiesel", p.TruckTollDiesel},
		{"truckTollBev", p.TruckTollBev},
		{"dieselPricePerLiter", p.DieselPricePerLiter},
		{"electricityPricePerKwh", p.ElectricityPricePerKwh},
		{"hydrogenPricePerKg", p.HydrogenPricePerKg},
		{"dieselConsumption", p.DieselConsumption},
		{"bevConsumption", p.BevConsumption},
		{"fcevConsumption", p.FcevConsumption},
		{"h2iceConsumption", p.H2iceConsumption},
		{"interestRate", p.InterestRate},
		{"depreciationYears", p.DepreciationYears},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: preset %s is not a finite number", ErrInvalidInput, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: preset %s must not be negative", ErrInvalidInput, f.name)
		}
	}
	if p.DepreciationYears <= 0 {
		return fmt.Errorf("%w: preset depreciationYears must be greater than 0", ErrInvalidInput)
	}
	if p.Year <= 0 {
		return fmt.Errorf("%w: preset year is required", ErrInvalidInput)
	}
	if err := p.DefaultValues.MaintenanceCostPerKm.validate("maintenanceCostPerKm"); err != nil {
		return err
	}
	if err := p.DefaultValues.Subsidies.validate("subsidies"); err != nil {
		return err
	}
	if ip := p.DefaultValues.InsurancePercentage; ip != nil && (math.IsNaN(*ip) || math.IsInf(*ip, 0)) {
		return fmt.Errorf("%w: preset insurancePercentage is not a finite number", ErrInvalidInput)
	}
	return nil
}

// baseline returns the consumption per 100 km, the energy price per unit and
// the truck toll per year that the preset assigns to f. FCEV and H2ICE share
// the BEV toll rate.
func (p RatePreset) baseline(f FuelType) (consumption, price, toll float64) {
	switch f {
	case Diesel:
		return p.DieselConsumption, p.DieselPricePerLiter, p.TruckTollDiesel
	case BEV:
		return p.BevConsumption, p.ElectricityPricePerKwh, p.TruckTollBev
	case FCEV:
		return p.FcevConsumption, p.HydrogenPricePerKg, p.TruckTollBev
	case H2ICE:
		return p.H2iceConsumption, p.HydrogenPricePerKg, p.TruckTollBev
	}
	return 0, 0, 0
}

// Consumption returns the preset's baseline consumption for f.
func (p RatePreset) Consumption(f FuelType) float64 {
	c, _, _ := p.baseline(f)
	return c
}

// TruckToll returns the preset's yearly truck toll for f.
func (p RatePreset) TruckToll(f FuelType) float64 {
	_, _, t := p.baseline(f)
	return t
}

// ResolvePreset picks the preset to calculate with. A zero year selects the
// single active preset; any other year selects the preset for that year.
func ResolvePreset(presets []RatePreset, year int) (RatePreset, error) {
	if year != 0 {
		for _, p := range presets {
			if p.Year == year {
				return p, nil
			}
		}
		return RatePreset{}, fmt.Errorf("%w: year %d", ErrPresetNotFound, year)
	}

	var (
		active RatePreset
		count  int
	)
	for _, p := range presets {
		if p.IsActive {
			active = p
			count++
		}
	}
	switch count {
	case 0:
		return RatePreset{}, ErrNoActivePreset
	case 1:
		return active, nil
	default:
		return RatePreset{}, fmt.Errorf("%w: %d presets are marked active", ErrNoActivePreset, count)
	}
}

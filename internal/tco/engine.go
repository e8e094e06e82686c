package tco

import (
	"fmt"
	"math"
)

const (
	fallbackMaintenanceCostPerKm = 0.15
	fallbackInsurancePercentage  = 2.5
)

// Breakdown contains the itemized lifetime cost lines of one fuel type.
type Breakdown struct {
	PurchaseCost       float64 `json:"purchaseCost"`
	FuelCost           float64 `json:"fuelCost"`
	MaintenanceCost    float64 `json:"maintenanceCost"`
	TaxesCost          float64 `json:"taxesCost"`
	InsuranceCost      float64 `json:"insuranceCost"`
	SubsidyCredit      float64 `json:"subsidyCredit"`
	InterestCost       float64 `json:"interestCost"`
	TotalOperatingCost float64 `json:"totalOperatingCost"`
}

// CostBreakdown is the full result for one fuel type.
type CostBreakdown struct {
	FuelType     FuelType  `json:"fuelType"`
	TotalCost    float64   `json:"totalCost"`
	CostPerKm    float64   `json:"costPerKm"`
	CO2Emissions float64   `json:"co2Emissions"`
	Breakdown    Breakdown `json:"breakdown"`
}

// baseline is the per-fuel consumption, energy price and toll a row is computed with.
type baseline struct {
	consumption float64
	price       float64
	toll        float64
}

// Compute derives the lifetime cost breakdown of every fuel type from one
// input and one preset. It either returns all four entries or an error.
func Compute(input CalculationInput, preset RatePreset) (Result, error) {
	result := make(Result, len(FuelTypes))
	for _, f := range FuelTypes {
		cb, err := ComputeFuel(input, preset, f)
		if err != nil {
			return nil, err
		}
		result[f] = cb
	}
	return result, nil
}

// ComputeFuel derives the cost breakdown of a single fuel type with the
// preset baselines, exactly as the corresponding entry of Compute.
func ComputeFuel(input CalculationInput, preset RatePreset, f FuelType) (CostBreakdown, error) {
	if !f.Valid() {
		return CostBreakdown{}, fmt.Errorf("%w: %q", ErrUnknownFuelType, f)
	}
	if err := input.Validate(); err != nil {
		return CostBreakdown{}, err
	}
	consumption, price, toll := preset.baseline(f)
	return compute(input, preset, f, baseline{consumption: consumption, price: price, toll: toll})
}

// Preview computes the selected fuel type only, letting the input's
// consumption and truck toll overrides replace the preset baselines.
func Preview(input CalculationInput, preset RatePreset) (CostBreakdown, error) {
	if !input.FuelType.Valid() {
		return CostBreakdown{}, fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownFuelType, input.FuelType)
	}
	if err := input.Validate(); err != nil {
		return CostBreakdown{}, err
	}
	_, price, _ := preset.baseline(input.FuelType)
	b := baseline{
		consumption: orDefault(input.Consumption, preset.Consumption(input.FuelType)),
		price:       price,
		toll:        orDefault(input.TruckToll, preset.TruckToll(input.FuelType)),
	}
	return compute(input, preset, input.FuelType, b)
}

func compute(input CalculationInput, preset RatePreset, f FuelType, b baseline) (CostBreakdown, error) {
	depreciationYears := orDefault(input.DepreciationYears, preset.DepreciationYears)
	interestRate := orDefault(input.InterestRate, preset.InterestRate)

	maintenanceDefault, ok := preset.DefaultValues.MaintenanceCostPerKm.Lookup(f)
	if !ok {
		maintenanceDefault = fallbackMaintenanceCostPerKm
	}
	maintenanceCostPerKm := orDefault(input.MaintenanceCostPerKm, maintenanceDefault)
	motorTax := orDefault(input.MotorTax, preset.MotorTaxPerYear)
	insurancePercentage := orDefault(input.InsurancePercentage, fallbackInsurancePercentage)
	subsidyDefault, _ := preset.DefaultValues.Subsidies.Lookup(f)
	subsidy := orDefault(input.Subsidy, subsidyDefault)

	resolved := []struct {
		name  string
		value float64
	}{
		{"depreciationYears", depreciationYears},
		{"interestRate", interestRate},
		{"maintenanceCostPerKm", maintenanceCostPerKm},
		{"motorTax", motorTax},
		{"insurancePercentage", insurancePercentage},
		{"subsidy", subsidy},
		{"consumption", b.consumption},
		{"fuelPrice", b.price},
		{"truckToll", b.toll},
	}
	for _, r := range resolved {
		if !finite(r.value) {
			return CostBreakdown{}, fmt.Errorf("%w: resolved %s for %s is not a finite number", ErrInvalidInput, r.name, f)
		}
	}
	if depreciationYears <= 0 {
		return CostBreakdown{}, fmt.Errorf("%w: depreciationYears must be greater than 0", ErrInvalidInput)
	}

	totalKm := input.KmPerYear * depreciationYears
	purchaseCost := input.PurchasePrice

	fuelCostPerYear := (input.KmPerYear / 100) * b.consumption * b.price
	totalFuelCost := fuelCostPerYear * depreciationYears

	totalMaintenanceCost := totalKm * maintenanceCostPerKm
	totalTaxesCost := (motorTax + b.toll) * depreciationYears

	insuranceCostPerYear := purchaseCost * insurancePercentage / 100
	totalInsuranceCost := insuranceCostPerYear * depreciationYears

	interestCostPerYear := purchaseCost * interestRate / 100
	totalInterestCost := interestCostPerYear * depreciationYears

	breakdown := Breakdown{
		PurchaseCost:    roundMoney(purchaseCost),
		FuelCost:        roundMoney(totalFuelCost),
		MaintenanceCost: roundMoney(totalMaintenanceCost),
		TaxesCost:       roundMoney(totalTaxesCost),
		InsuranceCost:   roundMoney(totalInsuranceCost),
		SubsidyCredit:   roundMoney(subsidy),
		InterestCost:    roundMoney(totalInterestCost),
	}
	breakdown.TotalOperatingCost = roundMoney(breakdown.FuelCost + breakdown.MaintenanceCost + breakdown.TaxesCost + breakdown.InsuranceCost)
	totalCost := roundMoney(breakdown.PurchaseCost + breakdown.TotalOperatingCost + breakdown.InterestCost - breakdown.SubsidyCredit)

	cb := CostBreakdown{
		FuelType:     f,
		TotalCost:    totalCost,
		CostPerKm:    roundMoney(totalCost / totalKm),
		CO2Emissions: roundHalfUp(totalKm * b.consumption * f.co2PerUnit() / 100),
		Breakdown:    breakdown,
	}
	if err := cb.checkFinite(); err != nil {
		return CostBreakdown{}, err
	}
	return cb, nil
}

// checkFinite rejects results that overflowed to ±Inf or NaN.
func (cb CostBreakdown) checkFinite() error {
	b := cb.Breakdown
	outputs := []struct {
		name  string
		value float64
	}{
		{"purchaseCost", b.PurchaseCost},
		{"fuelCost", b.FuelCost},
		{"maintenanceCost", b.MaintenanceCost},
		{"taxesCost", b.TaxesCost},
		{"insuranceCost", b.InsuranceCost},
		{"subsidyCredit", b.SubsidyCredit},
		{"interestCost", b.InterestCost},
		{"totalOperatingCost", b.TotalOperatingCost},
		{"totalCost", cb.TotalCost},
		{"costPerKm", cb.CostPerKm},
		{"co2Emissions", cb.CO2Emissions},
	}
	for _, o := range outputs {
		if !finite(o.value) {
			return fmt.Errorf("%w: %s for %s is out of range", ErrInvalidInput, o.name, cb.FuelType)
		}
	}
	return nil
}

// roundMoney rounds half-up to cents.
func roundMoney(v float64) float64 {
	return roundHalfUp(v*100) / 100
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

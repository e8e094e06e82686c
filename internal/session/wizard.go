package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetwise/truck-tco/internal/tco"
)

var (
	// ErrNotFound is returned when a wizard does not exist or has expired.
	ErrNotFound = errors.New("wizard not found")

	// ErrUnknownStep is returned for a step name outside Steps.
	ErrUnknownStep = errors.New("unknown wizard step")

	// ErrStepOrder is returned when a step is submitted before the steps preceding it.
	ErrStepOrder = errors.New("wizard step submitted out of order")
)

// Step names one page of the calculation wizard.
type Step string

const (
	StepVehicle   Step = "vehicle"
	StepUsage     Step = "usage"
	StepOverrides Step = "overrides"
	StepReview    Step = "review"
)

// Steps lists the wizard steps in the order they are filled in.
var Steps = []Step{StepVehicle, StepUsage, StepOverrides, StepReview}

// ParseStep validates a step name.
func ParseStep(raw string) (Step, error) {
	s := Step(strings.ToLower(strings.TrimSpace(raw)))
	if s.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, raw)
	}
	return s, nil
}

func (s Step) index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Wizard is the partially filled calculation of one browser session.
type Wizard struct {
	ID          string               `json:"id"`
	Step        Step                 `json:"step"`
	VehicleName string               `json:"vehicleName"`
	AreaName    string               `json:"areaName"`
	PresetYear  int                  `json:"presetYear,omitempty"`
	Input       tco.CalculationInput `json:"input"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// NewWizard starts a wizard on the vehicle step.
func NewWizard(id string, now time.Time) *Wizard {
	return &Wizard{ID: id, Step: StepVehicle, UpdatedAt: now.UTC()}
}

// Advance applies the form values of step and moves the wizard to the next
// step. Earlier steps may be resubmitted; later ones may not be skipped to.
// On error the wizard is left unchanged.
func (w *Wizard) Advance(step Step, values map[string]string, now time.Time) error {
	idx := step.index()
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	if idx > w.Step.index() {
		return fmt.Errorf("%w: %s before %s", ErrStepOrder, step, w.Step)
	}

	next := *w
	var err error
	switch step {
	case StepVehicle:
		err = next.applyVehicle(values)
	case StepUsage:
		err = next.applyUsage(values)
	case StepOverrides:
		err = next.applyOverrides(values)
	case StepReview:
		err = next.Ready()
	}
	if err != nil {
		return err
	}

	if idx+1 < len(Steps) && idx+1 > w.Step.index() {
		next.Step = Steps[idx+1]
	}
	next.UpdatedAt = now.UTC()
	*w = next
	return nil
}

// Ready reports whether the wizard holds a complete calculation input.
func (w *Wizard) Ready() error {
	if strings.TrimSpace(w.VehicleName) == "" {
		return fmt.Errorf("%w: vehicleName is required", tco.ErrInvalidInput)
	}
	if w.Step != StepReview {
		return fmt.Errorf("%w: wizard is on step %s", ErrStepOrder, w.Step)
	}
	return w.Input.Validate()
}

func (w *Wizard) applyVehicle(values map[string]string) error {
	name := strings.TrimSpace(values["vehicleName"])
	if name == "" {
		return fmt.Errorf("%w: vehicleName is required", tco.ErrInvalidInput)
	}
	price, err := requiredNumber(values, "purchasePrice")
	if err != nil {
		return err
	}
	gvw, err := optionalNumber(values, "gvw")
	if err != nil {
		return err
	}
	payload, err := optionalNumber(values, "payload")
	if err != nil {
		return err
	}

	w.VehicleName = name
	w.Input.PurchasePrice = price
	w.Input.GVW = gvw
	w.Input.Payload = payload
	return nil
}

func (w *Wizard) applyUsage(values map[string]string) error {
	km, err := requiredNumber(values, "kmPerYear")
	if err != nil {
		return err
	}
	fuel, err := tco.ParseFuelType(values["fuelType"])
	if err != nil {
		return fmt.Errorf("%w: %w", tco.ErrInvalidInput, err)
	}

	w.AreaName = strings.TrimSpace(values["areaName"])
	w.Input.KmPerYear = km
	w.Input.FuelType = fuel
	return nil
}

// applyOverrides replaces every override with the submitted value. A blank
// field clears the override.
func (w *Wizard) applyOverrides(values map[string]string) error {
	fields := []struct {
		name string
		dst  **float64
	}{
		{"consumption", &w.Input.Consumption},
		{"truckToll", &w.Input.TruckToll},
		{"motorTax", &w.Input.MotorTax},
		{"subsidy", &w.Input.Subsidy},
		{"interestRate", &w.Input.InterestRate},
		{"depreciationYears", &w.Input.DepreciationYears},
		{"maintenanceCostPerKm", &w.Input.MaintenanceCostPerKm},
		{"insurancePercentage", &w.Input.InsurancePercentage},
	}

	parsed := make([]*float64, len(fields))
	for i, f := range fields {
		v, err := optionalNumber(values, f.name)
		if err != nil {
			return err
		}
		parsed[i] = v
	}
	for i, f := range fields {
		*f.dst = parsed[i]
	}
	return nil
}

// ApplyPresetDefaults prefills the override fields the user has not set
// with the values of the active preset, so the overrides step starts from
// what the calculation would use anyway.
func ApplyPresetDefaults(w *Wizard, p tco.RatePreset) {
	w.PresetYear = p.Year
	if w.Input.InterestRate == nil {
		w.Input.InterestRate = ptr(p.InterestRate)
	}
	if w.Input.DepreciationYears == nil {
		w.Input.DepreciationYears = ptr(p.DepreciationYears)
	}
	if w.Input.MotorTax == nil {
		w.Input.MotorTax = ptr(p.MotorTaxPerYear)
	}
	if w.Input.InsurancePercentage == nil && p.DefaultValues.InsurancePercentage != nil {
		w.Input.InsurancePercentage = ptr(*p.DefaultValues.InsurancePercentage)
	}
}

func requiredNumber(values map[string]string, field string) (float64, error) {
	v, err := optionalNumber(values, field)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: %s is required", tco.ErrInvalidInput, field)
	}
	if *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be greater than 0", tco.ErrInvalidInput, field)
	}
	return *v, nil
}

func optionalNumber(values map[string]string, field string) (*float64, error) {
	v, err := tco.ParseOverride(values[field])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func ptr(v float64) *float64 { return &v }

package tco

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// FuelType identifies one of the compared powertrains.
type FuelType string

const (
	Diesel FuelType = "diesel"
	BEV    FuelType = "bev"
	FCEV   FuelType = "fcev"
	H2ICE  FuelType = "h2ice"
)

// FuelTypes lists every powertrain the engine compares, in display order.
var FuelTypes = []FuelType{Diesel, BEV, FCEV, H2ICE}

// ParseFuelType returns the FuelType for s, case-insensitively.
func ParseFuelType(s string) (FuelType, error) {
	f := FuelType(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFuelType, s)
	}
	return f, nil
}

// Valid reports whether f is one of FuelTypes.
func (f FuelType) Valid() bool {
	switch f {
	case Diesel, BEV, FCEV, H2ICE:
		return true
	default:
		return false
	}
}

// Label is the human-readable name used in exports.
func (f FuelType) Label() string {
	switch f {
	case Diesel:
		return "Diesel"
	case BEV:
		return "Battery electric (BEV)"
	case FCEV:
		return "Fuel cell electric (FCEV)"
	case H2ICE:
		return "Hydrogen combustion (H2ICE)"
	default:
		return string(f)
	}
}

// co2PerUnit is kg CO2 per consumed unit (L, kWh or kg). Hydrogen is assumed green.
func (f FuelType) co2PerUnit() float64 {
	switch f {
	case Diesel:
		return 2.6
	case BEV:
		return 0.4
	default:
		return 0
	}
}

// FuelRates maps fuel types to a per-fuel number such as a maintenance
// rate or a subsidy. Decoding rejects keys that are not fuel types.
type FuelRates map[FuelType]float64

// Lookup returns the rate for f and whether it was set.
func (r FuelRates) Lookup(f FuelType) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r[f]
	return v, ok
}

func (r FuelRates) validate(field string) error {
	for f, v := range r {
		if !f.Valid() {
			return fmt.Errorf("%w: %s has key %q", ErrUnknownFuelType, field, f)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s[%s] is not a finite number", ErrInvalidInput, field, f)
		}
	}
	return nil
}

func (r *FuelRates) fromRaw(raw map[string]float64) error {
	out := make(FuelRates, len(raw))
	for k, v := range raw {
		f, err := ParseFuelType(k)
		if err != nil {
			return err
		}
		out[f] = v
	}
	*r = out
	return nil
}

// UnmarshalJSON decodes a fuel-keyed object.
func (r *FuelRates) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return r.fromRaw(raw)
}

// UnmarshalYAML decodes a fuel-keyed mapping.
func (r *FuelRates) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]float64
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return r.fromRaw(raw)
}

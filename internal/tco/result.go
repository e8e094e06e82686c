package tco

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Result holds one CostBreakdown per fuel type. It is the snapshot shape
// persisted by callers and consumed by rendering and export.
type Result map[FuelType]CostBreakdown

// Ordered returns the breakdowns in FuelTypes order.
func (r Result) Ordered() []CostBreakdown {
	out := make([]CostBreakdown, 0, len(r))
	for _, f := range FuelTypes {
		if cb, ok := r[f]; ok {
			out = append(out, cb)
		}
	}
	return out
}

// Ranked returns the breakdowns sorted by total cost, cheapest first.
// Ties keep FuelTypes order.
func (r Result) Ranked() []CostBreakdown {
	out := r.Ordered()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalCost < out[j].TotalCost
	})
	return out
}

// Cheapest returns the fuel type with the lowest total cost.
func (r Result) Cheapest() (CostBreakdown, bool) {
	ranked := r.Ranked()
	if len(ranked) == 0 {
		return CostBreakdown{}, false
	}
	return ranked[0], true
}

// UnmarshalJSON decodes a snapshot and rejects unknown fuel keys.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]CostBreakdown
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Result, len(raw))
	for k, cb := range raw {
		f, err := ParseFuelType(k)
		if err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		out[f] = cb
	}
	*r = out
	return nil
}

package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fleetwise/truck-tco/internal/tco"
)

//go:embed presets.yaml
var embeddedPresets []byte

type presetFile struct {
	Presets []tco.RatePreset `yaml:"presets"`
}

// LoadPresets reads rate presets from a YAML file, or the built-in presets
// when path is empty. Every preset is validated and at most one may be active.
func LoadPresets(path string) ([]tco.RatePreset, error) {
	data := embeddedPresets
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets file %s: %w", path, err)
		}
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates a YAML preset document.
func ParsePresets(data []byte) ([]tco.RatePreset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets YAML: %w", err)
	}
	if len(file.Presets) == 0 {
		return nil, fmt.Errorf("no presets defined")
	}

	years := make(map[int]bool, len(file.Presets))
	active := 0
	for i, p := range file.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %d (%s): %w", i, p.Name, err)
		}
		if years[p.Year] {
			return nil, fmt.Errorf("preset %d: year %d defined twice", i, p.Year)
		}
		years[p.Year] = true
		if p.IsActive {
			active++
		}
	}
	if active > 1 {
		return nil, fmt.Errorf("%w: %d presets marked active", tco.ErrNoActivePreset, active)
	}
	return file.Presets, nil
}

// Package emissions holds the emission factor table and the pure calculations built on it.
package emissions

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Known activity categories.
const (
	CategoryCar         = "car"
	CategoryBus         = "bus"
	CategoryFlight      = "flight"
	CategoryElectricity = "electricity"
	CategoryGas         = "gas"
)

// Categories lists the known categories in display order.
var Categories = []string{CategoryCar, CategoryBus, CategoryFlight, CategoryElectricity, CategoryGas}

// IsCategory reports whether name is one of Categories.
func IsCategory(name string) bool {
	for _, category := range Categories {
		if category == name {
			return true
		}
	}
	return false
}

// FactorTable maps a category to kg CO2 per unit. It is immutable once built.
type FactorTable struct {
	factors map[string]float64
}

// DefaultFactors returns the built-in table used when no factor file is configured.
func DefaultFactors() *FactorTable {
	return &FactorTable{factors: map[string]float64{
		CategoryCar:         0.21,
		CategoryBus:         0.10,
		CategoryFlight:      0.25,
		CategoryElectricity: 0.85,
		CategoryGas:         2.3,
	}}
}

// NewFactorTable validates and copies the supplied factors.
func NewFactorTable(factors map[string]float64) (*FactorTable, error) {
	if len(factors) == 0 {
		return nil, ErrEmptyFactors
	}
	out := make(map[string]float64, len(factors))
	for category, factor := range factors {
		name := strings.ToLower(strings.TrimSpace(category))
		if name == "" {
			return nil, fmt.Errorf("%w: empty category name", ErrInvalidFactor)
		}
		if !IsCategory(name) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidFactor, category)
		}
		if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidFactor, category, factor)
		}
		out[name] = factor
	}
	return &FactorTable{factors: out}, nil
}

// LoadFactors reads a JSON or YAML file of category to factor pairs.
// An empty path yields DefaultFactors.
func LoadFactors(path string) (*FactorTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFactors(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emission factors: %w", err)
	}

	raw := map[string]float64{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode emission factors %s: %w", path, err)
	}
	return NewFactorTable(raw)
}

// Factor returns the multiplier for a category, or zero when the category is unknown.
func (t *FactorTable) Factor(category string) float64 {
	return t.factors[category]
}

// Names returns the configured categories sorted alphabetically.
func (t *FactorTable) Names() []string {
	out := make([]string, 0, len(t.factors))
	for name := range t.factors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

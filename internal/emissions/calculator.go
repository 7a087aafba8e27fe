package emissions

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Quantities holds the parsed amounts for the known categories.
type Quantities struct {
	Car         float64
	Bus         float64
	Flight      float64
	Electricity float64
	Gas         float64
}

// Get returns the quantity stored for a known category.
func (q Quantities) Get(category string) float64 {
	switch category {
	case CategoryCar:
		return q.Car
	case CategoryBus:
		return q.Bus
	case CategoryFlight:
		return q.Flight
	case CategoryElectricity:
		return q.Electricity
	case CategoryGas:
		return q.Gas
	}
	return 0
}

// Map returns the quantities keyed by category name.
func (q Quantities) Map() map[string]any {
	out := make(map[string]any, len(Categories))
	for _, category := range Categories {
		out[category] = q.Get(category)
	}
	return out
}

// Contribution is the emission attributable to one category.
type Contribution struct {
	Category string  `json:"category"`
	Quantity float64 `json:"quantity"`
	Factor   float64 `json:"factor"`
	KgCO2    float64 `json:"kg_co2"`
}

// Calculate sums quantity times factor over the known categories in display
// order and rounds to 2 decimals. Malformed quantities and unknown keys contribute nothing.
func (t *FactorTable) Calculate(input map[string]any) float64 {
	return t.CalculateQuantities(ExtractQuantities(input))
}

// CalculateQuantities is Calculate over already parsed quantities.
func (t *FactorTable) CalculateQuantities(q Quantities) float64 {
	total := 0.0
	for _, category := range Categories {
		// The conversion keeps the product rounded on its own, never fused into the add.
		total += float64(q.Get(category) * t.Factor(category))
	}
	return Round2(total)
}

// Breakdown returns the per-category contributions of the known categories in display order.
func (t *FactorTable) Breakdown(input map[string]any) []Contribution {
	q := ExtractQuantities(input)
	out := make([]Contribution, 0, len(Categories))
	for _, category := range Categories {
		factor := t.Factor(category)
		out = append(out, Contribution{
			Category: category,
			Quantity: q.Get(category),
			Factor:   factor,
			KgCO2:    Round2(q.Get(category) * factor),
		})
	}
	return out
}

// ExtractQuantities pulls the known categories out of raw input. Missing or
// malformed values become zero.
func ExtractQuantities(input map[string]any) Quantities {
	get := func(category string) float64 {
		v, ok := ParseQuantity(input[category])
		if !ok {
			return 0
		}
		return v
	}
	return Quantities{
		Car:         get(CategoryCar),
		Bus:         get(CategoryBus),
		Flight:      get(CategoryFlight),
		Electricity: get(CategoryElectricity),
		Gas:         get(CategoryGas),
	}
}

// ParseQuantity converts a text or numeric value into a finite, non-negative float.
func ParseQuantity(raw any) (float64, bool) {
	var v float64
	switch value := raw.(type) {
	case nil:
		return 0, false
	case float64:
		v = value
	case float32:
		v = float64(value)
	case int:
		v = float64(value)
	case int32:
		v = float64(value)
	case int64:
		v = float64(value)
	case uint:
		v = float64(value)
	case uint32:
		v = float64(value)
	case uint64:
		v = float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		v = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

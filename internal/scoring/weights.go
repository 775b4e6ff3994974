// Package scoring turns hazard class percentages and barangay attributes
// into per-hazard composites and the overall BRRS.
package scoring

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/negros-cram/brrs/internal/model"
)

const weightTolerance = 1e-9

// PeriodWeights weights the High-class percentage of each period.
type PeriodWeights map[model.Period]float64

// ClassWeights weights each class percentage of a single-period hazard.
type ClassWeights struct {
	Low      float64 `yaml:"low"`
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	VeryHigh float64 `yaml:"very_high"`
}

// HazardMix blends per-hazard composites into hazard exposure.
type HazardMix struct {
	Flood        float64 `yaml:"flood"`
	StormSurge   float64 `yaml:"storm_surge"`
	Landslide    float64 `yaml:"landslide"`
	Liquefaction float64 `yaml:"liquefaction"`
}

// HealthMix blends the health sensitivity bands.
type HealthMix struct {
	Density    float64 `yaml:"density"`
	Vulnerable float64 `yaml:"vulnerable"`
	Poverty    float64 `yaml:"poverty"`
	AirQuality float64 `yaml:"air_quality"`
}

// CapacityMix blends the adaptive capacity proxies.
type CapacityMix struct {
	Infrastructure float64 `yaml:"infrastructure"`
	Households     float64 `yaml:"households"`
	Economic       float64 `yaml:"economic"`
}

// OverallMix blends the three sub-scores into the BRRS.
type OverallMix struct {
	Hazard   float64 `yaml:"hazard_exposure"`
	Health   float64 `yaml:"health_sensitivity"`
	Capacity float64 `yaml:"adaptive_capacity"`
}

// Weights is the complete weight table used by every scorer. Values are
// passed explicitly; nothing in the package reads global state.
type Weights struct {
	Flood        PeriodWeights `yaml:"flood"`
	StormSurge   PeriodWeights `yaml:"storm_surge"`
	Liquefaction ClassWeights  `yaml:"liquefaction"`
	// DiscreteScale converts a 1-4 susceptibility score to 0-100.
	DiscreteScale float64     `yaml:"discrete_scale"`
	Hazard        HazardMix   `yaml:"hazard_exposure"`
	Health        HealthMix   `yaml:"health_sensitivity"`
	Capacity      CapacityMix `yaml:"adaptive_capacity"`
	Overall       OverallMix  `yaml:"overall"`
}

// DefaultWeights returns a fresh copy of the standard BRRS weight table.
func DefaultWeights() Weights {
	return Weights{
		Flood: PeriodWeights{
			model.PeriodFlood5:   0.20,
			model.PeriodFlood25:  0.50,
			model.PeriodFlood100: 0.30,
		},
		StormSurge: PeriodWeights{
			model.PeriodSSA1: 0.10,
			model.PeriodSSA2: 0.20,
			model.PeriodSSA3: 0.30,
			model.PeriodSSA4: 0.40,
		},
		Liquefaction:  ClassWeights{Low: 0.10, Medium: 0.30, High: 0.50, VeryHigh: 1.00},
		DiscreteScale: 25,
		Hazard:        HazardMix{Flood: 0.35, StormSurge: 0.30, Landslide: 0.20, Liquefaction: 0.15},
		Health:        HealthMix{Density: 0.40, Vulnerable: 0.25, Poverty: 0.20, AirQuality: 0.15},
		Capacity:      CapacityMix{Infrastructure: 0.40, Households: 0.30, Economic: 0.30},
		Overall:       OverallMix{Hazard: 0.40, Health: 0.30, Capacity: 0.30},
	}
}

// Clone returns a deep copy.
func (w Weights) Clone() Weights {
	out := w
	out.Flood = make(PeriodWeights, len(w.Flood))
	for k, v := range w.Flood {
		out.Flood[k] = v
	}
	out.StormSurge = make(PeriodWeights, len(w.StormSurge))
	for k, v := range w.StormSurge {
		out.StormSurge[k] = v
	}
	return out
}

// LoadWeights reads a YAML weight file. Keys absent from the file keep their
// default values.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: read weights %s", path)
	}
	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: parse weights %s", path)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: weights %s", path)
	}
	return w, nil
}

// Validate rejects negative weights, unknown periods, period tables that can
// exceed 100, and blends that do not sum to one.
func (w Weights) Validate() error {
	if err := validatePeriods("flood", w.Flood, model.FloodPeriods); err != nil {
		return err
	}
	if err := validatePeriods("storm_surge", w.StormSurge, model.SurgeAdvisories); err != nil {
		return err
	}
	if err := nonNegative("liquefaction", w.Liquefaction.Low, w.Liquefaction.Medium, w.Liquefaction.High, w.Liquefaction.VeryHigh); err != nil {
		return err
	}
	if w.DiscreteScale < 0 {
		return eris.New("scoring: discrete_scale must be >= 0")
	}

	blends := []struct {
		name string
		vals []float64
	}{
		{"hazard_exposure", []float64{w.Hazard.Flood, w.Hazard.StormSurge, w.Hazard.Landslide, w.Hazard.Liquefaction}},
		{"health_sensitivity", []float64{w.Health.Density, w.Health.Vulnerable, w.Health.Poverty, w.Health.AirQuality}},
		{"adaptive_capacity", []float64{w.Capacity.Infrastructure, w.Capacity.Households, w.Capacity.Economic}},
		{"overall", []float64{w.Overall.Hazard, w.Overall.Health, w.Overall.Capacity}},
	}
	for _, b := range blends {
		if err := nonNegative(b.name, b.vals...); err != nil {
			return err
		}
		var sum float64
		for _, v := range b.vals {
			sum += v
		}
		if math.Abs(sum-1) > weightTolerance {
			return eris.Errorf("scoring: %s weights sum to %g, want 1", b.name, sum)
		}
	}
	return nil
}

func validatePeriods(name string, pw PeriodWeights, allowed []model.Period) error {
	var sum float64
	for p, v := range pw {
		known := false
		for _, a := range allowed {
			if p == a {
				known = true
				break
			}
		}
		if !known {
			return eris.Errorf("scoring: %s has unknown period %q", name, p)
		}
		if v < 0 {
			return eris.Errorf("scoring: %s weight for %s is negative", name, p)
		}
		sum += v
	}
	if sum > 1+weightTolerance {
		return eris.Errorf("scoring: %s weights sum to %g, want <= 1", name, sum)
	}
	return nil
}

func nonNegative(name string, vals ...float64) error {
	for _, v := range vals {
		if v < 0 || math.IsNaN(v) {
			return eris.Errorf("scoring: %s weights must be >= 0", name)
		}
	}
	return nil
}

package scoring

import (
	"time"

	"github.com/negros-cram/brrs/internal/model"
)

// Defaults applied when an input is missing.
const (
	NoHazardScore   = 50.0
	MissingBand     = 50.0
	MissingAirScore = 0.0
	CoastalInfra    = 60.0
	InlandInfra     = 40.0
)

// Risk level thresholds; each bound belongs to the higher level.
const (
	MediumThreshold = 40.0
	HighThreshold   = 70.0
)

// completenessFields is the number of inputs checked by Completeness.
const completenessFields = 11

type band struct {
	above float64
	score float64
}

// Step tables, checked top to bottom with a strict greater-than.
var (
	densityBands    = []band{{100, 100}, {50, 75}, {20, 50}, {10, 25}}
	densityFloor    = 10.0
	vulnerableBands = []band{{50, 100}, {40, 75}, {30, 50}}
	vulnerableFloor = 25.0
	householdBands  = []band{{500, 20}, {200, 40}, {100, 60}}
	householdFloor  = 80.0
	aqiScores       = map[int]float64{1: 0, 2: 25, 3: 50, 4: 75, 5: 100}
)

func banded(v float64, bands []band, floor float64) float64 {
	for _, b := range bands {
		if v > b.above {
			return b.score
		}
	}
	return floor
}

// DensityBand maps people per unit area to a 10-100 score.
func DensityBand(density float64) float64 { return banded(density, densityBands, densityFloor) }

// VulnerableBand maps the elderly plus children share (percent) to 25-100.
func VulnerableBand(pct float64) float64 { return banded(pct, vulnerableBands, vulnerableFloor) }

// HouseholdBand maps household count to 20-80; fewer households score higher.
func HouseholdBand(n float64) float64 { return banded(n, householdBands, householdFloor) }

// AirQualityBand maps the 1-5 index to 0-100; other values score 50.
func AirQualityBand(aq model.AirQuality) float64 {
	if s, ok := aqiScores[aq.Index()]; ok {
		return s
	}
	return 50
}

// PovertyScore doubles the poverty incidence, capped at 100.
func PovertyScore(incidence float64) float64 { return clamp(incidence * 2) }

// HazardExposure blends the composites. A barangay with no hazard record
// scores NoHazardScore.
func HazardExposure(w Weights, h HazardScores) float64 {
	if !h.Any() {
		return NoHazardScore
	}
	m := w.Hazard
	return clamp(h.Flood.Or(0)*m.Flood +
		h.StormSurge.Or(0)*m.StormSurge +
		h.Landslide.Or(0)*m.Landslide +
		h.Liquefaction.Or(0)*m.Liquefaction)
}

// Health is the health sensitivity score with its reported parts.
type Health struct {
	Score      float64
	Density    model.Optional
	AirQuality model.Optional
}

// HealthSensitivity scores density, vulnerable share, poverty and air
// quality. Missing demographics, including a zero poverty incidence, score
// MissingBand; missing air quality scores MissingAirScore.
func HealthSensitivity(w Weights, b model.Barangay, aq *model.AirQuality) Health {
	var out Health
	m := w.Health

	pop, hasPop := positiveInt(b.Population)
	density := MissingBand
	if area, ok := positiveFloat(b.TotalArea); ok && hasPop {
		density = DensityBand(pop / area)
		out.Density = model.Some(density)
	}

	vulnerable := MissingBand
	if hasPop {
		var pct float64
		if b.ElderlyPopulation != nil {
			pct += float64(*b.ElderlyPopulation) / pop * 100
		}
		if b.ChildrenPopulation != nil {
			pct += float64(*b.ChildrenPopulation) / pop * 100
		}
		vulnerable = VulnerableBand(pct)
	}

	poverty := MissingBand
	if p, ok := positiveFloat(b.PovertyIncidence); ok {
		poverty = PovertyScore(p)
	}

	air := MissingAirScore
	if aq != nil {
		air = AirQualityBand(*aq)
		out.AirQuality = model.Some(air)
	}

	out.Score = clamp(density*m.Density + vulnerable*m.Vulnerable + poverty*m.Poverty + air*m.AirQuality)
	return out
}

// AdaptiveCapacity scores infrastructure, household count and economic
// resources. Higher means less capacity.
func AdaptiveCapacity(w Weights, b model.Barangay) float64 {
	m := w.Capacity

	infra := InlandInfra
	if b.IsCoastal {
		infra = CoastalInfra
	}

	households := MissingBand
	if n, ok := positiveInt(b.Households); ok {
		households = HouseholdBand(n)
	}

	economic := MissingBand
	if p, ok := positiveFloat(b.PovertyIncidence); ok {
		economic = PovertyScore(p)
	}

	return clamp(infra*m.Infrastructure + households*m.Households + economic*m.Economic)
}

// Overall blends the three sub-scores.
func Overall(w Weights, hazard, health, capacity float64) float64 {
	m := w.Overall
	return clamp(hazard*m.Hazard + health*m.Health + capacity*m.Capacity)
}

// Classify maps an overall score to a risk level.
func Classify(overall float64) model.RiskLevel {
	switch {
	case overall < MediumThreshold:
		return model.RiskLow
	case overall < HighThreshold:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// Completeness is the percentage of the eleven expected inputs present.
func Completeness(in model.ScoringInput) float64 {
	b := in.Barangay
	present := 0
	count := func(ok bool) {
		if ok {
			present++
		}
	}

	_, ok := positiveInt(b.Population)
	count(ok)
	_, ok = positiveFloat(b.TotalArea)
	count(ok)
	_, ok = positiveInt(b.Households)
	count(ok)
	_, ok = positiveFloat(b.PovertyIncidence)
	count(ok)

	_, ok = in.Profile(model.HazardFlood)
	count(ok)
	_, ok = in.Profile(model.HazardStormSurge)
	count(ok)
	_, ok = in.Profile(model.HazardLiquefaction)
	count(ok)
	_, ok = in.Exposure(model.HazardLandslide)
	count(ok)
	_, ok = in.Exposure(model.HazardFlood)
	count(ok)
	count(in.AirQuality != nil)
	count(in.HasGeometry)

	return float64(present) / completenessFields * 100
}

// Score computes the full resilience record for one barangay.
func Score(w Weights, in model.ScoringInput, now time.Time) model.ResilienceScore {
	hz := Composites(w, in)
	hazard := HazardExposure(w, hz)
	health := HealthSensitivity(w, in.Barangay, in.AirQuality)
	capacity := AdaptiveCapacity(w, in.Barangay)
	overall := Overall(w, hazard, health.Score, capacity)

	return model.ResilienceScore{
		BarangayID:        in.Barangay.ID,
		HazardExposure:    hazard,
		HealthSensitivity: health.Score,
		AdaptiveCapacity:  capacity,
		FloodRisk:         hz.Flood,
		LandslideRisk:     hz.Landslide,
		StormSurgeRisk:    hz.StormSurge,
		LiquefactionRisk:  hz.Liquefaction,
		PopulationDensity: health.Density,
		AirQuality:        health.AirQuality,
		Overall:           overall,
		RiskLevel:         Classify(overall),
		DataCompleteness:  Completeness(in),
		CalculatedAt:      now,
	}
}

func positiveInt(p *int) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return float64(*p), true
}

func positiveFloat(p *float64) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

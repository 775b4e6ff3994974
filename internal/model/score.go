package model

import (
	"strings"
	"time"
)

// RiskLevel is the discrete classification of an overall score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// ParseRiskLevel matches a risk level case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	for _, l := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskUnknown} {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, true
		}
	}
	return "", false
}

// ResilienceScore is the computed BRRS for one barangay.
type ResilienceScore struct {
	BarangayID        int64     `json:"barangay_id"`
	HazardExposure    float64   `json:"hazard_exposure_score"`
	HealthSensitivity float64   `json:"health_sensitivity_score"`
	AdaptiveCapacity  float64   `json:"adaptive_capacity_score"`
	FloodRisk         Optional  `json:"flood_risk_score"`
	LandslideRisk     Optional  `json:"landslide_risk_score"`
	StormSurgeRisk    Optional  `json:"storm_surge_risk_score"`
	LiquefactionRisk  Optional  `json:"liquefaction_risk_score"`
	PopulationDensity Optional  `json:"population_density_score"`
	AirQuality        Optional  `json:"air_quality_score"`
	Overall           float64   `json:"overall_score"`
	RiskLevel         RiskLevel `json:"risk_level"`
	DataCompleteness  float64   `json:"data_completeness"`
	CalculatedAt      time.Time `json:"calculated_at"`
}

// ScoreListItem is a score row joined with barangay identity.
type ScoreListItem struct {
	ResilienceScore
	BarangayName string `json:"barangay_name"`
	Municipality string `json:"municipality"`
}

// ScoringInput is everything the aggregator needs for one barangay.
type ScoringInput struct {
	Barangay    Barangay
	HasGeometry bool
	Profiles    map[HazardType]HazardProfile
	Exposures   map[HazardType]HazardExposure
	AirQuality  *AirQuality
}

// Profile returns the class percentages for a hazard, or nil when absent.
func (in ScoringInput) Profile(h HazardType) (HazardProfile, bool) {
	p, ok := in.Profiles[h]
	if !ok || len(p) == 0 {
		return nil, false
	}
	return p, true
}

// Exposure returns the discrete exposure for a hazard.
func (in ScoringInput) Exposure(h HazardType) (HazardExposure, bool) {
	e, ok := in.Exposures[h]
	return e, ok
}

// ScoreAverages holds mean sub-scores over all scored barangays.
type ScoreAverages struct {
	Overall           Optional `json:"avg_score"`
	HazardExposure    Optional `json:"avg_hazard"`
	HealthSensitivity Optional `json:"avg_health"`
	AdaptiveCapacity  Optional `json:"avg_capacity"`
	High              int      `json:"high_risk"`
	Medium            int      `json:"medium_risk"`
	Low               int      `json:"low_risk"`
}

// HazardCount is an exposure count per hazard type.
type HazardCount struct {
	Hazard HazardType `json:"hazard_type"`
	Count  int        `json:"count"`
}

// HazardCoverage counts barangays with each overlay-derived record.
type HazardCoverage struct {
	NOAHFlood    int `json:"noah_flood"`
	StormSurge   int `json:"storm_surge"`
	Liquefaction int `json:"liquefaction"`
	Landslide    int `json:"landslide"`
}

// Statistics is the province-wide summary.
type Statistics struct {
	Resilience          ScoreAverages  `json:"resilience_stats"`
	Hazards             []HazardCount  `json:"hazard_stats"`
	Coverage            HazardCoverage `json:"hazard_coverage"`
	TotalBarangays      int            `json:"total_barangays"`
	TotalMunicipalities int            `json:"total_municipalities"`
	CoastalBarangays    int            `json:"coastal_barangays"`
}

// MunicipalityRollup summarizes the scores of one municipality's barangays.
type MunicipalityRollup struct {
	MunicipalityID  int64   `json:"municipality_id"`
	Name            string  `json:"name"`
	BarangayCount   int     `json:"barangay_count"`
	AverageBRRS     float64 `json:"avg_brrs"`
	HighRiskCount   int     `json:"high_risk_count"`
	MediumRiskCount int     `json:"medium_risk_count"`
	CoastalCount    int     `json:"coastal_count"`
}

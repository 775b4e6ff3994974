package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// HazardType identifies a hazard layer family.
type HazardType string

const (
	HazardFlood        HazardType = "flood"
	HazardLandslide    HazardType = "landslide"
	HazardStormSurge   HazardType = "storm_surge"
	HazardLiquefaction HazardType = "liquefaction"
	HazardCyclone      HazardType = "cyclone"
)

// HazardTypes lists every known hazard type.
var HazardTypes = []HazardType{HazardFlood, HazardLandslide, HazardStormSurge, HazardLiquefaction, HazardCyclone}

// ParseHazardType accepts the canonical names plus a few spellings used in source files.
func ParseHazardType(s string) (HazardType, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "flood", "flooding":
		return HazardFlood, nil
	case "landslide", "land_slide", "rain_induced_landslide":
		return HazardLandslide, nil
	case "storm_surge", "stormsurge", "surge":
		return HazardStormSurge, nil
	case "liquefaction":
		return HazardLiquefaction, nil
	case "cyclone", "typhoon", "wind":
		return HazardCyclone, nil
	}
	return "", eris.Errorf("model: unknown hazard type %q", s)
}

// Class is a normalized susceptibility class. ClassUnknown means the source
// value was not recognized.
type Class int

const (
	ClassUnknown Class = iota
	ClassLow
	ClassMedium
	ClassHigh
	ClassVeryHigh
)

// Classes lists the recognized classes from lowest to highest.
var Classes = []Class{ClassLow, ClassMedium, ClassHigh, ClassVeryHigh}

func (c Class) String() string {
	switch c {
	case ClassLow:
		return "Low"
	case ClassMedium:
		return "Medium"
	case ClassHigh:
		return "High"
	case ClassVeryHigh:
		return "Very High"
	default:
		return "Unknown"
	}
}

// Score returns the 1-4 susceptibility score, 0 for ClassUnknown.
func (c Class) Score() int {
	if c < ClassLow || c > ClassVeryHigh {
		return 0
	}
	return int(c)
}

// Period keys the sub-dimension of a hazard: a flood return period or a
// storm-surge advisory level. Liquefaction uses PeriodNone.
type Period string

const (
	PeriodNone     Period = ""
	PeriodFlood5   Period = "5yr"
	PeriodFlood25  Period = "25yr"
	PeriodFlood100 Period = "100yr"
	PeriodSSA1     Period = "ssa1"
	PeriodSSA2     Period = "ssa2"
	PeriodSSA3     Period = "ssa3"
	PeriodSSA4     Period = "ssa4"
)

// FloodPeriods are the NOAH flood return periods.
var FloodPeriods = []Period{PeriodFlood5, PeriodFlood25, PeriodFlood100}

// SurgeAdvisories are the storm-surge advisory levels.
var SurgeAdvisories = []Period{PeriodSSA1, PeriodSSA2, PeriodSSA3, PeriodSSA4}

// ParsePeriod validates a period for a hazard type.
func ParsePeriod(h HazardType, s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch h {
	case HazardFlood:
		switch p {
		case "5", "5y":
			p = PeriodFlood5
		case "25", "25y":
			p = PeriodFlood25
		case "100", "100y":
			p = PeriodFlood100
		}
		for _, fp := range FloodPeriods {
			if p == fp {
				return p, nil
			}
		}
		return "", eris.Errorf("model: flood layers need a return period (5yr, 25yr, 100yr), got %q", s)
	case HazardStormSurge:
		if !strings.HasPrefix(string(p), "ssa") {
			p = "ssa" + p
		}
		for _, sp := range SurgeAdvisories {
			if p == sp {
				return p, nil
			}
		}
		return "", eris.Errorf("model: storm surge layers need an advisory level (ssa1..ssa4), got %q", s)
	default:
		if p != PeriodNone {
			return "", eris.Errorf("model: %s layers take no period, got %q", h, s)
		}
		return PeriodNone, nil
	}
}

// ClassPercentages maps each class to a percentage of unit area (0-100).
type ClassPercentages struct {
	Low      float64 `json:"low_pct"`
	Medium   float64 `json:"med_pct"`
	High     float64 `json:"high_pct"`
	VeryHigh float64 `json:"very_high_pct"`
}

// Get returns the percentage for a class.
func (p ClassPercentages) Get(c Class) float64 {
	switch c {
	case ClassLow:
		return p.Low
	case ClassMedium:
		return p.Medium
	case ClassHigh:
		return p.High
	case ClassVeryHigh:
		return p.VeryHigh
	}
	return 0
}

// Set replaces the percentage for a class.
func (p *ClassPercentages) Set(c Class, v float64) {
	switch c {
	case ClassLow:
		p.Low = v
	case ClassMedium:
		p.Medium = v
	case ClassHigh:
		p.High = v
	case ClassVeryHigh:
		p.VeryHigh = v
	}
}

// Total sums all classes.
func (p ClassPercentages) Total() float64 {
	return p.Low + p.Medium + p.High + p.VeryHigh
}

// HazardProfile holds one unit's class percentages for one hazard, keyed by period.
type HazardProfile map[Period]ClassPercentages

// ClassRecord is the persisted overlay result for one barangay, hazard, and period.
type ClassRecord struct {
	BarangayID   int64            `json:"barangay_id"`
	BarangayName string           `json:"barangay_name,omitempty"`
	Municipality string           `json:"municipality,omitempty"`
	Hazard       HazardType       `json:"hazard_type"`
	Period       Period           `json:"period,omitempty"`
	Percentages  ClassPercentages `json:"percentages"`
	Normalized   bool             `json:"normalized"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HazardExposure is a discrete susceptibility record for a barangay (one per
// barangay and hazard type).
type HazardExposure struct {
	ID             int64      `json:"id,omitempty"`
	BarangayID     int64      `json:"barangay_id"`
	BarangayName   string     `json:"barangay_name,omitempty"`
	Hazard         HazardType `json:"hazard_type"`
	Susceptibility string     `json:"susceptibility"`
	Score          int        `json:"susceptibility_score"`
	Source         string     `json:"source"`
	AssessedDate   *time.Time `json:"assessed_date,omitempty"`
}

// Exposure sources.
const (
	SourceLDRRMD             = "LDRRMD"
	SourceLDRRMDMunicipality = "LDRRMD - Municipality Level"
)

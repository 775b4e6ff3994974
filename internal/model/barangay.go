package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Municipality is a city or municipality that groups barangays.
type Municipality struct {
	ID               int64              `json:"id"`
	PSGCCode         string             `json:"psgc_code,omitempty"`
	Name             string             `json:"name"`
	Province         string             `json:"province"`
	Region           string             `json:"region"`
	Classification   string             `json:"classification"`
	Population       *int               `json:"population,omitempty"`
	LandArea         *float64           `json:"land_area,omitempty"`
	ClimateSummary   string             `json:"climate_summary,omitempty"`
	RainfallTrend    string             `json:"rainfall_trend,omitempty"`
	TemperatureTrend string             `json:"temperature_trend,omitempty"`
	Geometry         *geom.MultiPolygon `json:"-"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// MunicipalitySummary is a list row for municipalities.
type MunicipalitySummary struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Province       string `json:"province"`
	Classification string `json:"classification"`
	BarangayCount  int    `json:"barangay_count"`
}

// Barangay is the administrative unit that gets scored.
type Barangay struct {
	ID                 int64              `json:"id"`
	PSGCCode           string             `json:"psgc_code,omitempty"`
	Name               string             `json:"name"`
	Municipality       string             `json:"municipality"`
	MunicipalityID     *int64             `json:"municipality_id,omitempty"`
	Province           string             `json:"province"`
	Region             string             `json:"region"`
	Population         *int               `json:"population,omitempty"`
	Households         *int               `json:"households,omitempty"`
	ElderlyPopulation  *int               `json:"elderly_population,omitempty"`
	ChildrenPopulation *int               `json:"children_population,omitempty"`
	PovertyIncidence   *float64           `json:"poverty_incidence,omitempty"`
	TotalArea          *float64           `json:"total_area,omitempty"`
	IsCoastal          bool               `json:"is_coastal"`
	Geometry           *geom.MultiPolygon `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Demographics is a partial census update for one barangay. Nil fields are
// left untouched.
type Demographics struct {
	BarangayID         int64
	Population         *int
	Households         *int
	ElderlyPopulation  *int
	ChildrenPopulation *int
	PovertyIncidence   *float64
}

// BarangayListItem is a list row joined with its score.
type BarangayListItem struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Municipality string   `json:"municipality"`
	Province     string   `json:"province"`
	Population   *int     `json:"population,omitempty"`
	IsCoastal    bool     `json:"is_coastal"`
	OverallScore Optional `json:"overall_score"`
	RiskLevel    string   `json:"risk_level"`
}

// BarangayDetail is a barangay with its nested hazard and score records.
type BarangayDetail struct {
	Barangay
	MunicipalityName string           `json:"municipality_name,omitempty"`
	Centroid         []float64        `json:"centroid,omitempty"`
	Hazards          []HazardExposure `json:"hazards"`
	ClassRecords     []ClassRecord    `json:"class_records"`
	Score            *ResilienceScore `json:"resilience,omitempty"`
}

// HazardNames returns the hazard types with a discrete exposure record.
func (d *BarangayDetail) HazardNames() []string {
	names := make([]string, 0, len(d.Hazards))
	for _, h := range d.Hazards {
		names = append(names, string(h.Hazard))
	}
	return names
}

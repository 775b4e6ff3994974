package model

import (
	"fmt"
	"math"
	"time"

	"github.com/twpayne/go-geom"
)

// AirQuality is a monthly air-quality aggregate for one municipality.
// AvgAQI is the OpenWeather 1-5 index averaged over the month.
type AirQuality struct {
	ID               int64     `json:"id,omitempty"`
	MunicipalityID   int64     `json:"municipality"`
	MunicipalityName string    `json:"municipality_name,omitempty"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	AvgAQI           float64   `json:"avg_aqi"`
	AvgPM25          Optional  `json:"avg_pm25"`
	AvgPM10          Optional  `json:"avg_pm10"`
	AvgO3            Optional  `json:"avg_o3"`
	AvgNO2           Optional  `json:"avg_no2"`
	AvgCO            Optional  `json:"avg_co"`
	DataPoints       int       `json:"data_points"`
	CreatedAt        time.Time `json:"created_at"`
}

// Period formats the reading's month as YYYY-MM.
func (a AirQuality) Period() string {
	return fmt.Sprintf("%d-%02d", a.Year, a.Month)
}

// Index rounds the monthly average to the 1-5 scale, halves to even.
func (a AirQuality) Index() int {
	return int(math.RoundToEven(a.AvgAQI))
}

// Category labels the 1-5 index.
func (a AirQuality) Category() string {
	switch idx := a.Index(); {
	case idx <= 1:
		return "Good"
	case idx == 2:
		return "Fair"
	case idx == 3:
		return "Moderate"
	case idx == 4:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// CycloneTrack is a historical tropical cyclone path.
type CycloneTrack struct {
	ID         int64            `json:"id,omitempty"`
	Name       string           `json:"name"`
	Category   string           `json:"category,omitempty"`
	BeginIndex int              `json:"begin_index"`
	EndIndex   int              `json:"end_index"`
	Year       int              `json:"year"`
	Affected   bool             `json:"affected_province"`
	Track      *geom.LineString `json:"-"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ClimateSummary is the provincial climate narrative applied to every
// municipality of a province.
type ClimateSummary struct {
	Province         string `yaml:"province" json:"province"`
	Summary          string `yaml:"summary" json:"climate_summary"`
	RainfallTrend    string `yaml:"rainfall_trend" json:"rainfall_trend"`
	TemperatureTrend string `yaml:"temperature_trend" json:"temperature_trend"`
}

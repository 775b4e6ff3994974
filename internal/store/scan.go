package store

import (
	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/model"
)

func scanMunicipality(row scannable) (*model.Municipality, error) {
	var m model.Municipality
	if err := row.Scan(&m.ID, &m.PSGCCode, &m.Name, &m.Province, &m.Region, &m.Classification,
		&m.Population, &m.LandArea, &m.ClimateSummary, &m.RainfallTrend, &m.TemperatureTrend,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// scanBarangay reads barangayCols followed by any extra columns.
func scanBarangay(row scannable, extra ...any) (model.Barangay, error) {
	var b model.Barangay
	dest := []any{
		&b.ID, &b.PSGCCode, &b.Name, &b.Municipality, &b.MunicipalityID, &b.Province, &b.Region,
		&b.Population, &b.Households, &b.ElderlyPopulation, &b.ChildrenPopulation,
		&b.PovertyIncidence, &b.TotalArea, &b.IsCoastal, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Barangay{}, err
	}
	return b, nil
}

func scanExposure(row scannable) (model.HazardExposure, error) {
	var e model.HazardExposure
	var hazard string
	if err := row.Scan(&e.ID, &e.BarangayID, &e.BarangayName, &hazard, &e.Susceptibility,
		&e.Score, &e.Source, &e.AssessedDate); err != nil {
		return model.HazardExposure{}, eris.Wrap(err, "store: scan exposure")
	}
	e.Hazard = model.HazardType(hazard)
	return e, nil
}

func scanAirQuality(row scannable) (model.AirQuality, error) {
	var a model.AirQuality
	var pm25, pm10, o3, no2, co *float64
	if err := row.Scan(&a.ID, &a.MunicipalityID, &a.MunicipalityName, &a.Year, &a.Month, &a.AvgAQI,
		&pm25, &pm10, &o3, &no2, &co, &a.DataPoints, &a.CreatedAt); err != nil {
		return model.AirQuality{}, eris.Wrap(err, "store: scan air quality")
	}
	a.AvgPM25 = model.OptionalFromPtr(pm25)
	a.AvgPM10 = model.OptionalFromPtr(pm10)
	a.AvgO3 = model.OptionalFromPtr(o3)
	a.AvgNO2 = model.OptionalFromPtr(no2)
	a.AvgCO = model.OptionalFromPtr(co)
	return a, nil
}

// scanScore reads scoreCols followed by any extra columns.
func scanScore(row scannable, extra ...any) (*model.ResilienceScore, error) {
	var r model.ResilienceScore
	var flood, landslide, surge, liquefaction, density, air *float64
	var risk string
	dest := []any{
		&r.BarangayID, &r.HazardExposure, &r.HealthSensitivity, &r.AdaptiveCapacity,
		&flood, &landslide, &surge, &liquefaction, &density, &air,
		&r.Overall, &risk, &r.DataCompleteness, &r.CalculatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.FloodRisk = model.OptionalFromPtr(flood)
	r.LandslideRisk = model.OptionalFromPtr(landslide)
	r.StormSurgeRisk = model.OptionalFromPtr(surge)
	r.LiquefactionRisk = model.OptionalFromPtr(liquefaction)
	r.PopulationDensity = model.OptionalFromPtr(density)
	r.AirQuality = model.OptionalFromPtr(air)
	r.RiskLevel = model.RiskLevel(risk)
	return &r, nil
}

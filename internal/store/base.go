package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/db"
	"github.com/negros-cram/brrs/internal/model"
)

// rows is the iteration surface shared by pgx.Rows and *sql.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type scannable interface {
	Scan(dest ...any) error
}

// backend executes statements for one driver. Single-row reads report a
// missing row as ErrNotFound.
type backend interface {
	query(ctx context.Context, sql string, args ...any) (rows, error)
	queryRow(ctx context.Context, sql string, args ...any) scannable
	exec(ctx context.Context, sql string, args ...any) (int64, error)
	inTx(ctx context.Context, fn func(backend) error) error
	upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) (int64, error)
	replace(ctx context.Context, table string, scope db.Scope, columns []string, rows [][]any) (int64, error)
}

// base implements every Store operation on top of a backend. The backends
// differ only in placeholders, geometry output and bulk writes.
type base struct {
	d   *dialect
	be  backend
	now func() time.Time
}

func newBase(d *dialect, be backend) *base {
	return &base{d: d, be: be, now: func() time.Time { return time.Now().UTC() }}
}

const municipalityCols = `m.id, m.psgc_code, m.name, m.province, m.region, m.classification,
	m.population, m.land_area, m.climate_summary, m.rainfall_trend, m.temperature_trend,
	m.created_at, m.updated_at`

const barangayCols = `b.id, b.psgc_code, b.name, b.municipality, b.municipality_id, b.province, b.region,
	b.population, b.households, b.elderly_population, b.children_population,
	b.poverty_incidence, b.total_area, b.is_coastal, b.created_at, b.updated_at`

const exposureCols = `e.id, e.barangay_id, b.name, e.hazard_type, e.susceptibility,
	e.susceptibility_score, e.source, e.assessed_date`

const classRecordCols = `c.barangay_id, b.name, b.municipality, c.hazard_type, c.period,
	c.low_pct, c.med_pct, c.high_pct, c.very_high_pct, c.normalized, c.updated_at`

const airQualityCols = `a.id, a.municipality_id, m.name, a.year, a.month, a.avg_aqi,
	a.avg_pm25, a.avg_pm10, a.avg_o3, a.avg_no2, a.avg_co, a.data_points, a.created_at`

const scoreCols = `r.barangay_id, r.hazard_exposure_score, r.health_sensitivity_score,
	r.adaptive_capacity_score, r.flood_risk_score, r.landslide_risk_score,
	r.storm_surge_risk_score, r.liquefaction_risk_score, r.population_density_score,
	r.air_quality_score, r.overall_score, r.risk_level, r.data_completeness, r.calculated_at`

const runCols = `id, kind, subject, status, processed, skipped, errored, error, started_at, finished_at`

var barangayOrdering = map[string]string{
	"name":          "b.name",
	"population":    "b.population",
	"overall_score": "r.overall_score",
}

var scoreOrdering = map[string]string{
	"overall_score":            "r.overall_score",
	"hazard_exposure_score":    "r.hazard_exposure_score",
	"health_sensitivity_score": "r.health_sensitivity_score",
	"adaptive_capacity_score":  "r.adaptive_capacity_score",
}

// --- writes ---

func (s *base) UpsertMunicipalities(ctx context.Context, ms []model.Municipality) (int64, error) {
	rows := make([][]any, 0, len(ms))
	for _, m := range ms {
		g, err := encodeMultiPolygon(m.Geometry)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			m.PSGCCode, m.Name, orDefault(m.Province, defaultProvince), orDefault(m.Region, defaultRegion),
			orDefault(m.Classification, "Municipality"), m.Population, m.LandArea, g,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table:        "municipalities",
		Columns:      []string{"psgc_code", "name", "province", "region", "classification", "population", "land_area", "geom"},
		ConflictKeys: []string{"name"},
		Keep:         []string{"population", "land_area", "geom"},
		Touch:        "updated_at",
	}, rows)
	return n, eris.Wrap(err, "store: upsert municipalities")
}

func (s *base) UpsertBarangays(ctx context.Context, bs []model.Barangay) (int64, error) {
	rows := make([][]any, 0, len(bs))
	for _, b := range bs {
		g, err := encodeMultiPolygon(b.Geometry)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			b.PSGCCode, b.Name, b.Municipality, orDefault(b.Province, defaultProvince), orDefault(b.Region, defaultRegion),
			b.Population, b.TotalArea, b.IsCoastal, g,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table:        "barangays",
		Columns:      []string{"psgc_code", "name", "municipality", "province", "region", "population", "total_area", "is_coastal", "geom"},
		ConflictKeys: []string{"name", "municipality"},
		Keep:         []string{"population", "total_area", "geom"},
		Touch:        "updated_at",
	}, rows)
	return n, eris.Wrap(err, "store: upsert barangays")
}

func (s *base) UpdateDemographics(ctx context.Context, ds []model.Demographics) (int64, error) {
	var total int64
	err := s.be.inTx(ctx, func(be backend) error {
		for _, d := range ds {
			q := newQuery(s.d, "UPDATE barangays SET ")
			q.add("population = COALESCE(" + q.arg(d.Population) + ", population), ")
			q.add("households = COALESCE(" + q.arg(d.Households) + ", households), ")
			q.add("elderly_population = COALESCE(" + q.arg(d.ElderlyPopulation) + ", elderly_population), ")
			q.add("children_population = COALESCE(" + q.arg(d.ChildrenPopulation) + ", children_population), ")
			q.add("poverty_incidence = COALESCE(" + q.arg(d.PovertyIncidence) + ", poverty_incidence), ")
			q.add("updated_at = " + q.arg(s.now()))
			q.add(" WHERE id = " + q.arg(d.BarangayID))
			n, err := be.exec(ctx, q.String(), q.args...)
			if err != nil {
				return eris.Wrapf(err, "store: update demographics for barangay %d", d.BarangayID)
			}
			total += n
		}
		return nil
	})
	return total, err
}

func (s *base) LinkBarangays(ctx context.Context, links map[int64]int64) (int64, error) {
	ids := make([]int64, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sql := "UPDATE barangays SET municipality_id = " + s.d.ph(1) + ", updated_at = " + s.d.ph(2) + " WHERE id = " + s.d.ph(3)
	var total int64
	err := s.be.inTx(ctx, func(be backend) error {
		now := s.now()
		for _, id := range ids {
			n, err := be.exec(ctx, sql, links[id], now, id)
			if err != nil {
				return eris.Wrapf(err, "store: link barangay %d", id)
			}
			total += n
		}
		return nil
	})
	return total, err
}

func (s *base) UpdateClimate(ctx context.Context, c model.ClimateSummary) (int64, error) {
	q := newQuery(s.d, "UPDATE municipalities SET ")
	q.add("climate_summary = " + q.arg(c.Summary))
	q.add(", rainfall_trend = " + q.arg(c.RainfallTrend))
	q.add(", temperature_trend = " + q.arg(c.TemperatureTrend))
	q.add(", updated_at = " + q.arg(s.now()))
	q.add(" WHERE LOWER(province) = " + q.arg(strings.ToLower(strings.TrimSpace(c.Province))))
	n, err := s.be.exec(ctx, q.String(), q.args...)
	return n, eris.Wrapf(err, "store: update climate for %s", c.Province)
}

func (s *base) ReplaceClassRecords(ctx context.Context, h model.HazardType, p model.Period, recs []model.ClassRecord) (int64, error) {
	now := s.now()
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		updated := r.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		rows = append(rows, []any{
			r.BarangayID, string(h), string(p),
			r.Percentages.Low, r.Percentages.Medium, r.Percentages.High, r.Percentages.VeryHigh,
			r.Normalized, updated,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table:        "hazard_class_records",
		Columns:      []string{"barangay_id", "hazard_type", "period", "low_pct", "med_pct", "high_pct", "very_high_pct", "normalized", "updated_at"},
		ConflictKeys: []string{"barangay_id", "hazard_type", "period"},
		Replace: &db.Scope{
			Where: "hazard_type = " + s.d.ph(1) + " AND period = " + s.d.ph(2),
			Args:  []any{string(h), string(p)},
		},
	}, rows)
	return n, eris.Wrapf(err, "store: replace %s %s class records", h, p)
}

func (s *base) ReplaceExposures(ctx context.Context, h model.HazardType, source string, es []model.HazardExposure) (int64, error) {
	rows := make([][]any, 0, len(es))
	for _, e := range es {
		rows = append(rows, []any{
			e.BarangayID, string(h), e.Susceptibility, e.Score, source, e.AssessedDate,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table:        "hazard_exposures",
		Columns:      []string{"barangay_id", "hazard_type", "susceptibility", "susceptibility_score", "source", "assessed_date"},
		ConflictKeys: []string{"barangay_id", "hazard_type"},
		Replace: &db.Scope{
			Where: "hazard_type = " + s.d.ph(1) + " AND source = " + s.d.ph(2),
			Args:  []any{string(h), source},
		},
	}, rows)
	return n, eris.Wrapf(err, "store: replace %s exposures", h)
}

func (s *base) ReplaceAirQuality(ctx context.Context, aq []model.AirQuality) (int64, error) {
	rows := make([][]any, 0, len(aq))
	for _, a := range aq {
		rows = append(rows, []any{
			a.MunicipalityID, a.Year, a.Month, a.AvgAQI,
			a.AvgPM25.Ptr(), a.AvgPM10.Ptr(), a.AvgO3.Ptr(), a.AvgNO2.Ptr(), a.AvgCO.Ptr(),
			a.DataPoints,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table:        "air_quality",
		Columns:      []string{"municipality_id", "year", "month", "avg_aqi", "avg_pm25", "avg_pm10", "avg_o3", "avg_no2", "avg_co", "data_points"},
		ConflictKeys: []string{"municipality_id", "year", "month"},
	}, rows)
	return n, eris.Wrap(err, "store: replace air quality")
}

func (s *base) ReplaceCycloneTracks(ctx context.Context, ts []model.CycloneTrack) (int64, error) {
	rows := make([][]any, 0, len(ts))
	for _, t := range ts {
		g, err := encodeLineString(t.Track)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{t.Name, t.Category, t.BeginIndex, t.EndIndex, t.Year, t.Affected, g})
	}
	n, err := s.be.replace(ctx, "cyclone_tracks", db.Scope{},
		[]string{"name", "category", "begin_index", "end_index", "year", "affected_province", "track"}, rows)
	return n, eris.Wrap(err, "store: replace cyclone tracks")
}

func (s *base) UpsertScores(ctx context.Context, scores []model.ResilienceScore) (int64, error) {
	rows := make([][]any, 0, len(scores))
	for _, r := range scores {
		rows = append(rows, []any{
			r.BarangayID, r.HazardExposure, r.HealthSensitivity, r.AdaptiveCapacity,
			r.FloodRisk.Ptr(), r.LandslideRisk.Ptr(), r.StormSurgeRisk.Ptr(), r.LiquefactionRisk.Ptr(),
			r.PopulationDensity.Ptr(), r.AirQuality.Ptr(),
			r.Overall, string(r.RiskLevel), r.DataCompleteness, r.CalculatedAt,
		})
	}
	n, err := s.be.upsert(ctx, db.UpsertConfig{
		Table: "resilience_scores",
		Columns: []string{
			"barangay_id", "hazard_exposure_score", "health_sensitivity_score", "adaptive_capacity_score",
			"flood_risk_score", "landslide_risk_score", "storm_surge_risk_score", "liquefaction_risk_score",
			"population_density_score", "air_quality_score",
			"overall_score", "risk_level", "data_completeness", "calculated_at",
		},
		ConflictKeys: []string{"barangay_id"},
		Touch:        "updated_at",
	}, rows)
	return n, eris.Wrap(err, "store: upsert scores")
}

func (s *base) RecordRun(ctx context.Context, r *model.Run) error {
	q := newQuery(s.d, "INSERT INTO score_runs ("+runCols+") VALUES (")
	vals := []any{r.ID, string(r.Kind), r.Subject, string(r.Status), r.Processed, r.Skipped, r.Errored, r.Error, r.StartedAt, r.FinishedAt}
	for i, v := range vals {
		if i > 0 {
			q.add(", ")
		}
		q.add(q.arg(v))
	}
	q.add(`) ON CONFLICT (id) DO UPDATE SET status = excluded.status, processed = excluded.processed,
		skipped = excluded.skipped, errored = excluded.errored, error = excluded.error,
		finished_at = excluded.finished_at`)
	_, err := s.be.exec(ctx, q.String(), q.args...)
	return eris.Wrapf(err, "store: record run %s", r.ID)
}

// --- reads ---

func (s *base) ListMunicipalities(ctx context.Context, f MunicipalityFilter) ([]model.MunicipalitySummary, error) {
	q := newQuery(s.d, `SELECT m.id, m.name, m.province, m.classification, COUNT(b.id)
		FROM municipalities m LEFT JOIN barangays b ON b.municipality_id = m.id WHERE 1=1`)
	if f.Search != "" {
		q.and("LOWER(m.name) LIKE " + q.arg(likePattern(f.Search)) + ` ESCAPE '\'`)
	}
	if f.Province != "" {
		q.and("LOWER(m.province) = " + q.arg(strings.ToLower(f.Province)))
	}
	if f.Classification != "" {
		q.and("LOWER(m.classification) = " + q.arg(strings.ToLower(f.Classification)))
	}
	q.add(" GROUP BY m.id, m.name, m.province, m.classification ORDER BY m.name")

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list municipalities")
	}
	defer rs.Close()

	var out []model.MunicipalitySummary
	for rs.Next() {
		var m model.MunicipalitySummary
		if err := rs.Scan(&m.ID, &m.Name, &m.Province, &m.Classification, &m.BarangayCount); err != nil {
			return nil, eris.Wrap(err, "store: scan municipality")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rs.Err(), "store: list municipalities iterate")
}

func (s *base) GetMunicipality(ctx context.Context, id int64) (*model.Municipality, error) {
	sql := "SELECT " + municipalityCols + " FROM municipalities m WHERE m.id = " + s.d.ph(1)
	m, err := scanMunicipality(s.be.queryRow(ctx, sql, id))
	if err != nil {
		return nil, eris.Wrapf(err, "store: get municipality %d", id)
	}
	return m, nil
}

func (s *base) ListBarangays(ctx context.Context, f BarangayFilter) ([]model.BarangayListItem, error) {
	q := newQuery(s.d, `SELECT b.id, b.name, b.municipality, b.province, b.population, b.is_coastal,
		r.overall_score, COALESCE(r.risk_level, '')
		FROM barangays b LEFT JOIN resilience_scores r ON r.barangay_id = b.id WHERE 1=1`)
	if f.MunicipalityID != nil {
		q.and("b.municipality_id = " + q.arg(*f.MunicipalityID))
	}
	if f.Municipality != "" {
		q.and("LOWER(b.municipality) = " + q.arg(strings.ToLower(strings.TrimSpace(f.Municipality))))
	}
	if f.Coastal != nil {
		q.and("b.is_coastal = " + q.arg(*f.Coastal))
	}
	if f.RiskLevel != "" {
		q.and("r.risk_level = " + q.arg(string(f.RiskLevel)))
	}
	if f.Search != "" {
		q.and("LOWER(b.name) LIKE " + q.arg(likePattern(f.Search)) + ` ESCAPE '\'`)
	}
	q.add(" ORDER BY " + orderBy(f.Ordering, barangayOrdering, "b.name ASC") + ", b.id")
	q.page(f.Limit, f.Offset)

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list barangays")
	}
	defer rs.Close()

	var out []model.BarangayListItem
	for rs.Next() {
		var it model.BarangayListItem
		var overall *float64
		var risk string
		if err := rs.Scan(&it.ID, &it.Name, &it.Municipality, &it.Province, &it.Population, &it.IsCoastal, &overall, &risk); err != nil {
			return nil, eris.Wrap(err, "store: scan barangay row")
		}
		it.OverallScore = model.OptionalFromPtr(overall)
		it.RiskLevel = risk
		out = append(out, it)
	}
	return out, eris.Wrap(rs.Err(), "store: list barangays iterate")
}

func (s *base) GetBarangay(ctx context.Context, id int64) (*model.BarangayDetail, error) {
	sql := "SELECT " + barangayCols + ", " + s.d.geomOut("b.geom") + `, COALESCE(m.name, '')
		FROM barangays b LEFT JOIN municipalities m ON m.id = b.municipality_id WHERE b.id = ` + s.d.ph(1)

	var d model.BarangayDetail
	var geomBytes []byte
	b, err := scanBarangay(s.be.queryRow(ctx, sql, id), &geomBytes, &d.MunicipalityName)
	if err != nil {
		return nil, eris.Wrapf(err, "store: get barangay %d", id)
	}
	if b.Geometry, err = decodeMultiPolygon(geomBytes); err != nil {
		return nil, err
	}
	d.Barangay = b
	d.Centroid = centroid(b.Geometry)

	if d.Hazards, err = s.ListExposures(ctx, ExposureFilter{BarangayID: &id}); err != nil {
		return nil, err
	}
	if d.ClassRecords, err = s.classRecords(ctx, "c.barangay_id", id); err != nil {
		return nil, err
	}
	if d.Hazards == nil {
		d.Hazards = []model.HazardExposure{}
	}
	if d.ClassRecords == nil {
		d.ClassRecords = []model.ClassRecord{}
	}

	score, err := scanScore(s.be.queryRow(ctx, "SELECT "+scoreCols+" FROM resilience_scores r WHERE r.barangay_id = "+s.d.ph(1), id))
	switch {
	case err == nil:
		d.Score = score
	case eris.Is(err, ErrNotFound):
	default:
		return nil, eris.Wrapf(err, "store: get score for barangay %d", id)
	}
	return &d, nil
}

func (s *base) LoadUnits(ctx context.Context) ([]model.Barangay, error) {
	sql := "SELECT " + barangayCols + ", " + s.d.geomOut("b.geom") + " FROM barangays b ORDER BY b.id"
	rs, err := s.be.query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "store: load units")
	}
	defer rs.Close()

	var out []model.Barangay
	for rs.Next() {
		var geomBytes []byte
		b, err := scanBarangay(rs, &geomBytes)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan unit")
		}
		if b.Geometry, err = decodeMultiPolygon(geomBytes); err != nil {
			return nil, eris.Wrapf(err, "store: unit %d", b.ID)
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rs.Err(), "store: load units iterate")
}

func (s *base) ListClassRecords(ctx context.Context, h model.HazardType) ([]model.ClassRecord, error) {
	return s.classRecords(ctx, "c.hazard_type", string(h))
}

func (s *base) classRecords(ctx context.Context, col string, v any) ([]model.ClassRecord, error) {
	sql := "SELECT " + classRecordCols + ` FROM hazard_class_records c
		JOIN barangays b ON b.id = c.barangay_id WHERE ` + col + " = " + s.d.ph(1) +
		" ORDER BY b.name, c.barangay_id, c.hazard_type, c.period"
	rs, err := s.be.query(ctx, sql, v)
	if err != nil {
		return nil, eris.Wrap(err, "store: list class records")
	}
	defer rs.Close()

	var out []model.ClassRecord
	for rs.Next() {
		var r model.ClassRecord
		var hazard, period string
		if err := rs.Scan(&r.BarangayID, &r.BarangayName, &r.Municipality, &hazard, &period,
			&r.Percentages.Low, &r.Percentages.Medium, &r.Percentages.High, &r.Percentages.VeryHigh,
			&r.Normalized, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan class record")
		}
		r.Hazard = model.HazardType(hazard)
		r.Period = model.Period(period)
		out = append(out, r)
	}
	return out, eris.Wrap(rs.Err(), "store: list class records iterate")
}

func (s *base) ListExposures(ctx context.Context, f ExposureFilter) ([]model.HazardExposure, error) {
	q := newQuery(s.d, "SELECT "+exposureCols+" FROM hazard_exposures e JOIN barangays b ON b.id = e.barangay_id WHERE 1=1")
	if f.BarangayID != nil {
		q.and("e.barangay_id = " + q.arg(*f.BarangayID))
	}
	if f.Hazard != "" {
		q.and("e.hazard_type = " + q.arg(string(f.Hazard)))
	}
	if f.Susceptibility != "" {
		q.and("LOWER(e.susceptibility) = " + q.arg(strings.ToLower(f.Susceptibility)))
	}
	q.add(" ORDER BY b.name, e.barangay_id, e.hazard_type")

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list exposures")
	}
	defer rs.Close()

	var out []model.HazardExposure
	for rs.Next() {
		e, err := scanExposure(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rs.Err(), "store: list exposures iterate")
}

func (s *base) ListAirQuality(ctx context.Context, f AirQualityFilter) ([]model.AirQuality, error) {
	q := newQuery(s.d, "SELECT "+airQualityCols+" FROM air_quality a JOIN municipalities m ON m.id = a.municipality_id WHERE 1=1")
	if f.MunicipalityID != nil {
		q.and("a.municipality_id = " + q.arg(*f.MunicipalityID))
	}
	if f.Year > 0 {
		q.and("a.year = " + q.arg(f.Year))
	}
	if f.Month > 0 {
		q.and("a.month = " + q.arg(f.Month))
	}
	if f.Latest {
		q.and("a.year * 100 + a.month = (SELECT MAX(year * 100 + month) FROM air_quality)")
	}
	q.add(" ORDER BY a.year DESC, a.month DESC, m.name")

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list air quality")
	}
	defer rs.Close()

	var out []model.AirQuality
	for rs.Next() {
		a, err := scanAirQuality(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rs.Err(), "store: list air quality iterate")
}

func (s *base) ListCycloneTracks(ctx context.Context, f CycloneFilter) ([]model.CycloneTrack, error) {
	q := newQuery(s.d, `SELECT id, name, category, begin_index, end_index, year, affected_province, `+
		s.d.geomOut("track")+`, created_at FROM cyclone_tracks WHERE 1=1`)
	if f.Year > 0 {
		q.and("year = " + q.arg(f.Year))
	}
	if f.Category != "" {
		q.and("LOWER(category) = " + q.arg(strings.ToLower(f.Category)))
	}
	if f.Affected != nil {
		q.and("affected_province = " + q.arg(*f.Affected))
	}
	q.add(" ORDER BY year DESC, name")

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list cyclone tracks")
	}
	defer rs.Close()

	var out []model.CycloneTrack
	for rs.Next() {
		var t model.CycloneTrack
		var track []byte
		if err := rs.Scan(&t.ID, &t.Name, &t.Category, &t.BeginIndex, &t.EndIndex, &t.Year, &t.Affected, &track, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan cyclone track")
		}
		if t.Track, err = decodeLineString(track); err != nil {
			return nil, eris.Wrapf(err, "store: cyclone %s", t.Name)
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rs.Err(), "store: list cyclone tracks iterate")
}

func (s *base) LoadScoringInputs(ctx context.Context) ([]model.ScoringInput, error) {
	sql := "SELECT " + barangayCols + ", CASE WHEN b.geom IS NULL THEN 0 ELSE 1 END FROM barangays b ORDER BY b.id"
	rs, err := s.be.query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "store: load scoring barangays")
	}
	var inputs []model.ScoringInput
	index := make(map[int64]int)
	for rs.Next() {
		var hasGeom int
		b, err := scanBarangay(rs, &hasGeom)
		if err != nil {
			rs.Close()
			return nil, eris.Wrap(err, "store: scan scoring barangay")
		}
		index[b.ID] = len(inputs)
		inputs = append(inputs, model.ScoringInput{
			Barangay:    b,
			HasGeometry: hasGeom == 1,
			Profiles:    map[model.HazardType]model.HazardProfile{},
			Exposures:   map[model.HazardType]model.HazardExposure{},
		})
	}
	rs.Close()
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "store: load scoring barangays iterate")
	}

	recs, err := s.allClassRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		i, ok := index[r.BarangayID]
		if !ok {
			continue
		}
		p := inputs[i].Profiles[r.Hazard]
		if p == nil {
			p = model.HazardProfile{}
			inputs[i].Profiles[r.Hazard] = p
		}
		p[r.Period] = r.Percentages
	}

	exposures, err := s.ListExposures(ctx, ExposureFilter{})
	if err != nil {
		return nil, err
	}
	for _, e := range exposures {
		if i, ok := index[e.BarangayID]; ok {
			inputs[i].Exposures[e.Hazard] = e
		}
	}

	air, err := s.ListAirQuality(ctx, AirQualityFilter{})
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]*model.AirQuality)
	for i := range air {
		// rows arrive newest first
		if _, ok := latest[air[i].MunicipalityID]; !ok {
			latest[air[i].MunicipalityID] = &air[i]
		}
	}
	for i := range inputs {
		if mid := inputs[i].Barangay.MunicipalityID; mid != nil {
			inputs[i].AirQuality = latest[*mid]
		}
	}
	return inputs, nil
}

func (s *base) allClassRecords(ctx context.Context) ([]model.ClassRecord, error) {
	sql := "SELECT " + classRecordCols + ` FROM hazard_class_records c
		JOIN barangays b ON b.id = c.barangay_id ORDER BY c.barangay_id, c.hazard_type, c.period`
	rs, err := s.be.query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "store: load class records")
	}
	defer rs.Close()

	var out []model.ClassRecord
	for rs.Next() {
		var r model.ClassRecord
		var hazard, period string
		if err := rs.Scan(&r.BarangayID, &r.BarangayName, &r.Municipality, &hazard, &period,
			&r.Percentages.Low, &r.Percentages.Medium, &r.Percentages.High, &r.Percentages.VeryHigh,
			&r.Normalized, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan class record")
		}
		r.Hazard = model.HazardType(hazard)
		r.Period = model.Period(period)
		out = append(out, r)
	}
	return out, eris.Wrap(rs.Err(), "store: load class records iterate")
}

func (s *base) ListScores(ctx context.Context, f ScoreFilter) ([]model.ScoreListItem, error) {
	q := newQuery(s.d, "SELECT "+scoreCols+`, b.name, b.municipality
		FROM resilience_scores r JOIN barangays b ON b.id = r.barangay_id WHERE 1=1`)
	if f.RiskLevel != "" {
		q.and("r.risk_level = " + q.arg(string(f.RiskLevel)))
	}
	q.add(" ORDER BY " + orderBy(f.Ordering, scoreOrdering, "r.overall_score DESC") + ", r.barangay_id")
	q.page(f.Limit, 0)

	rs, err := s.be.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scores")
	}
	defer rs.Close()

	var out []model.ScoreListItem
	for rs.Next() {
		var it model.ScoreListItem
		score, err := scanScore(rs, &it.BarangayName, &it.Municipality)
		if err != nil {
			return nil, err
		}
		it.ResilienceScore = *score
		out = append(out, it)
	}
	return out, eris.Wrap(rs.Err(), "store: list scores iterate")
}

func (s *base) Statistics(ctx context.Context) (*model.Statistics, error) {
	var st model.Statistics

	var avgOverall, avgHazard, avgHealth, avgCapacity *float64
	err := s.be.queryRow(ctx, `SELECT AVG(overall_score), AVG(hazard_exposure_score),
		AVG(health_sensitivity_score), AVG(adaptive_capacity_score),
		COALESCE(SUM(CASE WHEN risk_level = 'High' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN risk_level = 'Medium' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN risk_level = 'Low' THEN 1 ELSE 0 END), 0)
		FROM resilience_scores`).Scan(&avgOverall, &avgHazard, &avgHealth, &avgCapacity,
		&st.Resilience.High, &st.Resilience.Medium, &st.Resilience.Low)
	if err != nil {
		return nil, eris.Wrap(err, "store: score averages")
	}
	st.Resilience.Overall = model.OptionalFromPtr(avgOverall)
	st.Resilience.HazardExposure = model.OptionalFromPtr(avgHazard)
	st.Resilience.HealthSensitivity = model.OptionalFromPtr(avgHealth)
	st.Resilience.AdaptiveCapacity = model.OptionalFromPtr(avgCapacity)

	rs, err := s.be.query(ctx, "SELECT hazard_type, COUNT(*) FROM hazard_exposures GROUP BY hazard_type ORDER BY hazard_type")
	if err != nil {
		return nil, eris.Wrap(err, "store: hazard counts")
	}
	st.Hazards = []model.HazardCount{}
	for rs.Next() {
		var hc model.HazardCount
		var hazard string
		if err := rs.Scan(&hazard, &hc.Count); err != nil {
			rs.Close()
			return nil, eris.Wrap(err, "store: scan hazard count")
		}
		hc.Hazard = model.HazardType(hazard)
		st.Hazards = append(st.Hazards, hc)
		if hc.Hazard == model.HazardLandslide {
			st.Coverage.Landslide = hc.Count
		}
	}
	rs.Close()
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "store: hazard counts iterate")
	}

	rs, err = s.be.query(ctx, "SELECT hazard_type, COUNT(DISTINCT barangay_id) FROM hazard_class_records GROUP BY hazard_type")
	if err != nil {
		return nil, eris.Wrap(err, "store: coverage counts")
	}
	for rs.Next() {
		var hazard string
		var n int
		if err := rs.Scan(&hazard, &n); err != nil {
			rs.Close()
			return nil, eris.Wrap(err, "store: scan coverage count")
		}
		switch model.HazardType(hazard) {
		case model.HazardFlood:
			st.Coverage.NOAHFlood = n
		case model.HazardStormSurge:
			st.Coverage.StormSurge = n
		case model.HazardLiquefaction:
			st.Coverage.Liquefaction = n
		}
	}
	rs.Close()
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "store: coverage counts iterate")
	}

	err = s.be.queryRow(ctx, `SELECT (SELECT COUNT(*) FROM barangays),
		(SELECT COUNT(*) FROM municipalities),
		(SELECT COUNT(*) FROM barangays WHERE is_coastal = `+s.d.ph(1)+`)`, true).
		Scan(&st.TotalBarangays, &st.TotalMunicipalities, &st.CoastalBarangays)
	if err != nil {
		return nil, eris.Wrap(err, "store: totals")
	}
	return &st, nil
}

func (s *base) MunicipalityRollup(ctx context.Context, id int64) (*model.MunicipalityRollup, error) {
	sql := `SELECT m.id, m.name, COUNT(b.id), COALESCE(AVG(r.overall_score), 0),
		COALESCE(SUM(CASE WHEN r.risk_level = 'High' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN r.risk_level = 'Medium' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN b.is_coastal THEN 1 ELSE 0 END), 0)
		FROM municipalities m
		LEFT JOIN barangays b ON b.municipality_id = m.id
		LEFT JOIN resilience_scores r ON r.barangay_id = b.id
		WHERE m.id = ` + s.d.ph(1) + `
		GROUP BY m.id, m.name`
	var r model.MunicipalityRollup
	err := s.be.queryRow(ctx, sql, id).Scan(&r.MunicipalityID, &r.Name, &r.BarangayCount, &r.AverageBRRS,
		&r.HighRiskCount, &r.MediumRiskCount, &r.CoastalCount)
	if err != nil {
		return nil, eris.Wrapf(err, "store: rollup municipality %d", id)
	}
	return &r, nil
}

func (s *base) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := "SELECT " + runCols + " FROM score_runs ORDER BY started_at DESC, id LIMIT " + s.d.ph(1)
	rs, err := s.be.query(ctx, sql, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rs.Close()

	var out []model.Run
	for rs.Next() {
		var r model.Run
		var kind, status string
		if err := rs.Scan(&r.ID, &kind, &r.Subject, &status, &r.Processed, &r.Skipped, &r.Errored, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rs.Err(), "store: list runs iterate")
}

const (
	defaultProvince = "Negros Oriental"
	defaultRegion   = "Region VII"
)

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

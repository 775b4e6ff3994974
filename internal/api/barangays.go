package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/store"
)

const (
	riskHigh   = model.RiskHigh
	riskMedium = model.RiskMedium
	topRiskN   = 10
	// geometryDigits keeps roughly 0.1 m of precision.
	geometryDigits = 6
)

func (a *API) listBarangays(w http.ResponseWriter, r *http.Request) {
	f, err := barangayFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeBarangays(w, r, f)
}

// barangayFilter reads the list query. municipality accepts an id or a name.
func barangayFilter(r *http.Request) (store.BarangayFilter, error) {
	q := r.URL.Query()
	f := store.BarangayFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Ordering: strings.TrimSpace(q.Get("ordering")),
	}
	if m := strings.TrimSpace(q.Get("municipality")); m != "" {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			f.MunicipalityID = &id
		} else {
			f.Municipality = m
		}
	}
	var err error
	if f.Coastal, err = queryBool(r, "is_coastal"); err != nil {
		return f, err
	}
	if f.RiskLevel, err = queryRiskLevel(r); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = page(r); err != nil {
		return f, err
	}
	return f, nil
}

func (a *API) writeBarangays(w http.ResponseWriter, r *http.Request, f store.BarangayFilter) {
	bs, err := a.store.ListBarangays(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(bs))
}

func (a *API) riskBarangays(level model.RiskLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.writeBarangays(w, r, store.BarangayFilter{RiskLevel: level, Ordering: "-overall_score"})
	}
}

func (a *API) coastalBarangays(w http.ResponseWriter, r *http.Request) {
	coastal := true
	a.writeBarangays(w, r, store.BarangayFilter{Coastal: &coastal, Ordering: "name"})
}

func (a *API) statistics(w http.ResponseWriter, r *http.Request) {
	s, err := a.store.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// barangayDetail adds the boundary as GeoJSON.
type barangayDetail struct {
	*model.BarangayDetail
	Geometry *geojson.Geometry `json:"geometry"`
}

func (a *API) getBarangay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.store.GetBarangay(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := barangayDetail{BarangayDetail: d}
	if d.Geometry != nil && !d.Geometry.Empty() {
		if out.Geometry, err = geojson.Encode(d.Geometry, geojson.EncodeGeometryWithMaxDecimalDigits(geometryDigits)); err != nil {
			writeError(w, r, eris.Wrapf(err, "api: encode barangay %d geometry", id))
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listScores(w http.ResponseWriter, r *http.Request) {
	level, err := queryRiskLevel(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, _, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeScores(w, r, store.ScoreFilter{
		RiskLevel: level,
		Ordering:  strings.TrimSpace(r.URL.Query().Get("ordering")),
		Limit:     limit,
	})
}

func (a *API) topRisk(w http.ResponseWriter, r *http.Request) {
	a.writeScores(w, r, store.ScoreFilter{Ordering: "-overall_score", Limit: topRiskN})
}

func (a *API) writeScores(w http.ResponseWriter, r *http.Request, f store.ScoreFilter) {
	ss, err := a.store.ListScores(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ss))
}

func (a *API) listExposures(w http.ResponseWriter, r *http.Request) {
	h, err := queryHazard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := store.ExposureFilter{
		Hazard:         h,
		Susceptibility: strings.TrimSpace(r.URL.Query().Get("susceptibility")),
	}
	if raw := r.URL.Query().Get("barangay"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, badRequest("invalid barangay %q", raw))
			return
		}
		f.BarangayID = &id
	}
	es, err := a.store.ListExposures(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(es))
}

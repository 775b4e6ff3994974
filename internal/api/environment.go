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

// airQualityRow adds the derived index and category to a reading.
type airQualityRow struct {
	model.AirQuality
	Index    int    `json:"aqi_index"`
	Category string `json:"category"`
}

func airQualityRows(rows []model.AirQuality) []airQualityRow {
	out := make([]airQualityRow, len(rows))
	for i, aq := range rows {
		out[i] = airQualityRow{AirQuality: aq, Index: aq.Index(), Category: aq.Category()}
	}
	return out
}

func (a *API) listAirQuality(w http.ResponseWriter, r *http.Request) {
	var f store.AirQualityFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("municipality")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, badRequest("invalid municipality %q", raw))
			return
		}
		f.MunicipalityID = &id
	}
	var err error
	if f.Year, err = queryInt(r, "year"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Month, err = queryInt(r, "month"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Month > 12 {
		writeError(w, r, badRequest("invalid month %d", f.Month))
		return
	}
	rows, err := a.store.ListAirQuality(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, airQualityRows(rows))
}

func (a *API) latestAirQuality(w http.ResponseWriter, r *http.Request) {
	rows, err := a.store.ListAirQuality(r.Context(), store.AirQualityFilter{Latest: true})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, airQualityRows(rows))
}

// cycloneFeature carries the track as GeoJSON.
type cycloneFeature struct {
	model.CycloneTrack
	Geometry *geojson.Geometry `json:"geometry"`
}

func cycloneFeatures(ts []model.CycloneTrack) ([]cycloneFeature, error) {
	out := make([]cycloneFeature, len(ts))
	for i, t := range ts {
		out[i].CycloneTrack = t
		if t.Track == nil || t.Track.Empty() {
			continue
		}
		g, err := geojson.Encode(t.Track, geojson.EncodeGeometryWithMaxDecimalDigits(geometryDigits))
		if err != nil {
			return nil, eris.Wrapf(err, "api: encode track %q", t.Name)
		}
		out[i].Geometry = g
	}
	return out, nil
}

func (a *API) listCyclones(w http.ResponseWriter, r *http.Request) {
	f := store.CycloneFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}
	var err error
	if f.Year, err = queryInt(r, "year"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Affected, err = queryBool(r, "affected"); err != nil {
		writeError(w, r, err)
		return
	}
	a.writeCyclones(w, r, f)
}

func (a *API) affectingCyclones(w http.ResponseWriter, r *http.Request) {
	affected := true
	a.writeCyclones(w, r, store.CycloneFilter{Affected: &affected})
}

func (a *API) writeCyclones(w http.ResponseWriter, r *http.Request, f store.CycloneFilter) {
	ts, err := a.store.ListCycloneTracks(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := cycloneFeatures(ts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

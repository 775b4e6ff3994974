package api

import (
	"net/http"
	"time"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/store"
)

// narrativeMeta is shared by every AI endpoint response.
type narrativeMeta struct {
	Provider    string    `json:"provider"`
	Cached      bool      `json:"cached"`
	Fallback    bool      `json:"fallback"`
	GeneratedAt time.Time `json:"generated_at"`
}

func meta(res narrative.Result) narrativeMeta {
	return narrativeMeta{
		Provider:    res.Provider,
		Cached:      res.Cached,
		Fallback:    res.Fallback,
		GeneratedAt: res.GeneratedAt,
	}
}

type barangayAnalysis struct {
	BarangayID   int64                  `json:"barangay_id"`
	BarangayName string                 `json:"barangay_name"`
	Analysis     string                 `json:"analysis"`
	Data         *model.ResilienceScore `json:"data"`
	narrativeMeta
}

func (a *API) barangayAnalysis(w http.ResponseWriter, r *http.Request) {
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
	res := a.narrator.BarangayAnalysis(r.Context(), d)
	writeJSON(w, http.StatusOK, barangayAnalysis{
		BarangayID:    d.ID,
		BarangayName:  d.Name,
		Analysis:      res.Text,
		Data:          d.Score,
		narrativeMeta: meta(res),
	})
}

type municipalReport struct {
	Municipality string                    `json:"municipality"`
	Report       string                    `json:"report"`
	Data         *model.MunicipalityRollup `json:"data"`
	narrativeMeta
}

func (a *API) municipalityReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roll, err := a.store.MunicipalityRollup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := a.narrator.MunicipalReport(r.Context(), roll)
	writeJSON(w, http.StatusOK, municipalReport{
		Municipality:  roll.Name,
		Report:        res.Text,
		Data:          roll,
		narrativeMeta: meta(res),
	})
}

type airQualityAnalysis struct {
	Analysis string          `json:"analysis"`
	Period   string          `json:"period"`
	Data     []airQualityRow `json:"data"`
	narrativeMeta
}

// airQualityAnalysis describes the latest month; 404 when no readings exist.
func (a *API) airQualityAnalysis(w http.ResponseWriter, r *http.Request) {
	rows, err := a.store.ListAirQuality(r.Context(), store.AirQualityFilter{Latest: true})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: narrative.NoAirQualityData})
		return
	}
	res := a.narrator.AirQualityAnalysis(r.Context(), rows)
	writeJSON(w, http.StatusOK, airQualityAnalysis{
		Analysis:      res.Text,
		Period:        rows[0].Period(),
		Data:          airQualityRows(rows),
		narrativeMeta: meta(res),
	})
}

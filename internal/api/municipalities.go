package api

import (
	"net/http"
	"strings"

	"github.com/negros-cram/brrs/internal/store"
)

func (a *API) listMunicipalities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ms, err := a.store.ListMunicipalities(r.Context(), store.MunicipalityFilter{
		Search:         strings.TrimSpace(q.Get("search")),
		Province:       strings.TrimSpace(q.Get("province")),
		Classification: strings.TrimSpace(q.Get("classification")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ms))
}

func (a *API) getMunicipality(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := a.store.GetMunicipality(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) municipalityBarangays(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := a.store.GetMunicipality(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	bs, err := a.store.ListBarangays(r.Context(), store.BarangayFilter{
		MunicipalityID: &id,
		Ordering:       "name",
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(bs))
}

func (a *API) municipalityAirQuality(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := a.store.GetMunicipality(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.store.ListAirQuality(r.Context(), store.AirQualityFilter{MunicipalityID: &id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, airQualityRows(rows))
}

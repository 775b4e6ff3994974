package api

import (
	"net/http"
	"sort"

	"github.com/negros-cram/brrs/internal/model"
)

// hazardView exposes the overlay records of one hazard grouped by barangay.
type hazardView struct {
	path   string
	hazard model.HazardType
	// highRisk selects rows for the /high-risk variant.
	highRisk func(hazardRow) bool
	// rank orders the /high-risk variant, highest first.
	rank func(hazardRow) float64
}

var hazardViews = []hazardView{
	{
		path:     "noah-flood",
		hazard:   model.HazardFlood,
		highRisk: func(h hazardRow) bool { return h.high(model.PeriodFlood100) >= 50 },
		rank:     func(h hazardRow) float64 { return h.high(model.PeriodFlood100) },
	},
	{
		path:     "storm-surge",
		hazard:   model.HazardStormSurge,
		highRisk: func(h hazardRow) bool { return h.high(model.PeriodSSA4) >= 50 },
		rank:     func(h hazardRow) float64 { return h.high(model.PeriodSSA4) },
	},
	{
		path:   "liquefaction",
		hazard: model.HazardLiquefaction,
		highRisk: func(h hazardRow) bool {
			p := h.Periods[model.PeriodNone]
			return p.VeryHigh >= 30 || p.High >= 50
		},
		rank: func(h hazardRow) float64 { return h.Periods[model.PeriodNone].VeryHigh },
	},
	{
		path:     "landslide",
		hazard:   model.HazardLandslide,
		highRisk: func(h hazardRow) bool { p := h.Periods[model.PeriodNone]; return p.High+p.VeryHigh >= 50 },
		rank:     func(h hazardRow) float64 { p := h.Periods[model.PeriodNone]; return p.High + p.VeryHigh },
	},
}

// hazardRow is one barangay's class percentages for a hazard. Hazards
// without periods report under the "all" key.
type hazardRow struct {
	BarangayID   int64                                   `json:"barangay_id"`
	BarangayName string                                  `json:"barangay_name"`
	Municipality string                                  `json:"municipality,omitempty"`
	Hazard       model.HazardType                        `json:"hazard_type"`
	Periods      map[model.Period]model.ClassPercentages `json:"-"`
	Classes      map[string]model.ClassPercentages       `json:"periods"`
}

func (h hazardRow) high(p model.Period) float64 {
	return h.Periods[p].High
}

// groupRecords folds records (ordered by barangay name) into rows,
// preserving that order.
func groupRecords(recs []model.ClassRecord) []hazardRow {
	var rows []hazardRow
	index := make(map[int64]int)
	for _, rec := range recs {
		i, ok := index[rec.BarangayID]
		if !ok {
			i = len(rows)
			index[rec.BarangayID] = i
			rows = append(rows, hazardRow{
				BarangayID:   rec.BarangayID,
				BarangayName: rec.BarangayName,
				Municipality: rec.Municipality,
				Hazard:       rec.Hazard,
				Periods:      make(map[model.Period]model.ClassPercentages),
				Classes:      make(map[string]model.ClassPercentages),
			})
		}
		key := string(rec.Period)
		if rec.Period == model.PeriodNone {
			key = "all"
		}
		rows[i].Periods[rec.Period] = rec.Percentages
		rows[i].Classes[key] = rec.Percentages
	}
	return rows
}

func (a *API) hazardView(v hazardView, highOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := a.store.ListClassRecords(r.Context(), v.hazard)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rows := groupRecords(recs)
		if highOnly {
			kept := rows[:0]
			for _, row := range rows {
				if v.highRisk(row) {
					kept = append(kept, row)
				}
			}
			rows = kept
			sort.SliceStable(rows, func(i, j int) bool { return v.rank(rows[i]) > v.rank(rows[j]) })
		}
		writeJSON(w, http.StatusOK, orEmpty(rows))
	}
}

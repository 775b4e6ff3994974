package ingest

import (
	"sort"

	"github.com/negros-cram/brrs/internal/model"
)

// Link maps each barangay id to the municipality its municipality text
// names. Barangays that match nothing are reported by name.
func Link(barangays []model.BarangayListItem, municipalities []model.MunicipalitySummary) (map[int64]int64, *Report) {
	munis := append([]model.MunicipalitySummary(nil), municipalities...)
	sort.Slice(munis, func(i, j int) bool { return munis[i].ID < munis[j].ID })

	var idx Index
	for _, m := range munis {
		idx.Add(MunicipalityKey(m.Name), m.ID)
	}

	links := make(map[int64]int64, len(barangays))
	rep := &Report{}
	for _, b := range barangays {
		id, ok := idx.Match(MunicipalityKey(b.Municipality))
		if !ok {
			rep.Skip(b.Name + " (" + b.Municipality + ")")
			continue
		}
		links[b.ID] = id
		rep.Processed++
	}
	return links, rep
}

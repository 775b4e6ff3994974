package ingest

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/fetcher"
	"github.com/negros-cram/brrs/internal/model"
)

// Hazard matrix layout: row 1 names the hazards, data starts at row 3,
// column 0 holds the municipality.
const (
	matrixHeaderRow = 1
	matrixDataRow   = 3
	presentMark     = "P"
	presentLabel    = "Present"
	presentScore    = 2
)

// MatrixCell is one hazard marked present for a municipality.
type MatrixCell struct {
	Municipality string
	Hazard       model.HazardType
}

// ReadHazardMatrix reads an LDRRMD municipal hazard matrix workbook.
func ReadHazardMatrix(path string, opts fetcher.XLSXOptions) ([]MatrixCell, *Report, error) {
	rows, err := fetcher.ReadSheet(path, opts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read hazard matrix")
	}
	cells, rep := ParseHazardMatrix(rows)
	return cells, rep, nil
}

// ParseHazardMatrix extracts present-hazard cells from sheet rows.
func ParseHazardMatrix(rows [][]string) ([]MatrixCell, *Report) {
	rep := &Report{}
	if len(rows) <= matrixHeaderRow {
		return nil, rep
	}
	header := rows[matrixHeaderRow]
	hazards := make([]model.HazardType, len(header))
	for i := 1; i < len(header); i++ {
		hazards[i] = matrixHazard(header[i])
	}

	var out []MatrixCell
	seen := make(map[MatrixCell]bool)
	for r := matrixDataRow; r < len(rows); r++ {
		row := rows[r]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		muni := strings.TrimSpace(row[0])
		marked := false
		for c := 1; c < len(row) && c < len(hazards); c++ {
			if !strings.EqualFold(strings.TrimSpace(row[c]), presentMark) {
				continue
			}
			cell := MatrixCell{Municipality: muni, Hazard: hazards[c]}
			marked = true
			if seen[cell] {
				continue
			}
			seen[cell] = true
			out = append(out, cell)
		}
		if marked {
			rep.Processed++
		} else {
			rep.Skip(muni)
		}
	}
	return out, rep
}

// matrixHazard maps a column title to a hazard type by keyword. Unknown
// titles count as flood.
func matrixHazard(title string) model.HazardType {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "flood"):
		return model.HazardFlood
	case strings.Contains(t, "landslide"), strings.Contains(t, "land slide"):
		return model.HazardLandslide
	case strings.Contains(t, "surge"):
		return model.HazardStormSurge
	case strings.Contains(t, "wind"), strings.Contains(t, "typhoon"), strings.Contains(t, "cyclone"):
		return model.HazardCyclone
	}
	return model.HazardFlood
}

// ExpandHazardMatrix turns present cells into exposures for every barangay
// whose municipality matches, grouped by hazard type.
func ExpandHazardMatrix(cells []MatrixCell, barangays []model.BarangayListItem) (map[model.HazardType][]model.HazardExposure, *Report) {
	byMuni := make(map[string][]model.BarangayListItem)
	for _, b := range barangays {
		k := MunicipalityKey(b.Municipality)
		byMuni[k] = append(byMuni[k], b)
	}

	rep := &Report{}
	out := make(map[model.HazardType][]model.HazardExposure)
	added := make(map[model.HazardType]map[int64]bool)
	for _, c := range cells {
		members := matchMunicipality(byMuni, MunicipalityKey(c.Municipality))
		if len(members) == 0 {
			rep.Skip(c.Municipality)
			continue
		}
		if added[c.Hazard] == nil {
			added[c.Hazard] = make(map[int64]bool)
		}
		for _, b := range members {
			if added[c.Hazard][b.ID] {
				continue
			}
			added[c.Hazard][b.ID] = true
			out[c.Hazard] = append(out[c.Hazard], model.HazardExposure{
				BarangayID:     b.ID,
				Hazard:         c.Hazard,
				Susceptibility: presentLabel,
				Score:          presentScore,
				Source:         model.SourceLDRRMDMunicipality,
			})
		}
		rep.Processed++
	}
	for _, es := range out {
		sort.Slice(es, func(i, j int) bool { return es[i].BarangayID < es[j].BarangayID })
	}
	return out, rep
}

// matchMunicipality prefers an exact key, then every municipality whose key
// contains the query.
func matchMunicipality(byMuni map[string][]model.BarangayListItem, key string) []model.BarangayListItem {
	if key == "" {
		return nil
	}
	if bs, ok := byMuni[key]; ok {
		return bs
	}
	var out []model.BarangayListItem
	for k, bs := range byMuni {
		if strings.Contains(k, key) {
			out = append(out, bs...)
		}
	}
	return out
}

package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/fetcher"
	"github.com/negros-cram/brrs/internal/model"
)

// Census CSV columns.
var (
	levelColumns      = []string{"Level", "Geographic Level"}
	nameColumns       = []string{"Name", "Geographic Location"}
	populationColumns = []string{"Population", "Total Population", "2020 Population"}
	householdColumns  = []string{"Households", "Number of Households"}
	elderlyColumns    = []string{"Elderly", "Senior Citizens", "60+"}
	childrenColumns   = []string{"Children", "0-14"}
	povertyColumns    = []string{"Poverty", "Poverty Incidence"}
)

// barangayMatcher finds barangay ids by name. A known municipality in
// scope limits the search to its barangays.
type barangayMatcher struct {
	all    Index
	byMuni map[string]*Index
}

func newBarangayMatcher(bs []model.BarangayListItem) *barangayMatcher {
	m := &barangayMatcher{byMuni: make(map[string]*Index)}
	for _, b := range bs {
		key := NameKey(b.Name)
		m.all.Add(key, b.ID)
		mk := MunicipalityKey(b.Municipality)
		idx, ok := m.byMuni[mk]
		if !ok {
			idx = &Index{}
			m.byMuni[mk] = idx
		}
		idx.Add(key, b.ID)
	}
	return m
}

func (m *barangayMatcher) match(name, muniKey string) (int64, bool) {
	key := NameKey(name)
	if idx, ok := m.byMuni[muniKey]; ok {
		return idx.Match(key)
	}
	return m.all.Match(key)
}

// ReadDemographics parses a PSA census CSV into partial updates for known
// barangays. Municipality or city rows scope the barangay rows that follow
// them so repeated names such as "Poblacion" resolve locally.
func ReadDemographics(ctx context.Context, r io.Reader, barangays []model.BarangayListItem) ([]model.Demographics, *Report, error) {
	recs, err := fetcher.ReadRecords(ctx, r, fetcher.CSVOptions{})
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read census csv")
	}
	if len(recs) > 0 && recs[0].Get(levelColumns...) == "" && recs[0].Get(nameColumns...) == "" {
		return nil, nil, eris.New("ingest: census csv needs Level and Name columns")
	}

	matcher := newBarangayMatcher(barangays)
	rep := &Report{}
	var out []model.Demographics
	seen := make(map[int64]int)
	scope := ""
	for _, rec := range recs {
		level := strings.ToLower(rec.Get(levelColumns...))
		name := rec.Get(nameColumns...)
		switch level {
		case "mun", "city", "municipality":
			scope = MunicipalityKey(name)
			continue
		case "bgy", "barangay":
		default:
			continue
		}
		if name == "" {
			rep.Skip("line " + itoa(rec.Line))
			continue
		}

		id, ok := matcher.match(name, scope)
		if !ok {
			rep.Skip(name)
			continue
		}
		d := model.Demographics{
			BarangayID:         id,
			Population:         positiveInt(rec.Get(populationColumns...)),
			Households:         positiveInt(rec.Get(householdColumns...)),
			ElderlyPopulation:  positiveInt(rec.Get(elderlyColumns...)),
			ChildrenPopulation: positiveInt(rec.Get(childrenColumns...)),
			PovertyIncidence:   nonNegativeFloat(rec.Get(povertyColumns...)),
		}
		if i, dup := seen[id]; dup {
			out[i] = d
		} else {
			seen[id] = len(out)
			out = append(out, d)
		}
		rep.Processed++
	}
	return out, rep, nil
}

package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/shapefile"
)

// Attribute names tried, in order, for each boundary property.
var (
	barangayNameFields     = []string{"B_NAME", "BRGY_NAME", "ADM4_EN"}
	barangayMuniFields     = []string{"LGU_NAME", "MUN_NAME", "ADM3_EN"}
	barangayCodeFields     = []string{"BRGYCODE", "PSGC", "ADM4_PCODE"}
	barangayPopFields      = []string{"POP_2020"}
	barangayAreaFields     = []string{"AREA_KM2", "AREA"}
	barangayCoastalFields  = []string{"COASTAL", "IS_COASTAL"}
	municipalityNameFields = []string{"NAME_3", "NAME", "MUN__NAME", "CITY_NAME", "MUNICIPAL", "MUNICIP", "LGU_NAME"}
	municipalityCodeFields = []string{"PSGC_CODE", "CODE", "MUNICODE", "MUN_CODE", "PSGC"}
	municipalityPopFields  = []string{"POP_2020", "POPULATION"}
)

const (
	defaultProvince = "Negros Oriental"
	defaultRegion   = "Region VII"
	// kmPerDegree is the length of one degree of latitude.
	kmPerDegree = 111.32
)

// BoundaryOptions controls how boundary shapefiles become records.
type BoundaryOptions struct {
	Province string
	Region   string
	// Coastal lists barangay names (matched by NameKey) to flag as coastal
	// when the shapefile has no coastal attribute.
	Coastal []string
	// Projected means coordinates are metres rather than degrees.
	Projected bool
}

func (o BoundaryOptions) province() string {
	if o.Province != "" {
		return o.Province
	}
	return defaultProvince
}

func (o BoundaryOptions) region() string {
	if o.Region != "" {
		return o.Region
	}
	return defaultRegion
}

// ReadBarangays converts a barangay boundary shapefile. Features sharing a
// name and municipality are merged into one multipolygon.
func ReadBarangays(f *shapefile.File, opts BoundaryOptions) ([]model.Barangay, *Report) {
	coastal := make(map[string]bool, len(opts.Coastal))
	for _, n := range opts.Coastal {
		coastal[NameKey(n)] = true
	}

	rep := &Report{Skipped: f.Skipped}
	var out []model.Barangay
	seen := make(map[string]int)
	for _, feat := range f.Features {
		name := strings.TrimSpace(feat.Get(barangayNameFields...))
		muni := strings.TrimSpace(feat.Get(barangayMuniFields...))
		if name == "" || muni == "" || feat.Geometry == nil {
			rep.Skip("feature " + strconv.Itoa(feat.Index))
			continue
		}

		key := NameKey(name) + "|" + MunicipalityKey(muni)
		if i, ok := seen[key]; ok {
			merged, err := mergeMultiPolygons(out[i].Geometry, feat.Geometry)
			if err != nil {
				rep.Fail(name, err)
				continue
			}
			out[i].Geometry = merged
			out[i].TotalArea = areaKm2(merged, opts.Projected)
			rep.Processed++
			continue
		}

		b := model.Barangay{
			PSGCCode:     feat.Get(barangayCodeFields...),
			Name:         name,
			Municipality: muni,
			Province:     opts.province(),
			Region:       opts.region(),
			Population:   positiveInt(feat.Get(barangayPopFields...)),
			Geometry:     feat.Geometry,
		}
		if v := positiveFloat(feat.Get(barangayAreaFields...)); v != nil {
			b.TotalArea = v
		} else {
			b.TotalArea = areaKm2(feat.Geometry, opts.Projected)
		}
		if raw := feat.Get(barangayCoastalFields...); raw != "" {
			b.IsCoastal = truthy(raw)
		} else {
			b.IsCoastal = coastal[NameKey(name)]
		}

		seen[key] = len(out)
		out = append(out, b)
		rep.Processed++
	}
	return out, rep
}

// ReadMunicipalities converts a municipality boundary shapefile.
func ReadMunicipalities(f *shapefile.File, opts BoundaryOptions) ([]model.Municipality, *Report) {
	rep := &Report{Skipped: f.Skipped}
	var out []model.Municipality
	seen := make(map[string]int)
	for _, feat := range f.Features {
		name := strings.TrimSpace(feat.Get(municipalityNameFields...))
		if name == "" || feat.Geometry == nil {
			rep.Skip("feature " + strconv.Itoa(feat.Index))
			continue
		}

		key := MunicipalityKey(name)
		if i, ok := seen[key]; ok {
			merged, err := mergeMultiPolygons(out[i].Geometry, feat.Geometry)
			if err != nil {
				rep.Fail(name, err)
				continue
			}
			out[i].Geometry = merged
			out[i].LandArea = areaKm2(merged, opts.Projected)
			rep.Processed++
			continue
		}

		m := model.Municipality{
			PSGCCode:       feat.Get(municipalityCodeFields...),
			Name:           name,
			Province:       opts.province(),
			Region:         opts.region(),
			Classification: classify(name),
			Population:     positiveInt(feat.Get(municipalityPopFields...)),
			LandArea:       areaKm2(feat.Geometry, opts.Projected),
			Geometry:       feat.Geometry,
		}
		seen[key] = len(out)
		out = append(out, m)
		rep.Processed++
	}
	return out, rep
}

func classify(name string) string {
	if strings.Contains(strings.ToLower(name), "city") {
		return "City"
	}
	return "Municipality"
}

// areaKm2 returns the polygon area in km². Geographic coordinates are
// scaled with an equirectangular approximation at the centroid latitude.
func areaKm2(mp *geom.MultiPolygon, projected bool) *float64 {
	if mp == nil || mp.Empty() {
		return nil
	}
	a := planarArea(mp)
	if a <= 0 {
		return nil
	}
	if projected {
		a /= 1e6
	} else {
		a *= kmPerDegree * kmPerDegree * math.Cos(centroidLat(mp)*math.Pi/180)
	}
	a = math.Round(a*1e4) / 1e4
	return &a
}

// planarArea sums outer rings minus holes regardless of ring orientation.
func planarArea(mp *geom.MultiPolygon) float64 {
	var total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			a := math.Abs(p.LinearRing(j).Area())
			if j == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return total
}

func centroidLat(mp *geom.MultiPolygon) float64 {
	b := mp.Bounds()
	mid := (b.Min(1) + b.Max(1)) / 2
	c := xy.MultiPolygonCentroid(mp)
	if len(c) < 2 || math.IsNaN(c[1]) || c[1] < b.Min(1) || c[1] > b.Max(1) {
		return mid
	}
	return c[1]
}

func mergeMultiPolygons(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if a.Layout() != b.Layout() {
		return nil, eris.Errorf("ingest: mixed layouts %v and %v", a.Layout(), b.Layout())
	}
	out := geom.NewMultiPolygon(a.Layout()).SetSRID(a.SRID())
	for _, mp := range []*geom.MultiPolygon{a, b} {
		for i := 0; i < mp.NumPolygons(); i++ {
			if err := out.Push(mp.Polygon(i)); err != nil {
				return nil, eris.Wrap(err, "ingest: merge parts")
			}
		}
	}
	return out, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "t", "true", "coastal":
		return true
	}
	return false
}

// positiveInt parses a count; blanks, garbage and values <= 0 are missing.
func positiveInt(s string) *int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return nil
	}
	v := int(math.Round(f))
	return &v
}

func positiveFloat(s string) *float64 {
	f := nonNegativeFloat(s)
	if f == nil || *f <= 0 {
		return nil
	}
	return f
}

func nonNegativeFloat(s string) *float64 {
	s = strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), "%")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

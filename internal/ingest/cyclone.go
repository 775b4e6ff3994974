package ingest

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/negros-cram/brrs/internal/model"
)

// ProvinceBox is the Negros Oriental extent in WGS84 degrees.
var ProvinceBox = Box{MinX: 122.5, MinY: 9.0, MaxX: 123.5, MaxY: 10.5}

// affectBuffer widens ProvinceBox when testing whether a track affects it.
const affectBuffer = 0.5

// Box is an axis-aligned lon/lat extent.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Touches reports whether b intersects o grown by buf on every side.
// Shared edges count.
func (b Box) Touches(o Box, buf float64) bool {
	return b.MinX <= o.MaxX+buf && b.MaxX >= o.MinX-buf &&
		b.MinY <= o.MaxY+buf && b.MaxY >= o.MinY-buf
}

const unknownCyclone = "Unknown"

// CycloneOptions configures track parsing.
type CycloneOptions struct {
	// Year applies to features without a year property.
	Year int
	// Box overrides ProvinceBox.
	Box *Box
}

// ReadCycloneTracks parses a GeoJSON FeatureCollection of cyclone tracks.
// MultiLineString parts are joined into one path.
func ReadCycloneTracks(r io.Reader, opts CycloneOptions) ([]model.CycloneTrack, *Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read cyclone geojson")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, eris.Wrap(err, "ingest: decode cyclone geojson")
	}

	box := ProvinceBox
	if opts.Box != nil {
		box = *opts.Box
	}

	rep := &Report{}
	var out []model.CycloneTrack
	for i, f := range fc.Features {
		name := propString(f.Properties, "name", "NAME")
		if name == "" {
			name = unknownCyclone
		}
		label := name
		if label == unknownCyclone {
			label = "feature " + strconv.Itoa(i)
		}

		ls, err := trackLine(f.Geometry)
		if err != nil {
			rep.Fail(label, err)
			continue
		}
		year := propInt(f.Properties, "year", "SEASON", "season")
		if year == 0 {
			year = opts.Year
		}
		out = append(out, model.CycloneTrack{
			Name:       name,
			Category:   propString(f.Properties, "category", "cat", "CAT"),
			BeginIndex: propInt(f.Properties, "begin"),
			EndIndex:   propInt(f.Properties, "end"),
			Year:       year,
			Affected:   lineBox(ls).Touches(box, affectBuffer),
			Track:      ls,
		})
		rep.Processed++
	}
	return out, rep, nil
}

func trackLine(g geom.T) (*geom.LineString, error) {
	var ls *geom.LineString
	switch t := g.(type) {
	case *geom.LineString:
		ls = geom.NewLineStringFlat(geom.XY, xyCoords(t.Layout(), t.FlatCoords()))
	case *geom.MultiLineString:
		var flat []float64
		for i := 0; i < t.NumLineStrings(); i++ {
			part := xyCoords(t.Layout(), t.LineString(i).FlatCoords())
			if n := len(flat); n >= 2 && len(part) >= 2 && flat[n-2] == part[0] && flat[n-1] == part[1] {
				part = part[2:]
			}
			flat = append(flat, part...)
		}
		ls = geom.NewLineStringFlat(geom.XY, flat)
	case nil:
		return nil, eris.New("missing geometry")
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
	if ls.NumCoords() < 2 {
		return nil, eris.New("track needs at least two points")
	}
	return ls.SetSRID(4326), nil
}

// xyCoords drops Z and M ordinates.
func xyCoords(layout geom.Layout, flat []float64) []float64 {
	stride := layout.Stride()
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func lineBox(ls *geom.LineString) Box {
	b := Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	flat := ls.FlatCoords()
	for i := 0; i+1 < len(flat); i += 2 {
		b.MinX = math.Min(b.MinX, flat[i])
		b.MaxX = math.Max(b.MaxX, flat[i])
		b.MinY = math.Min(b.MinY, flat[i+1])
		b.MaxY = math.Max(b.MaxY, flat[i+1])
	}
	return b
}

func propString(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func propInt(props map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		switch v := props[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
)

// Geometry columns hold EWKB in both backends: PostGIS reads it natively
// and SQLite stores it as a blob. Geometry without an SRID is written as
// WGS84.

const wgs84 = 4326

func encodeMultiPolygon(mp *geom.MultiPolygon) ([]byte, error) {
	if mp == nil || mp.Empty() {
		return nil, nil
	}
	if mp.SRID() == 0 {
		mp = geom.NewMultiPolygonFlat(mp.Layout(), mp.FlatCoords(), mp.Endss()).SetSRID(wgs84)
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode multipolygon")
	}
	return data, nil
}

func encodeLineString(ls *geom.LineString) ([]byte, error) {
	if ls == nil || ls.Empty() {
		return nil, nil
	}
	if ls.SRID() == 0 {
		ls = geom.NewLineStringFlat(ls.Layout(), ls.FlatCoords()).SetSRID(wgs84)
	}
	data, err := ewkb.Marshal(ls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode linestring")
	}
	return data, nil
}

// decodeMultiPolygon accepts a MultiPolygon or a single Polygon.
func decodeMultiPolygon(data []byte) (*geom.MultiPolygon, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode geometry")
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout()).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "store: promote polygon")
		}
		return mp, nil
	default:
		return nil, eris.Errorf("store: expected polygonal geometry, got %T", g)
	}
}

func decodeLineString(data []byte) (*geom.LineString, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode track")
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("store: expected linestring, got %T", g)
	}
	return ls, nil
}

// centroid returns [x, y] of the area centroid, nil for empty input.
func centroid(mp *geom.MultiPolygon) []float64 {
	if mp == nil || mp.Empty() {
		return nil
	}
	c := xy.MultiPolygonCentroid(mp)
	if len(c) < 2 {
		return nil
	}
	return []float64{c[0], c[1]}
}

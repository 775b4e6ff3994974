// Package shapefile reads polygon shapefiles into go-geom geometries with
// their DBF attributes.
package shapefile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Feature is one shapefile record. Attribute keys are upper-cased field names
// and values are trimmed.
type Feature struct {
	Index    int
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
}

// Get returns the first non-empty attribute among the candidate field names.
func (f Feature) Get(fields ...string) string {
	for _, name := range fields {
		if v := f.Attrs[strings.ToUpper(name)]; v != "" {
			return v
		}
	}
	return ""
}

// File is the decoded content of a polygon shapefile.
type File struct {
	Path     string
	Fields   []string // upper-cased, in DBF order
	Features []Feature
	// Skipped counts records whose shape was null, not a polygon, or had no
	// usable rings.
	Skipped int
}

// HasField reports whether the DBF declares the field.
func (f *File) HasField(name string) bool {
	name = strings.ToUpper(name)
	for _, fld := range f.Fields {
		if fld == name {
			return true
		}
	}
	return false
}

// Read decodes a .shp (with its .dbf) or a .zip containing exactly one .shp.
// Every geometry is tagged with srid.
func Read(path string, srid int) (*File, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "brrs-shp-*")
		if err != nil {
			return nil, eris.Wrap(err, "shapefile: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		shpPath, err := extractShapefile(path, dir)
		if err != nil {
			return nil, err
		}
		f, err := readShp(shpPath, srid)
		if err != nil {
			return nil, err
		}
		f.Path = path
		return f, nil
	}
	return readShp(path, srid)
}

func readShp(path string, srid int) (*File, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return nil, eris.Errorf("shapefile: %s is not a .shp or .zip file", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "shapefile: stat %s", path)
	}
	base := path[:len(path)-3]
	if _, err := os.Stat(base + "dbf"); err != nil {
		return nil, eris.Wrapf(err, "shapefile: missing attribute table for %s", path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToUpper(strings.TrimSpace(strings.TrimRight(f.String(), "\x00")))
	}

	out := &File{Path: path, Fields: names}
	for reader.Next() {
		idx, shape := reader.Shape()

		mp := toMultiPolygon(shape, srid)
		if mp == nil {
			out.Skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[name] = val
			}
		}

		out.Features = append(out.Features, Feature{Index: idx, Attrs: attrs, Geometry: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if out.Skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", path),
			zap.Int("skipped", out.Skipped),
		)
	}
	return out, nil
}

// toMultiPolygon converts any polygon shape variant. Returns nil for null or
// non-polygon shapes.
func toMultiPolygon(shape shp.Shape, srid int) *geom.MultiPolygon {
	switch s := shape.(type) {
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		return PolygonToMultiPolygon(s.Parts, s.Points, srid)
	case *shp.PolygonZ:
		if s == nil {
			return nil
		}
		return PolygonToMultiPolygon(s.Parts, s.Points, srid)
	case *shp.PolygonM:
		if s == nil {
			return nil
		}
		return PolygonToMultiPolygon(s.Parts, s.Points, srid)
	default:
		return nil
	}
}

// Package hazard loads susceptibility-classified polygon layers.
package hazard

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/shapefile"
)

// ErrNoClassField is returned when a layer carries no field that can be read
// as a susceptibility class.
var ErrNoClassField = eris.New("hazard: no classification field")

// DefaultSRID is the frame assumed when a layer does not declare one.
const DefaultSRID = 4326

// classFieldNames are recognized classification columns, matched against the
// upper-cased DBF field name.
var classFieldNames = map[string]bool{
	"VAR":        true,
	"HAZ":        true,
	"HAZARD":     true,
	"SUSC":       true,
	"SUSCEPTIBI": true,
	"CLASS":      true,
	"LEVEL":      true,
	"GRIDCODE":   true,
	"DN":         true,
	"FLOODSUSC":  true,
	"LH":         true,
}

// Zone is one polygon with its normalized class.
type Zone struct {
	Index    int
	Class    model.Class
	Geometry *geom.MultiPolygon
}

// Stats describes what happened while loading a layer.
type Stats struct {
	Records int            `json:"records"`
	Kept    int            `json:"kept"`
	Skipped int            `json:"skipped_shapes"`
	Dropped map[string]int `json:"dropped_values,omitempty"`
}

// DroppedTotal is the number of zones dropped for an unrecognized class.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// DroppedValues lists the raw values that were dropped, most frequent first.
func (s Stats) DroppedValues() []string {
	out := make([]string, 0, len(s.Dropped))
	for v := range s.Dropped {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.Dropped[out[i]] != s.Dropped[out[j]] {
			return s.Dropped[out[i]] > s.Dropped[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Layer is a loaded set of zones for one hazard type and period.
type Layer struct {
	Hazard model.HazardType
	Period model.Period
	SRID   int
	Field  string
	Zones  []Zone
	Stats  Stats
}

// Options control how a layer file is interpreted.
type Options struct {
	Hazard model.HazardType
	Period model.Period
	// Field overrides classification field detection.
	Field string
	SRID  int
}

// Load reads a shapefile (or zipped shapefile) into a Layer.
func Load(path string, opts Options) (*Layer, error) {
	if opts.SRID == 0 {
		opts.SRID = DefaultSRID
	}
	f, err := shapefile.Read(path, opts.SRID)
	if err != nil {
		return nil, err
	}
	layer, err := FromFile(f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "hazard: load %s", path)
	}
	return layer, nil
}

// FromFile classifies the features of an already decoded shapefile.
func FromFile(f *shapefile.File, opts Options) (*Layer, error) {
	if opts.SRID == 0 {
		opts.SRID = DefaultSRID
	}
	field, err := ClassField(f.Fields, opts.Field)
	if err != nil {
		return nil, err
	}

	parse := ParseClass
	if opts.Hazard == model.HazardLiquefaction {
		parse = ParseLabel
	}

	layer := &Layer{
		Hazard: opts.Hazard,
		Period: opts.Period,
		SRID:   opts.SRID,
		Field:  field,
		Stats: Stats{
			Records: len(f.Features) + f.Skipped,
			Skipped: f.Skipped,
			Dropped: map[string]int{},
		},
	}

	for _, feat := range f.Features {
		raw := feat.Attrs[field]
		class, ok := parse(raw)
		if !ok {
			layer.Stats.Dropped[raw]++
			continue
		}
		layer.Zones = append(layer.Zones, Zone{
			Index:    feat.Index,
			Class:    class,
			Geometry: feat.Geometry,
		})
	}
	layer.Stats.Kept = len(layer.Zones)

	log := zap.L().With(zap.String("component", "hazard"))
	if n := layer.Stats.DroppedTotal(); n > 0 {
		log.Warn("dropped zones with unrecognized class",
			zap.String("hazard", string(opts.Hazard)),
			zap.String("field", field),
			zap.Int("dropped", n),
			zap.Strings("values", layer.Stats.DroppedValues()),
		)
	}
	log.Info("hazard layer loaded",
		zap.String("hazard", string(opts.Hazard)),
		zap.String("period", string(opts.Period)),
		zap.String("field", field),
		zap.Int("records", layer.Stats.Records),
		zap.Int("zones", layer.Stats.Kept),
	)
	return layer, nil
}

// ClassField picks the classification column. An explicit name must exist in
// the layer; otherwise the first recognized field in DBF order is used.
func ClassField(fields []string, explicit string) (string, error) {
	if explicit != "" {
		want := strings.ToUpper(strings.TrimSpace(explicit))
		for _, f := range fields {
			if strings.ToUpper(f) == want {
				return want, nil
			}
		}
		return "", eris.Wrapf(ErrNoClassField, "field %q not present (have %s)", explicit, strings.Join(fields, ", "))
	}

	for _, f := range fields {
		up := strings.ToUpper(f)
		if classFieldNames[up] ||
			strings.Contains(up, "SUSC") ||
			strings.Contains(up, "HAZ") ||
			strings.Contains(up, "LIQ") {
			return up, nil
		}
	}
	return "", eris.Wrapf(ErrNoClassField, "fields: %s", strings.Join(fields, ", "))
}

// Package overlay computes the share of each administrative unit covered by
// each susceptibility class of a hazard layer.
package overlay

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/hazard"
	"github.com/negros-cram/brrs/internal/model"
)

// ErrFrameMismatch is returned when a layer or unit is not in the engine's
// reference frame.
var ErrFrameMismatch = eris.New("overlay: reference frame mismatch")

// Unit is an administrative polygon to overlay.
type Unit struct {
	ID       int64
	Name     string
	Geometry *geom.MultiPolygon
}

// Target is a validated unit ready for overlay.
type Target struct {
	ID    int64
	Name  string
	Area  float64
	shape *shape
}

// Result holds one unit's class percentages for one layer.
type Result struct {
	UnitID      int64
	Percentages model.ClassPercentages
	// Normalized is set when overlapping classes summed past 100 and were
	// scaled back.
	Normalized bool
}

type zone struct {
	class model.Class
	shape *shape
}

// Prepared is a validated hazard layer. It is read-only and safe for
// concurrent use.
type Prepared struct {
	Hazard  model.HazardType
	Period  model.Period
	Invalid int

	zones  []zone
	bounds rect
}

// Len returns the number of usable zones.
func (p *Prepared) Len() int { return len(p.zones) }

// Engine overlays layers and units that share one reference frame.
type Engine struct {
	srid int
	log  *zap.Logger
}

// New creates an Engine for the given SRID.
func New(srid int) *Engine {
	return &Engine{
		srid: srid,
		log:  zap.L().With(zap.String("component", "overlay")),
	}
}

// SRID returns the engine's reference frame.
func (e *Engine) SRID() int { return e.srid }

// Prepare checks the layer frame and validates each zone once. Invalid zones
// are skipped and counted in Prepared.Invalid.
func (e *Engine) Prepare(layer *hazard.Layer) (*Prepared, error) {
	if layer.SRID != e.srid {
		return nil, eris.Wrapf(ErrFrameMismatch, "layer %s/%s has SRID %d, engine uses %d",
			layer.Hazard, layer.Period, layer.SRID, e.srid)
	}

	p := &Prepared{
		Hazard: layer.Hazard,
		Period: layer.Period,
		zones:  make([]zone, 0, len(layer.Zones)),
	}
	first := true
	for _, z := range layer.Zones {
		if z.Geometry != nil && z.Geometry.SRID() != e.srid {
			return nil, eris.Wrapf(ErrFrameMismatch, "zone %d has SRID %d, engine uses %d",
				z.Index, z.Geometry.SRID(), e.srid)
		}
		s, err := newShape(z.Geometry)
		if err != nil {
			p.Invalid++
			e.log.Debug("skipping invalid zone",
				zap.Int("zone", z.Index),
				zap.String("class", z.Class.String()),
				zap.Error(err),
			)
			continue
		}
		p.zones = append(p.zones, zone{class: z.Class, shape: s})
		if first {
			p.bounds = s.bounds
			first = false
		} else {
			p.bounds = union(p.bounds, s.bounds)
		}
	}

	if p.Invalid > 0 {
		e.log.Warn("skipped invalid zones",
			zap.String("hazard", string(layer.Hazard)),
			zap.String("period", string(layer.Period)),
			zap.Int("invalid", p.Invalid),
			zap.Int("valid", len(p.zones)),
		)
	}
	return p, nil
}

// Target checks a unit's frame and geometry. A frame mismatch returns
// ErrFrameMismatch; any other error means the unit should be skipped.
func (e *Engine) Target(u Unit) (*Target, error) {
	if u.Geometry == nil {
		return nil, eris.Wrapf(errEmpty, "unit %d", u.ID)
	}
	if u.Geometry.SRID() != e.srid {
		return nil, eris.Wrapf(ErrFrameMismatch, "unit %d (%s) has SRID %d, engine uses %d",
			u.ID, u.Name, u.Geometry.SRID(), e.srid)
	}
	s, err := newShape(u.Geometry)
	if err != nil {
		return nil, eris.Wrapf(err, "unit %d (%s)", u.ID, u.Name)
	}
	return &Target{ID: u.ID, Name: u.Name, Area: s.area, shape: s}, nil
}

// CheckFrame verifies every unit is in the engine frame before any geometry
// work is done.
func (e *Engine) CheckFrame(units []Unit) error {
	for _, u := range units {
		if u.Geometry != nil && u.Geometry.SRID() != e.srid {
			return eris.Wrapf(ErrFrameMismatch, "unit %d (%s) has SRID %d, engine uses %d",
				u.ID, u.Name, u.Geometry.SRID(), e.srid)
		}
	}
	return nil
}

// Touches reports whether any zone's bounds touch any target's bounds. A
// layer that touches nothing usually means its coordinates are in another
// frame than declared.
func (p *Prepared) Touches(targets []*Target) bool {
	if len(p.zones) == 0 {
		return false
	}
	for _, t := range targets {
		if !t.shape.bounds.overlaps(p.bounds) {
			continue
		}
		for _, z := range p.zones {
			if z.shape.bounds.overlaps(t.shape.bounds) {
				return true
			}
		}
	}
	return false
}

// Percentages returns the class shares of t covered by the layer. The second
// return is false when no zone covers any of t's area.
func (p *Prepared) Percentages(t *Target) (Result, bool) {
	var areas [model.ClassVeryHigh + 1]float64
	for _, z := range p.zones {
		if !z.shape.box.Overlaps(geom.XY, t.shape.box) {
			continue
		}
		if !intersects(t.shape, z.shape) {
			continue
		}
		areas[z.class] += intersectionArea(t.shape, z.shape)
	}

	res := Result{UnitID: t.ID}
	var total float64
	for _, c := range model.Classes {
		pct := clamp(areas[c] / t.Area * 100)
		res.Percentages.Set(c, pct)
		total += pct
	}
	if total <= 0 {
		return Result{}, false
	}
	if total > 100 {
		scale := 100 / total
		for _, c := range model.Classes {
			res.Percentages.Set(c, res.Percentages.Get(c)*scale)
		}
		res.Normalized = true
	}
	return res, true
}

// MaxClass returns the highest class among zones intersecting t.
func (p *Prepared) MaxClass(t *Target) (model.Class, bool) {
	best := model.ClassUnknown
	for _, z := range p.zones {
		if z.class <= best {
			continue
		}
		if !z.shape.box.Overlaps(geom.XY, t.shape.box) || !intersects(t.shape, z.shape) {
			continue
		}
		best = z.class
	}
	return best, best != model.ClassUnknown
}

// Skip names a unit excluded from an overlay and why.
type Skip struct {
	UnitID int64
	Name   string
	Reason string
}

// Report is the outcome of overlaying one layer on a set of units.
type Report struct {
	Results      []Result
	Skipped      []Skip
	InvalidZones int
	// NoCoverage counts units no zone covered.
	NoCoverage int
}

// Overlay runs the layer over every unit sequentially.
func (e *Engine) Overlay(units []Unit, layer *hazard.Layer) (*Report, error) {
	if err := e.CheckFrame(units); err != nil {
		return nil, err
	}
	p, err := e.Prepare(layer)
	if err != nil {
		return nil, err
	}

	rep := &Report{InvalidZones: p.Invalid}
	targets := make([]*Target, 0, len(units))
	for _, u := range units {
		t, err := e.Target(u)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skip{UnitID: u.ID, Name: u.Name, Reason: err.Error()})
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) > 0 && p.Len() > 0 && !p.Touches(targets) {
		e.log.Warn("no zone touches any unit; check the layer's reference frame",
			zap.String("hazard", string(layer.Hazard)),
			zap.Int("srid", e.srid),
		)
	}

	for _, t := range targets {
		res, ok := p.Percentages(t)
		if !ok {
			rep.NoCoverage++
			continue
		}
		rep.Results = append(rep.Results, res)
	}
	return rep, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func union(a, b rect) rect {
	if b.minX < a.minX {
		a.minX = b.minX
	}
	if b.minY < a.minY {
		a.minY = b.minY
	}
	if b.maxX > a.maxX {
		a.maxX = b.maxX
	}
	if b.maxY > a.maxY {
		a.maxY = b.maxY
	}
	return a
}

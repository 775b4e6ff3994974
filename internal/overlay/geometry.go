package overlay

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// Geometry errors reported for invalid zones and units.
var (
	errEmpty         = eris.New("overlay: empty geometry")
	errOpenRing      = eris.New("overlay: ring not closed")
	errShortRing     = eris.New("overlay: ring has fewer than 4 coordinates")
	errNonFinite     = eris.New("overlay: non-finite coordinate")
	errZeroArea      = eris.New("overlay: zero-area ring")
	errSelfIntersect = eris.New("overlay: self-intersecting ring")
)

const (
	// maxPairWork bounds the triangle pairs evaluated per window before the
	// window is split into quadrants.
	maxPairWork = 1024
	maxDepth    = 16
)

type point struct{ x, y float64 }

// ring is an open vertex list; the closing vertex is implicit.
type ring []point

type rect struct{ minX, minY, maxX, maxY float64 }

func (r rect) overlaps(o rect) bool {
	return r.minX <= o.maxX && o.minX <= r.maxX && r.minY <= o.maxY && o.minY <= r.maxY
}

func (r rect) intersect(o rect) rect {
	return rect{
		minX: math.Max(r.minX, o.minX),
		minY: math.Max(r.minY, o.minY),
		maxX: math.Min(r.maxX, o.maxX),
		maxY: math.Min(r.maxY, o.maxY),
	}
}

func (r rect) empty() bool { return r.maxX <= r.minX || r.maxY <= r.minY }

func (r rect) center() point { return point{(r.minX + r.maxX) / 2, (r.minY + r.maxY) / 2} }

// shape is a validated multipolygon with outer rings counter-clockwise and
// holes clockwise, so the winding number is 1 inside and 0 outside.
type shape struct {
	rings  []ring
	holes  []bool
	flats  [][]float64 // closed XY rings for go-geom predicates
	bounds rect
	box    *geom.Bounds
	area   float64
}

// newShape validates mp and converts it to the internal representation.
func newShape(mp *geom.MultiPolygon) (*shape, error) {
	if mp == nil || mp.Empty() || mp.NumPolygons() == 0 {
		return nil, errEmpty
	}

	s := &shape{bounds: rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}}
	stride := mp.Stride()

	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			r, err := ringPoints(poly.LinearRing(j).FlatCoords(), stride)
			if err != nil {
				return nil, err
			}

			a := ringArea(r)
			if a == 0 {
				return nil, errZeroArea
			}
			hole := j > 0
			if (!hole && a < 0) || (hole && a > 0) {
				reverse(r)
				a = -a
			}
			if selfIntersects(r) {
				return nil, errSelfIntersect
			}

			s.rings = append(s.rings, r)
			s.holes = append(s.holes, hole)
			s.flats = append(s.flats, closedFlat(r))
			s.area += a
			for _, p := range r {
				s.bounds.minX = math.Min(s.bounds.minX, p.x)
				s.bounds.minY = math.Min(s.bounds.minY, p.y)
				s.bounds.maxX = math.Max(s.bounds.maxX, p.x)
				s.bounds.maxY = math.Max(s.bounds.maxY, p.y)
			}
		}
	}
	if s.area <= 0 {
		return nil, errZeroArea
	}
	s.box = geom.NewBounds(geom.XY).Set(s.bounds.minX, s.bounds.minY, s.bounds.maxX, s.bounds.maxY)
	return s, nil
}

// ringPoints reads a closed flat ring, dropping repeated consecutive vertices
// and the closing vertex.
func ringPoints(flat []float64, stride int) (ring, error) {
	n := len(flat) / stride
	if n < 4 {
		return nil, errShortRing
	}
	for _, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errNonFinite
		}
	}
	first := point{flat[0], flat[1]}
	last := point{flat[(n-1)*stride], flat[(n-1)*stride+1]}
	if first != last {
		return nil, errOpenRing
	}

	r := make(ring, 0, n-1)
	for i := 0; i < n-1; i++ {
		p := point{flat[i*stride], flat[i*stride+1]}
		if len(r) > 0 && r[len(r)-1] == p {
			continue
		}
		r = append(r, p)
	}
	for len(r) > 1 && r[len(r)-1] == r[0] {
		r = r[:len(r)-1]
	}
	if len(r) < 3 {
		return nil, errZeroArea
	}
	return r, nil
}

func closedFlat(r ring) []float64 {
	flat := make([]float64, 0, 2*len(r)+2)
	for _, p := range r {
		flat = append(flat, p.x, p.y)
	}
	return append(flat, r[0].x, r[0].y)
}

// ringArea is the shoelace area, positive for counter-clockwise rings.
func ringArea(r ring) float64 {
	if len(r) < 3 {
		return 0
	}
	o := r[0]
	var sum float64
	for i := 1; i+1 < len(r); i++ {
		sum += cross(sub(r[i], o), sub(r[i+1], o))
	}
	return sum / 2
}

func reverse(r ring) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

func sub(a, b point) point { return point{a.x - b.x, a.y - b.y} }

func cross(a, b point) float64 { return a.x*b.y - a.y*b.x }

func coord(p point) geom.Coord { return geom.Coord{p.x, p.y} }

// segment is one ring edge with its bounding box.
type segment struct {
	a, b                   point
	minX, minY, maxX, maxY float64
	owner, ring, idx       int
}

func newSegment(a, b point, owner, ringIdx, idx int) segment {
	return segment{
		a: a, b: b,
		minX: math.Min(a.x, b.x), maxX: math.Max(a.x, b.x),
		minY: math.Min(a.y, b.y), maxY: math.Max(a.y, b.y),
		owner: owner, ring: ringIdx, idx: idx,
	}
}

// sweep visits every pair of segments whose boxes overlap, in order of
// increasing minX. It stops and returns true as soon as fn does.
func sweep(segs []segment, fn func(s, t *segment) bool) bool {
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX < segs[j].minX })

	active := make([]*segment, 0, 64)
	for i := range segs {
		s := &segs[i]
		kept := active[:0]
		for _, t := range active {
			if t.maxX >= s.minX {
				kept = append(kept, t)
			}
		}
		active = kept
		for _, t := range active {
			if t.maxY < s.minY || t.minY > s.maxY {
				continue
			}
			if fn(s, t) {
				return true
			}
		}
		active = append(active, s)
	}
	return false
}

func segmentsIntersect(s, t *segment) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		coord(s.a), coord(s.b), coord(t.a), coord(t.b))
	return res.HasIntersection()
}

// selfIntersects reports whether any two non-adjacent edges of r touch, or
// two adjacent edges fold back on each other.
func selfIntersects(r ring) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		a, b, c := r[i], r[(i+1)%n], r[(i+2)%n]
		ab, bc := sub(b, a), sub(c, b)
		if cross(ab, bc) == 0 && ab.x*bc.x+ab.y*bc.y < 0 {
			return true
		}
	}
	if n < 4 {
		return false
	}

	segs := make([]segment, n)
	for i := 0; i < n; i++ {
		segs[i] = newSegment(r[i], r[(i+1)%n], 0, 0, i)
	}
	return sweep(segs, func(s, t *segment) bool {
		d := s.idx - t.idx
		if d < 0 {
			d = -d
		}
		if d == 1 || d == n-1 {
			return false
		}
		return segmentsIntersect(s, t)
	})
}

// contains reports whether p lies inside s (inside an outer ring and outside
// its holes). Points on a boundary count as inside.
func (s *shape) contains(p point) bool {
	c := geom.Coord{p.x, p.y}
	winding := 0
	for i, flat := range s.flats {
		if !xy.IsPointInRing(geom.XY, c, flat) {
			continue
		}
		if s.holes[i] {
			winding--
		} else {
			winding++
		}
	}
	return winding > 0
}

// intersects reports whether the closed shapes a and b share any point.
func intersects(a, b *shape) bool {
	if !a.bounds.overlaps(b.bounds) {
		return false
	}
	win := a.bounds.intersect(b.bounds)

	var segs []segment
	for owner, s := range []*shape{a, b} {
		for ri, r := range s.rings {
			for i := range r {
				seg := newSegment(r[i], r[(i+1)%len(r)], owner, ri, i)
				if seg.maxX < win.minX || seg.minX > win.maxX || seg.maxY < win.minY || seg.minY > win.maxY {
					continue
				}
				segs = append(segs, seg)
			}
		}
	}
	crossed := sweep(segs, func(s, t *segment) bool {
		return s.owner != t.owner && segmentsIntersect(s, t)
	})
	if crossed {
		return true
	}

	// No boundary contact: either one contains a part of the other or they
	// are disjoint.
	for i, r := range a.rings {
		if !a.holes[i] && b.contains(r[0]) {
			return true
		}
	}
	for i, r := range b.rings {
		if !b.holes[i] && a.contains(r[0]) {
			return true
		}
	}
	return false
}

// intersectionArea measures area(a ∩ b) inside the overlap of their bounds.
func intersectionArea(a, b *shape) float64 {
	if !a.bounds.overlaps(b.bounds) {
		return 0
	}
	win := a.bounds.intersect(b.bounds)
	if win.empty() {
		return 0
	}
	area := windowArea(a.rings, b.rings, win, 0)
	if area < 0 {
		return 0
	}
	return area
}

// windowArea clips both ring sets to win and either fans them into triangles
// or, when that would be too many pairs, recurses into quadrants.
func windowArea(a, b []ring, win rect, depth int) float64 {
	a = clipRings(a, win)
	if len(a) == 0 {
		return 0
	}
	b = clipRings(b, win)
	if len(b) == 0 {
		return 0
	}

	if vertexCount(a)*vertexCount(b) > maxPairWork && depth < maxDepth {
		c := win.center()
		return windowArea(a, b, rect{win.minX, win.minY, c.x, c.y}, depth+1) +
			windowArea(a, b, rect{c.x, win.minY, win.maxX, c.y}, depth+1) +
			windowArea(a, b, rect{win.minX, c.y, c.x, win.maxY}, depth+1) +
			windowArea(a, b, rect{c.x, c.y, win.maxX, win.maxY}, depth+1)
	}
	return fanArea(a, b, win.center())
}

func vertexCount(rings []ring) int {
	n := 0
	for _, r := range rings {
		n += len(r)
	}
	return n
}

// clipRings applies Sutherland-Hodgman clipping of every ring against the
// window. Orientation is preserved; rings that vanish are dropped.
func clipRings(rings []ring, win rect) []ring {
	out := make([]ring, 0, len(rings))
	for _, r := range rings {
		c := clipHalf(r, func(p point) float64 { return p.x - win.minX })
		c = clipHalf(c, func(p point) float64 { return win.maxX - p.x })
		c = clipHalf(c, func(p point) float64 { return p.y - win.minY })
		c = clipHalf(c, func(p point) float64 { return win.maxY - p.y })
		if len(c) >= 3 {
			out = append(out, c)
		}
	}
	return out
}

// clipHalf keeps the part of r where dist >= 0.
func clipHalf(r ring, dist func(point) float64) ring {
	if len(r) == 0 {
		return nil
	}
	out := make(ring, 0, len(r)+4)
	prev := r[len(r)-1]
	dPrev := dist(prev)
	for _, cur := range r {
		dCur := dist(cur)
		switch {
		case dCur >= 0 && dPrev >= 0:
			out = append(out, cur)
		case dCur >= 0:
			out = append(out, lerp(prev, cur, dPrev/(dPrev-dCur)), cur)
		case dPrev >= 0:
			out = append(out, lerp(prev, cur, dPrev/(dPrev-dCur)))
		}
		prev, dPrev = cur, dCur
	}
	return out
}

func lerp(a, b point, t float64) point {
	return point{a.x + (b.x-a.x)*t, a.y + (b.y-a.y)*t}
}

// triangle is a counter-clockwise triangle with the winding sign of the edge
// it was fanned from.
type triangle struct {
	v    [3]point
	sign float64
}

func fan(rings []ring, o point) []triangle {
	tris := make([]triangle, 0, vertexCount(rings))
	for _, r := range rings {
		for i := range r {
			p, q := sub(r[i], o), sub(r[(i+1)%len(r)], o)
			c := cross(p, q)
			switch {
			case c > 0:
				tris = append(tris, triangle{v: [3]point{{}, p, q}, sign: 1})
			case c < 0:
				tris = append(tris, triangle{v: [3]point{{}, q, p}, sign: -1})
			}
		}
	}
	return tris
}

// fanArea computes Σ sign(ta)·sign(tb)·area(ta ∩ tb) over the triangles
// fanned from o. The indicator of each shape is the signed sum of its
// triangles' indicators, so the sum integrates the product of the two.
func fanArea(a, b []ring, o point) float64 {
	ta, tb := fan(a, o), fan(b, o)
	var sum float64
	for i := range ta {
		for j := range tb {
			if area := clipTriangles(&ta[i], &tb[j]); area > 0 {
				sum += ta[i].sign * tb[j].sign * area
			}
		}
	}
	return sum
}

// clipTriangles returns the area of the intersection of two
// counter-clockwise triangles.
func clipTriangles(s, c *triangle) float64 {
	var bufA, bufB [9]point
	poly := bufA[:3]
	copy(poly, s.v[:])
	next := bufB[:0]

	for k := 0; k < 3; k++ {
		e0, e1 := c.v[k], c.v[(k+1)%3]
		edge := sub(e1, e0)
		next = next[:0]
		prev := poly[len(poly)-1]
		dPrev := cross(edge, sub(prev, e0))
		for _, cur := range poly {
			dCur := cross(edge, sub(cur, e0))
			switch {
			case dCur >= 0 && dPrev >= 0:
				next = append(next, cur)
			case dCur >= 0:
				next = append(next, lerp(prev, cur, dPrev/(dPrev-dCur)), cur)
			case dPrev >= 0:
				next = append(next, lerp(prev, cur, dPrev/(dPrev-dCur)))
			}
			prev, dPrev = cur, dCur
		}
		if len(next) < 3 {
			return 0
		}
		poly, next = next, poly
	}
	return ringArea(ring(poly))
}

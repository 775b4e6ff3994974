package shapefile

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// PolygonToMultiPolygon assembles shapefile polygon parts into a
// MultiPolygon. Clockwise rings are outer boundaries; a counter-clockwise ring
// is a hole of the preceding outer ring when it lies inside it, otherwise it
// is treated as another outer ring. Returns nil when no ring is usable.
func PolygonToMultiPolygon(parts []int32, points []shp.Point, srid int) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)

	var (
		outer []float64
		holes [][]float64
	)
	flush := func() {
		if outer == nil {
			return
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, outer)); err != nil {
			zap.L().Debug("shapefile: skipping outer ring", zap.Error(err))
			outer, holes = nil, nil
			return
		}
		for _, h := range holes {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, h)); err != nil {
				zap.L().Debug("shapefile: skipping hole", zap.Error(err))
			}
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("shapefile: skipping polygon", zap.Error(err))
		}
		outer, holes = nil, nil
	}

	for i := range parts {
		ring := ringCoords(parts, points, i)
		if ring == nil {
			continue
		}

		// SignedArea is positive for clockwise rings.
		clockwise := xy.SignedArea(geom.XY, ring) > 0
		if !clockwise && outer != nil && xy.IsPointInRing(geom.XY, geom.Coord{ring[0], ring[1]}, outer) {
			holes = append(holes, ring)
			continue
		}
		flush()
		outer = ring
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ringCoords returns the closed flat coordinates of part i, or nil when the
// part has fewer than three distinct vertices.
func ringCoords(parts []int32, points []shp.Point, i int) []float64 {
	start := int(parts[i])
	end := len(points)
	if i+1 < len(parts) {
		end = int(parts[i+1])
	}
	if start < 0 || start >= end || end > len(points) {
		return nil
	}

	flat := make([]float64, 0, (end-start+1)*2)
	for _, p := range points[start:end] {
		flat = append(flat, p.X, p.Y)
	}
	n := len(flat)
	if flat[0] != flat[n-2] || flat[1] != flat[n-1] {
		flat = append(flat, flat[0], flat[1])
	}
	if len(flat) < 8 {
		return nil
	}
	return flat
}

package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// TileLayers lists the vector tile layers and their zoom range.
var TileLayers = map[string][2]int{
	"barangays":      {8, 16},
	"municipalities": {6, 14},
}

// tileSources is the allowlist of per-layer feature queries. Geometry is
// stored in WGS84 and projected to web mercator for the tile envelope.
var tileSources = map[string]string{
	"barangays": `SELECT b.id, b.name, b.municipality, b.is_coastal,
			r.overall_score, COALESCE(r.risk_level, '') AS risk_level,
			ST_AsMVTGeom(ST_Transform(b.geom, 3857), ST_TileEnvelope($1, $2, $3), 4096, 256, true) AS geom
		FROM barangays b
		LEFT JOIN resilience_scores r ON r.barangay_id = b.id
		WHERE b.geom && ST_Transform(ST_TileEnvelope($1, $2, $3), 4326)`,
	"municipalities": `SELECT m.id, m.name, m.classification,
			ST_AsMVTGeom(ST_Transform(m.geom, 3857), ST_TileEnvelope($1, $2, $3), 4096, 256, true) AS geom
		FROM municipalities m
		WHERE m.geom && ST_Transform(ST_TileEnvelope($1, $2, $3), 4326)`,
}

// Tile renders one Mapbox Vector Tile for layer at z/x/y.
func (s *PostgresStore) Tile(ctx context.Context, layer string, z, x, y int) ([]byte, error) {
	src, ok := tileSources[layer]
	if !ok {
		return nil, eris.Errorf("postgres: unknown tile layer %q", layer)
	}
	sql := "SELECT ST_AsMVT(q, '" + layer + "', 4096, 'geom') FROM (" + src + ") q"

	var tile []byte
	if err := s.pool.QueryRow(ctx, sql, z, x, y).Scan(&tile); err != nil {
		return nil, eris.Wrapf(err, "postgres: render %s tile %d/%d/%d", layer, z, x, y)
	}
	return tile, nil
}

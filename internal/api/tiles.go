package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/store"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

// tile serves /tiles/{layer}/{z}/{x}/{y}.pbf. Zooms outside the layer's
// range get 204.
func (a *API) tile(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	zooms, ok := store.TileLayers[layer]
	if !ok {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}

	var coords [3]int
	for i, name := range []string{"z", "x", "y"} {
		v, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil || v < 0 {
			http.Error(w, "invalid "+name, http.StatusBadRequest)
			return
		}
		coords[i] = v
	}
	z, x, y := coords[0], coords[1], coords[2]

	if z < zooms[0] || z > zooms[1] {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if n := 1 << z; x >= n || y >= n {
		http.Error(w, "tile out of range", http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s/%d/%d/%d", layer, z, x, y)
	if data, ok := a.tileCache.Get(key); ok {
		a.tileCacheResult(true)
		writeTile(w, data, "hit")
		return
	}
	a.tileCacheResult(false)

	data, err := a.tiles.Tile(r.Context(), layer, z, x, y)
	if err != nil {
		zap.L().Error("tile generation failed",
			zap.String("layer", layer),
			zap.Int("z", z), zap.Int("x", x), zap.Int("y", y),
			zap.Error(err),
		)
		http.Error(w, "tile generation failed", http.StatusInternalServerError)
		return
	}
	a.tileCache.Put(key, data)
	writeTile(w, data, "miss")
}

func (a *API) tileCacheResult(hit bool) {
	if a.metrics != nil {
		observability.CacheResult(a.metrics.TileCache, hit)
	}
}

func writeTile(w http.ResponseWriter, data []byte, cacheState string) {
	w.Header().Set("Content-Type", mvtContentType)
	w.Header().Set("X-Cache", cacheState)
	_, _ = w.Write(data)
}

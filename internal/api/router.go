package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/cache"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/store"
)

// Options configures the API.
type Options struct {
	// CORSOrigins defaults to every origin.
	CORSOrigins []string
	// Narrator generates AI narratives. Nil serves placeholders.
	Narrator      *narrative.Service
	Metrics       *observability.Metrics
	TileCacheSize int
	TileCacheTTL  time.Duration
	Clock         clockwork.Clock
}

// API holds the handlers and their dependencies.
type API struct {
	store    store.Store
	narrator *narrative.Service
	metrics  *observability.Metrics
	clock    clockwork.Clock

	tiles     store.TileRenderer
	tileCache *cache.Cache[[]byte]

	router chi.Router
}

// New builds the router. Tile routes are mounted only when st renders tiles.
func New(st store.Store, opts Options) *API {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Narrator == nil {
		opts.Narrator = narrative.NewService(nil, narrative.Config{}, narrative.WithClock(opts.Clock))
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.TileCacheSize <= 0 {
		opts.TileCacheSize = 2048
	}
	if opts.TileCacheTTL <= 0 {
		opts.TileCacheTTL = time.Hour
	}

	a := &API{
		store:    st,
		narrator: opts.Narrator,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
	}
	if tr, ok := st.(store.TileRenderer); ok {
		a.tiles = tr
		a.tileCache = cache.New[[]byte](opts.TileCacheSize, opts.TileCacheTTL, cache.WithClock(opts.Clock))
	}
	a.router = a.routes(opts.CORSOrigins)
	return a
}

func (a *API) routes(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Cache", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/municipalities", func(r chi.Router) {
			r.Get("/", a.listMunicipalities)
			r.Get("/{id}", a.getMunicipality)
			r.Get("/{id}/barangays", a.municipalityBarangays)
			r.Get("/{id}/air-quality", a.municipalityAirQuality)
			r.Get("/{id}/ai-report", a.municipalityReport)
		})
		r.Route("/barangays", func(r chi.Router) {
			r.Get("/", a.listBarangays)
			r.Get("/high-risk", a.riskBarangays(riskHigh))
			r.Get("/medium-risk", a.riskBarangays(riskMedium))
			r.Get("/coastal", a.coastalBarangays)
			r.Get("/statistics", a.statistics)
			r.Get("/{id}", a.getBarangay)
			r.Get("/{id}/ai-analysis", a.barangayAnalysis)
		})
		r.Route("/resilience-scores", func(r chi.Router) {
			r.Get("/", a.listScores)
			r.Get("/top-risk", a.topRisk)
		})
		r.Get("/hazards", a.listExposures)
		for _, v := range hazardViews {
			r.Get("/"+v.path, a.hazardView(v, false))
			r.Get("/"+v.path+"/high-risk", a.hazardView(v, true))
		}
		r.Route("/air-quality", func(r chi.Router) {
			r.Get("/", a.listAirQuality)
			r.Get("/latest", a.latestAirQuality)
			r.Get("/ai-analysis", a.airQualityAnalysis)
		})
		r.Route("/cyclone-tracks", func(r chi.Router) {
			r.Get("/", a.listCyclones)
			r.Get("/affecting", a.affectingCyclones)
		})
		if a.tiles != nil {
			r.Get("/tiles/{layer}/{z}/{x}/{y}.pbf", a.tile)
		}
	})
	return r
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// PurgeTiles drops cached tiles, e.g. after scores change.
func (a *API) PurgeTiles() {
	if a.tileCache != nil {
		a.tileCache.Purge()
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"provider": a.narrator.Provider(),
	})
}

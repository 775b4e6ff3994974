package narrative

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/negros-cram/brrs/internal/cache"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/resilience"
)

// ProviderNone labels a service without a backend.
const ProviderNone = "none"

// Config tunes a Service. Zero values pick the defaults below.
type Config struct {
	Provider      string
	CacheTTL      time.Duration // default 1h
	CacheSize     int           // default 512
	RatePerMinute float64       // <= 0 disables limiting
	Burst         int           // default 1
	Timeout       time.Duration // per generation, including retries; default 60s
	Retry         resilience.RetryConfig
	Breaker       resilience.CircuitBreakerConfig
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps, cache expiry and backoff.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records request outcomes and cache hits.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service generates narratives with caching, rate limiting, retries and
// a circuit breaker. Failures never surface to callers; they get
// Placeholder instead.
type Service struct {
	backend  Summarizer
	provider string
	timeout  time.Duration
	retry    resilience.RetryConfig

	cache   *cache.Cache[string]
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	group   singleflight.Group

	clock   clockwork.Clock
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewService wraps backend. A nil backend always yields Placeholder.
func NewService(backend Summarizer, cfg Config, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		clock:    clockwork.NewRealClock(),
		log:      zap.L().With(zap.String("component", "narrative")),
	}
	for _, o := range opts {
		o(s)
	}
	if backend == nil || s.provider == "" {
		s.provider = ProviderNone
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	s.cache = cache.New[string](size, ttl, cache.WithClock(s.clock))

	limit, burst := rate.Inf, cfg.Burst
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(limit, burst)

	s.retry = cfg.Retry
	if s.retry.MaxAttempts == 0 {
		s.retry = resilience.DefaultRetryConfig()
	}
	if s.retry.Clock == nil {
		s.retry.Clock = s.clock
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = resilience.RetryLogger(s.provider, "summarize")
	}

	bc := cfg.Breaker
	if bc.FailureThreshold == 0 {
		bc = resilience.DefaultCircuitBreakerConfig()
	}
	if bc.Clock == nil {
		bc.Clock = s.clock
	}
	if bc.ShouldTrip == nil {
		bc.ShouldTrip = resilience.IsTransient
	}
	if bc.OnStateChange == nil {
		bc.OnStateChange = func(from, to resilience.CircuitState) {
			s.log.Warn("narrative circuit state changed",
				zap.String("provider", s.provider),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	s.breaker = resilience.NewCircuitBreaker(bc)
	return s
}

// Provider names the configured backend.
func (s *Service) Provider() string { return s.provider }

// Generate returns the narrative for p, from cache when fresh.
func (s *Service) Generate(ctx context.Context, p Prompt) Result {
	key := cacheKey(p)
	if text, ok := s.cache.Get(key); ok {
		s.cacheResult(true)
		return Result{Text: text, Provider: s.provider, Cached: true, GeneratedAt: s.clock.Now().UTC()}
	}
	s.cacheResult(false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.summarize(ctx, p)
	})
	now := s.clock.Now().UTC()
	if err != nil {
		s.log.Warn("narrative generation failed",
			zap.String("subject", p.Subject),
			zap.String("provider", s.provider),
			zap.Error(err),
		)
		s.outcome("fallback")
		return Result{Text: Placeholder, Provider: s.provider, Fallback: true, GeneratedAt: now}
	}
	text := v.(string)
	s.cache.Put(key, text)
	return Result{Text: text, Provider: s.provider, GeneratedAt: now}
}

func (s *Service) summarize(ctx context.Context, p Prompt) (string, error) {
	if s.backend == nil {
		return "", eris.New("narrative: no backend configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.clock.Now()
	text, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (string, error) {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "narrative: rate limit wait")
			}
			return s.backend.Summarize(ctx, p)
		})
	})
	if s.metrics != nil {
		s.metrics.NarrativeDuration.WithLabelValues(s.provider).Observe(s.clock.Since(start).Seconds())
	}
	if err != nil {
		s.outcome("error")
		return "", err
	}
	s.outcome("success")
	return text, nil
}

// BarangayAnalysis describes a barangay's vulnerabilities and priorities.
func (s *Service) BarangayAnalysis(ctx context.Context, d *model.BarangayDetail) Result {
	return s.Generate(ctx, BarangayPrompt(d))
}

// AirQualityAnalysis describes one month of readings. Empty input yields
// NoAirQualityData without calling the backend.
func (s *Service) AirQualityAnalysis(ctx context.Context, rows []model.AirQuality) Result {
	p, ok := AirQualityPrompt(rows)
	if !ok {
		return Result{Text: NoAirQualityData, Provider: s.provider, GeneratedAt: s.clock.Now().UTC()}
	}
	return s.Generate(ctx, p)
}

// MunicipalReport writes an executive summary for a municipality.
func (s *Service) MunicipalReport(ctx context.Context, r *model.MunicipalityRollup) Result {
	return s.Generate(ctx, MunicipalPrompt(r))
}

// Invalidate drops cached narratives whose subject starts with prefix,
// e.g. "barangay:" after scores are recalculated.
func (s *Service) Invalidate(prefix string) int {
	return s.cache.InvalidatePrefix(prefix)
}

func (s *Service) outcome(o string) {
	if s.metrics == nil {
		return
	}
	s.metrics.NarrativeRequests.WithLabelValues(s.provider, o).Inc()
}

func (s *Service) cacheResult(hit bool) {
	if s.metrics == nil {
		return
	}
	observability.CacheResult(s.metrics.NarrativeCache, hit)
}

// cacheKey keeps the subject as a readable prefix so callers can
// invalidate by subject.
func cacheKey(p Prompt) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%g", p.System, p.User, p.MaxTokens, p.Temperature)
	return p.Subject + "#" + hex.EncodeToString(h.Sum(nil))
}

// Package pipeline runs the batch stages: hazard overlays, discrete
// exposure overlays, score recomputation and narrative pre-generation.
// Every run is recorded with its processed, skipped and errored counts.
package pipeline

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/overlay"
	"github.com/negros-cram/brrs/internal/scoring"
	"github.com/negros-cram/brrs/internal/store"
)

// ErrNoUnits is returned when the store holds no barangays to process.
var ErrNoUnits = eris.New("pipeline: no barangays in store")

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// Runner executes batch stages against a store.
type Runner struct {
	store    store.Store
	engine   *overlay.Engine
	weights  scoring.Weights
	workers  int
	clock    clockwork.Clock
	metrics  *observability.Metrics
	narrator *narrative.Service
	log      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the worker pool size. Non-positive values keep the default.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithWeights replaces the default weight tables.
func WithWeights(w scoring.Weights) Option {
	return func(r *Runner) { r.weights = w }
}

// WithClock sets the clock used for run and score timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithMetrics records run outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithNarrator enables narrative runs and cache invalidation after scoring.
func WithNarrator(n *narrative.Service) Option {
	return func(r *Runner) { r.narrator = n }
}

// New creates a Runner. engine fixes the reference frame of overlay runs.
func New(st store.Store, engine *overlay.Engine, opts ...Option) *Runner {
	r := &Runner{
		store:   st,
		engine:  engine,
		weights: scoring.DefaultWeights(),
		workers: DefaultWorkers,
		clock:   clockwork.NewRealClock(),
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Outcome is the result of one tracked run.
type Outcome struct {
	Run    model.Run
	Report *ingest.Report
}

// Track records a run around fn: a running row first, then the final counts
// and status. Recording failures are logged and never fail the run.
func (r *Runner) Track(ctx context.Context, kind model.RunKind, subject string, fn func(ctx context.Context) (*ingest.Report, error)) (*Outcome, error) {
	run := model.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Status:    model.RunStatusRunning,
		StartedAt: r.clock.Now().UTC(),
	}
	log := r.log.With(zap.String("run_id", run.ID), zap.String("kind", string(kind)), zap.String("subject", subject))
	r.record(ctx, log, &run)
	log.Info("pipeline: run started")

	rep, err := fn(ctx)
	if rep == nil {
		rep = &ingest.Report{}
	}
	finished := r.clock.Now().UTC()
	run.FinishedAt = &finished
	run.Processed, run.Skipped, run.Errored = rep.Processed, rep.Skipped, rep.Errored
	run.Status = model.RunStatusComplete
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
	}
	// A cancelled run still gets its final row.
	r.record(context.WithoutCancel(ctx), log, &run)
	r.metrics.ObserveRun(string(kind), string(run.Status), run.StartedAt, finished, rep.Processed, rep.Skipped, rep.Errored)

	fields := []zap.Field{
		zap.Int("processed", rep.Processed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("errored", rep.Errored),
		zap.Duration("duration", finished.Sub(run.StartedAt)),
	}
	if err != nil {
		log.Error("pipeline: run failed", append(fields, zap.Error(err))...)
		return &Outcome{Run: run, Report: rep}, err
	}
	if len(rep.Named) > 0 {
		fields = append(fields, zap.Strings("named", rep.Named))
	}
	log.Info("pipeline: run complete", fields...)
	return &Outcome{Run: run, Report: rep}, nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, run *model.Run) {
	if err := r.store.RecordRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
	}
}

// Calculate recomputes every barangay's resilience score in one bulk write.
func (r *Runner) Calculate(ctx context.Context) (*Outcome, error) {
	return r.Track(ctx, model.RunKindScore, "all", func(ctx context.Context) (*ingest.Report, error) {
		inputs, err := r.store.LoadScoringInputs(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load scoring inputs")
		}
		if len(inputs) == 0 {
			return nil, ErrNoUnits
		}

		now := r.clock.Now().UTC()
		scores := make([]model.ResilienceScore, len(inputs))
		err = forEach(ctx, r.workers, len(inputs), func(i int) {
			scores[i] = scoring.Score(r.weights, inputs[i], now)
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(scores, func(i, j int) bool { return scores[i].BarangayID < scores[j].BarangayID })

		if _, err := r.store.UpsertScores(ctx, scores); err != nil {
			return nil, eris.Wrap(err, "pipeline: write scores")
		}
		if r.narrator != nil {
			n := r.narrator.Invalidate("barangay:") + r.narrator.Invalidate("municipality:")
			r.log.Debug("pipeline: dropped stale narratives", zap.Int("entries", n))
		}
		return &ingest.Report{Processed: len(scores)}, nil
	})
}

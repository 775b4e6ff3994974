package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/config"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/overlay"
	"github.com/negros-cram/brrs/internal/pipeline"
	"github.com/negros-cram/brrs/internal/resilience"
	"github.com/negros-cram/brrs/internal/scoring"
	"github.com/negros-cram/brrs/internal/store"
	"github.com/negros-cram/brrs/pkg/anthropic"
)

// openStore validates cfg for mode, connects and applies migrations.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		SQLitePath:  cfg.Store.SQLitePath,
		Pool: &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newBackend builds the configured language-model backend. Provider none
// or a missing key yields nil, which serves placeholders.
func newBackend(n config.NarrativeConfig) narrative.Summarizer {
	if n.Key() == "" {
		if n.Provider != config.ProviderNone {
			zap.L().Warn("no API key for narrative provider, serving placeholders",
				zap.String("provider", n.Provider))
		}
		return nil
	}
	switch n.Provider {
	case config.ProviderAnthropic:
		client := anthropic.NewClient(n.AnthropicKey, anthropic.Options{Timeout: n.Timeout()})
		return narrative.NewAnthropic(client, n.AnthropicModel)
	case config.ProviderGroq, config.ProviderOpenAI:
		return narrative.NewOpenAI(n.OpenAIKey, narrative.OpenAIOptions{
			BaseURL: n.OpenAIBaseURL,
			Model:   n.OpenAIModel,
			Timeout: n.Timeout(),
		})
	}
	return nil
}

func newNarrator(n config.NarrativeConfig, metrics *observability.Metrics) *narrative.Service {
	backend := newBackend(n)
	provider := n.Provider
	if backend == nil {
		provider = narrative.ProviderNone
	}
	return narrative.NewService(backend, narrative.Config{
		Provider:      provider,
		CacheTTL:      n.CacheTTL(),
		CacheSize:     n.CacheSize,
		RatePerMinute: n.RatePerMinute,
		Burst:         n.Burst,
		Timeout:       n.Timeout(),
		Retry:         resilience.RetrySettings(n.MaxAttempts, 0, 0),
	}, narrative.WithMetrics(metrics))
}

// newRunner wires the batch runner from cfg.
func newRunner(st store.Store, metrics *observability.Metrics, narrator *narrative.Service) (*pipeline.Runner, error) {
	weights := scoring.DefaultWeights()
	if cfg.Scoring.WeightsFile != "" {
		w, err := scoring.LoadWeights(cfg.Scoring.WeightsFile)
		if err != nil {
			return nil, eris.Wrap(err, "load weights")
		}
		weights = w
	}
	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Batch.Workers),
		pipeline.WithWeights(weights),
		pipeline.WithMetrics(metrics),
	}
	if narrator != nil {
		opts = append(opts, pipeline.WithNarrator(narrator))
	}
	return pipeline.New(st, overlay.New(cfg.Overlay.SRID), opts...), nil
}

// printOutcome writes a run summary and the named skipped items.
func printOutcome(w io.Writer, o *pipeline.Outcome) {
	if o == nil {
		return
	}
	dur := time.Duration(0)
	if o.Run.FinishedAt != nil {
		dur = o.Run.FinishedAt.Sub(o.Run.StartedAt).Round(time.Millisecond)
	}
	_, _ = fmt.Fprintf(w, "%s %s: %s processed=%d skipped=%d errored=%d (%s)\n",
		o.Run.Kind, o.Run.Subject, o.Run.Status, o.Run.Processed, o.Run.Skipped, o.Run.Errored, dur)
	if o.Report != nil {
		for _, n := range o.Report.Named {
			_, _ = fmt.Fprintf(w, "  - %s\n", n)
		}
	}
}

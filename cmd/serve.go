package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/api"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API, AI narratives and vector tiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		metrics := observability.NewMetrics()
		narrator := newNarrator(cfg.Narrative, metrics)
		handler := api.New(st, api.Options{
			CORSOrigins:   cfg.Server.CORSOrigins,
			Narrator:      narrator,
			Metrics:       metrics,
			TileCacheSize: cfg.Server.TileCacheSize,
			TileCacheTTL:  time.Duration(cfg.Server.TileCacheTTLMin) * time.Minute,
		})

		if cfg.Schedule.Recompute != "" {
			runner, err := newRunner(st, metrics, narrator)
			if err != nil {
				return err
			}
			sched, err := scheduleRecompute(ctx, cfg.Schedule.Recompute, runner, handler)
			if err != nil {
				return err
			}
			defer func() { <-sched.Stop().Done() }()
		}

		srv := api.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), handler)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
				time.Duration(cfg.Server.ShutdownSecs)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("driver", cfg.Store.Driver),
			zap.String("narrative_provider", narrator.Provider()),
		)
		return srv.Start()
	},
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// recomputeWrappers skip a tick while the previous recompute still runs so
// score writes never overlap.
func recomputeWrappers(l cron.Logger) []cron.JobWrapper {
	return []cron.JobWrapper{cron.Recover(l), cron.SkipIfStillRunning(l)}
}

// scheduleRecompute recalculates scores on spec and drops cached tiles
// after each successful run.
func scheduleRecompute(ctx context.Context, spec string, runner *pipeline.Runner, handler *api.API) (*cron.Cron, error) {
	log := cronLogger{zap.L().With(zap.String("component", "cron"))}
	c := cron.New(cron.WithLogger(log), cron.WithChain(recomputeWrappers(log)...))
	_, err := c.AddFunc(spec, func() {
		zap.L().Info("scheduled recompute running")
		if _, err := runner.Calculate(ctx); err != nil {
			zap.L().Error("scheduled recompute failed", zap.Error(err))
			return
		}
		handler.PurgeTiles()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule recompute %q", spec)
	}
	c.Start()
	zap.L().Info("scheduled recompute", zap.String("spec", spec))
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

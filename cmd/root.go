package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "brrs",
	Short: "Barangay climate-resilience scoring for Negros Oriental",
	Long: "Loads boundaries, hazard maps and environmental data, overlays hazard zones on barangays, " +
		"computes Barangay Resilience Readiness Scores and serves them over a JSON API.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

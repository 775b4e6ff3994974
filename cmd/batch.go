package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/pipeline"
)

// printLayerStats prints the zone counts of a layer run when anything was
// dropped, skipped or left uncovered.
func printLayerStats(w io.Writer, o *pipeline.LayerOutcome) {
	dropped := o.Layer.DroppedTotal()
	if dropped == 0 && o.Layer.Skipped == 0 && o.InvalidZones == 0 && o.NoCoverage == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "  zones kept=%d dropped=%d skipped shapes=%d invalid=%d units without coverage=%d\n",
		o.Layer.Kept, dropped, o.Layer.Skipped, o.InvalidZones, o.NoCoverage)
	values := o.Layer.DroppedValues()
	for _, v := range values[:min(len(values), ingest.MaxNamed)] {
		_, _ = fmt.Fprintf(w, "  - unrecognized class %q: %d\n", v, o.Layer.Dropped[v])
	}
}

// parseLayerArg reads "<hazard>[:<period>]=<path>", e.g.
// "flood:100yr=data/flood_100yr.zip" or "liquefaction=data/liq.shp".
func parseLayerArg(arg, field string) (pipeline.LayerSpec, error) {
	key, path, ok := strings.Cut(arg, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return pipeline.LayerSpec{}, eris.Errorf("layer %q: want <hazard>[:<period>]=<path>", arg)
	}
	name, period, _ := strings.Cut(key, ":")
	h, err := model.ParseHazardType(name)
	if err != nil {
		return pipeline.LayerSpec{}, eris.Wrapf(err, "layer %q", arg)
	}
	return pipeline.LayerSpec{
		Path:   strings.TrimSpace(path),
		Hazard: h,
		Period: strings.TrimSpace(period),
		Field:  field,
	}, nil
}

// layerStage runs one overlay or exposure pass per layer.
type layerStage func(r *pipeline.Runner, ctx context.Context, spec pipeline.LayerSpec) (*pipeline.LayerOutcome, error)

func runLayers(cmd *cobra.Command, args []string, stage layerStage) error {
	field, _ := cmd.Flags().GetString("field")
	specs := make([]pipeline.LayerSpec, 0, len(args))
	for _, a := range args {
		spec, err := parseLayerArg(a, field)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, "batch")
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runner, err := newRunner(st, nil, nil)
	if err != nil {
		return err
	}

	var failed int
	for _, spec := range specs {
		o, err := stage(runner, ctx, spec)
		if o != nil {
			printOutcome(cmd.OutOrStdout(), &o.Outcome)
			printLayerStats(cmd.OutOrStdout(), o)
		}
		if err != nil {
			failed++
			zap.L().Error("layer failed", zap.String("layer", spec.Subject()), zap.Error(err))
		}
	}
	if failed > 0 {
		return eris.Errorf("%d of %d layers failed", failed, len(specs))
	}
	return nil
}

var overlayCmd = &cobra.Command{
	Use:   "overlay <hazard>[:<period>]=<path>...",
	Short: "Compute area-weighted class percentages for hazard layers",
	Long: "Intersects each hazard layer with every barangay and replaces the stored class percentages " +
		"for that hazard and period. Flood layers need a return period (5yr, 25yr, 100yr) and storm surge " +
		"layers an advisory level (ssa1..ssa4).",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLayers(cmd, args, (*pipeline.Runner).Overlay)
	},
}

var exposureCmd = &cobra.Command{
	Use:   "exposure <hazard>=<path>...",
	Short: "Derive discrete exposures from the highest intersecting class",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLayers(cmd, args, (*pipeline.Runner).Exposure)
	},
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Recompute resilience scores for every barangay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "batch")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runner, err := newRunner(st, nil, nil)
		if err != nil {
			return err
		}
		o, err := runner.Calculate(ctx)
		printOutcome(cmd.OutOrStdout(), o)
		return err
	},
}

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Generate AI analyses for the highest-risk barangays",
	RunE: func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("risk-level")
		limit, _ := cmd.Flags().GetInt("limit")
		munis, _ := cmd.Flags().GetBool("municipalities")

		opts := pipeline.NarrateOptions{Limit: limit, Municipalities: munis}
		if level != "" {
			l, ok := model.ParseRiskLevel(level)
			if !ok {
				return eris.Errorf("unknown risk level %q", level)
			}
			opts.RiskLevel = l
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, "narrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runner, err := newRunner(st, nil, newNarrator(cfg.Narrative, nil))
		if err != nil {
			return err
		}
		out, o, err := runner.Narrate(ctx, opts)
		w := cmd.OutOrStdout()
		for _, n := range out {
			_, _ = fmt.Fprintf(w, "== %s (%s)\n%s\n\n", n.Name, n.Subject, n.Result.Text)
		}
		printOutcome(w, o)
		return err
	},
}

func init() {
	overlayCmd.Flags().String("field", "", "classification attribute (default detected)")
	exposureCmd.Flags().String("field", "", "classification attribute (default detected)")
	narrateCmd.Flags().String("risk-level", "High", "risk level to narrate (Low, Medium, High); empty for all")
	narrateCmd.Flags().Int("limit", 10, "max barangays, highest score first (0 for all)")
	narrateCmd.Flags().Bool("municipalities", false, "also write every municipal report")

	rootCmd.AddCommand(overlayCmd)
	rootCmd.AddCommand(exposureCmd)
	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(narrateCmd)
}

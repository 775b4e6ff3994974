package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/negros-cram/brrs/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Store.Driver)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent batch runs and province-wide statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "status")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		stats, err := st.Statistics(ctx)
		if err != nil {
			return eris.Wrap(err, "status: statistics")
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Runs       []model.Run       `json:"runs"`
				Statistics *model.Statistics `json:"statistics"`
			}{runs, stats})
		}

		formatStatistics(out, stats)
		_, _ = fmt.Fprintln(out)
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(out, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "max number of runs to display")
	statusCmd.Flags().Bool("json", false, "print JSON instead of tables")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSUBJECT\tSTATUS\tPROCESSED\tSKIPPED\tERRORED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t---------\t-------\t-------\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		subject := r.Subject
		if len(subject) > 30 {
			subject = subject[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			subject,
			r.Status,
			r.Processed,
			r.Skipped,
			r.Errored,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatStatistics writes the province-wide summary to out.
func formatStatistics(out io.Writer, s *model.Statistics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Municipalities:\t%d\n", s.TotalMunicipalities)
	_, _ = fmt.Fprintf(w, "Barangays:\t%d (%d coastal)\n", s.TotalBarangays, s.CoastalBarangays)
	if avg, ok := s.Resilience.Overall.Get(); ok {
		_, _ = fmt.Fprintf(w, "Average BRRS:\t%.1f\n", avg)
	}
	_, _ = fmt.Fprintf(w, "Risk levels:\thigh=%d medium=%d low=%d\n",
		s.Resilience.High, s.Resilience.Medium, s.Resilience.Low)
	_, _ = fmt.Fprintf(w, "Overlay coverage:\tflood=%d surge=%d liquefaction=%d landslide=%d\n",
		s.Coverage.NOAHFlood, s.Coverage.StormSurge, s.Coverage.Liquefaction, s.Coverage.Landslide)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/negros-cram/brrs/internal/fetcher"
	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/shapefile"
	"github.com/negros-cram/brrs/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load source data into the store",
	Long:  "Commands for loading boundaries, census data, air quality, the LDRRMD hazard matrix, cyclone tracks and climate summaries.",
}

// loadFunc performs one load against an open store.
type loadFunc func(ctx context.Context, st store.Store) (*ingest.Report, error)

// runLoad opens the store and records the load as a run.
func runLoad(cmd *cobra.Command, subject string, fn loadFunc) error {
	ctx := cmd.Context()
	st, err := openStore(ctx, "load")
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runner, err := newRunner(st, nil, nil)
	if err != nil {
		return err
	}
	o, err := runner.Track(ctx, model.RunKindLoad, subject, func(ctx context.Context) (*ingest.Report, error) {
		return fn(ctx, st)
	})
	printOutcome(cmd.OutOrStdout(), o)
	return err
}

func boundaryOptions(cmd *cobra.Command) ingest.BoundaryOptions {
	province, _ := cmd.Flags().GetString("province")
	region, _ := cmd.Flags().GetString("region")
	projected, _ := cmd.Flags().GetBool("projected")
	return ingest.BoundaryOptions{Province: province, Region: region, Projected: projected}
}

// -- load municipalities --

var loadMunicipalitiesCmd = &cobra.Command{
	Use:   "municipalities <shapefile>",
	Short: "Load municipality boundaries from a shapefile or zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := boundaryOptions(cmd)
		return runLoad(cmd, "municipalities", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			f, err := shapefile.Read(args[0], cfg.Overlay.SRID)
			if err != nil {
				return nil, err
			}
			ms, rep := ingest.ReadMunicipalities(f, opts)
			if _, err := st.UpsertMunicipalities(ctx, ms); err != nil {
				return rep, err
			}
			return rep, nil
		})
	},
}

// -- load barangays --

var loadBarangaysCmd = &cobra.Command{
	Use:   "barangays <shapefile>",
	Short: "Load barangay boundaries from a shapefile or zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := boundaryOptions(cmd)
		opts.Coastal, _ = cmd.Flags().GetStringSlice("coastal")
		return runLoad(cmd, "barangays", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			f, err := shapefile.Read(args[0], cfg.Overlay.SRID)
			if err != nil {
				return nil, err
			}
			bs, rep := ingest.ReadBarangays(f, opts)
			if _, err := st.UpsertBarangays(ctx, bs); err != nil {
				return rep, err
			}
			return rep, nil
		})
	},
}

// -- load demographics --

var loadDemographicsCmd = &cobra.Command{
	Use:   "demographics <csv>",
	Short: "Apply PSA census figures to loaded barangays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd, "demographics", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			bs, err := st.ListBarangays(ctx, store.BarangayFilter{})
			if err != nil {
				return nil, err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return nil, eris.Wrap(err, "open demographics csv")
			}
			defer f.Close() //nolint:errcheck

			ds, rep, err := ingest.ReadDemographics(ctx, f, bs)
			if err != nil {
				return rep, err
			}
			if _, err := st.UpdateDemographics(ctx, ds); err != nil {
				return rep, err
			}
			return rep, nil
		})
	},
}

// -- load air-quality --

var loadAirQualityCmd = &cobra.Command{
	Use:   "air-quality <csv>",
	Short: "Aggregate an hourly OpenWeather export into monthly readings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd, "air-quality", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			ms, err := st.ListMunicipalities(ctx, store.MunicipalityFilter{})
			if err != nil {
				return nil, err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return nil, eris.Wrap(err, "open air quality csv")
			}
			defer f.Close() //nolint:errcheck

			readings, rep, err := ingest.AggregateAirQuality(ctx, f)
			if err != nil {
				return rep, err
			}
			rows, resolved := ingest.ResolveAirQuality(readings, ms)
			// Resolution re-counts the monthly readings.
			rep.Processed = 0
			rep.Merge(resolved)
			if _, err := st.ReplaceAirQuality(ctx, rows); err != nil {
				return rep, err
			}
			return rep, nil
		})
	},
}

// -- load hazard-matrix --

var loadHazardMatrixCmd = &cobra.Command{
	Use:   "hazard-matrix <xlsx>",
	Short: "Load the LDRRMD municipal hazard matrix as barangay exposures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet, _ := cmd.Flags().GetString("sheet")
		return runLoad(cmd, "hazard-matrix", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			cells, rep, err := ingest.ReadHazardMatrix(args[0], fetcher.XLSXOptions{SheetName: sheet})
			if err != nil {
				return rep, err
			}
			bs, err := st.ListBarangays(ctx, store.BarangayFilter{})
			if err != nil {
				return rep, err
			}
			byHazard, expanded := ingest.ExpandHazardMatrix(cells, bs)
			rep.Processed = 0
			rep.Merge(expanded)
			for _, h := range model.HazardTypes {
				es, ok := byHazard[h]
				if !ok {
					continue
				}
				if _, err := st.ReplaceExposures(ctx, h, model.SourceLDRRMDMunicipality, es); err != nil {
					return rep, err
				}
			}
			return rep, nil
		})
	},
}

// -- load cyclones --

var loadCyclonesCmd = &cobra.Command{
	Use:   "cyclones <geojson>",
	Short: "Load historical cyclone tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		return runLoad(cmd, "cyclones", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			f, err := os.Open(args[0])
			if err != nil {
				return nil, eris.Wrap(err, "open cyclone tracks")
			}
			defer f.Close() //nolint:errcheck

			ts, rep, err := ingest.ReadCycloneTracks(f, ingest.CycloneOptions{Year: year})
			if err != nil {
				return rep, err
			}
			if _, err := st.ReplaceCycloneTracks(ctx, ts); err != nil {
				return rep, err
			}
			return rep, nil
		})
	},
}

// -- load climate --

var loadClimateCmd = &cobra.Command{
	Use:   "climate [yaml]",
	Short: "Apply provincial climate summaries to municipalities",
	Long:  "Applies the summaries in the YAML file, or the built-in Negros Oriental projection when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(cmd, "climate", func(ctx context.Context, st store.Store) (*ingest.Report, error) {
			summaries := []model.ClimateSummary{ingest.DefaultClimate}
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return nil, eris.Wrap(err, "open climate summary")
				}
				defer f.Close() //nolint:errcheck
				if summaries, err = ingest.ReadClimate(f); err != nil {
					return nil, err
				}
			}
			rep := &ingest.Report{}
			for _, c := range summaries {
				n, err := st.UpdateClimate(ctx, c)
				if err != nil {
					return rep, err
				}
				if n == 0 {
					rep.Skip(c.Province)
					continue
				}
				rep.Processed += int(n)
			}
			return rep, nil
		})
	},
}

// -- link --

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link barangays to municipalities by normalized name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLoad(cmd, "link", linkBarangays)
	},
}

func linkBarangays(ctx context.Context, st store.Store) (*ingest.Report, error) {
	bs, err := st.ListBarangays(ctx, store.BarangayFilter{})
	if err != nil {
		return nil, err
	}
	ms, err := st.ListMunicipalities(ctx, store.MunicipalityFilter{})
	if err != nil {
		return nil, err
	}
	links, rep := ingest.Link(bs, ms)
	if _, err := st.LinkBarangays(ctx, links); err != nil {
		return rep, err
	}
	return rep, nil
}

func init() {
	for _, c := range []*cobra.Command{loadMunicipalitiesCmd, loadBarangaysCmd} {
		c.Flags().String("province", "", "province name for features without one (default Negros Oriental)")
		c.Flags().String("region", "", "region name for features without one (default Region VII)")
		c.Flags().Bool("projected", false, "coordinates are metres rather than degrees")
	}
	loadBarangaysCmd.Flags().StringSlice("coastal", nil, "barangay names to flag as coastal when the shapefile has no coastal field")
	loadHazardMatrixCmd.Flags().String("sheet", "", "worksheet name (default first sheet)")
	loadCyclonesCmd.Flags().Int("year", 0, "year for tracks without a year property")

	loadCmd.AddCommand(loadMunicipalitiesCmd)
	loadCmd.AddCommand(loadBarangaysCmd)
	loadCmd.AddCommand(loadDemographicsCmd)
	loadCmd.AddCommand(loadAirQualityCmd)
	loadCmd.AddCommand(loadHazardMatrixCmd)
	loadCmd.AddCommand(loadCyclonesCmd)
	loadCmd.AddCommand(loadClimateCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(linkCmd)
}

package ingest

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/negros-cram/brrs/internal/model"
)

// DefaultClimate is the PAGASA CLIRAM projection summary for the province.
var DefaultClimate = model.ClimateSummary{
	Province: defaultProvince,
	Summary: `Climate Projections for Negros Oriental (2036-2099):

RAINFALL:
- Moderate Scenario (RCP4.5): -13% to +24% change
- High Emission (RCP8.5): -15% to +20% change
- Seasonal variability expected across DJF, MAM, JJA, SON

TEMPERATURE:
- Projected warming across all seasons
- Higher increases expected under high emission scenarios
- Impacts on agriculture, water resources, and health anticipated

Source: PAGASA CLIRAM Data`,
	RainfallTrend:    "Variable (±15-24%)",
	TemperatureTrend: "Increasing",
}

type climateFile struct {
	Provinces []model.ClimateSummary `yaml:"provinces"`
}

// ReadClimate parses a YAML document holding either a "provinces" list or
// a single summary.
func ReadClimate(r io.Reader) ([]model.ClimateSummary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read climate yaml")
	}

	var file climateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "ingest: decode climate yaml")
	}
	out := file.Provinces
	if len(out) == 0 {
		var one model.ClimateSummary
		if err := yaml.Unmarshal(data, &one); err != nil {
			return nil, eris.Wrap(err, "ingest: decode climate yaml")
		}
		if one.Summary != "" || one.Province != "" {
			out = []model.ClimateSummary{one}
		}
	}
	if len(out) == 0 {
		return nil, eris.New("ingest: climate yaml has no summaries")
	}

	for i := range out {
		out[i].Province = strings.TrimSpace(out[i].Province)
		if out[i].Province == "" {
			out[i].Province = defaultProvince
		}
		out[i].Summary = strings.TrimSpace(out[i].Summary)
		if out[i].Summary == "" {
			return nil, eris.Errorf("ingest: climate summary for %s is empty", out[i].Province)
		}
	}
	return out, nil
}

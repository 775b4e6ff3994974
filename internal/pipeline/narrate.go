package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/store"
)

// ErrNoNarrator is returned by Narrate on a Runner built without WithNarrator.
var ErrNoNarrator = eris.New("pipeline: narrative service not configured")

var errPlaceholder = eris.New("placeholder returned")

// NarrateOptions selects what to pre-generate.
type NarrateOptions struct {
	// RiskLevel restricts barangays to one level. Empty means all.
	RiskLevel model.RiskLevel
	// Limit caps the barangays, highest overall score first. Zero means all.
	Limit int
	// Municipalities also generates every municipal report.
	Municipalities bool
}

// Narration is one generated analysis.
type Narration struct {
	Subject string
	Name    string
	Result  narrative.Result
}

// Narrate fills the narrative cache for the selected barangays and,
// optionally, every municipality. Placeholders count as errored items.
func (r *Runner) Narrate(ctx context.Context, opts NarrateOptions) ([]Narration, *Outcome, error) {
	if r.narrator == nil {
		return nil, nil, ErrNoNarrator
	}
	var out []Narration
	o, err := r.Track(ctx, model.RunKindNarrate, r.narrator.Provider(), func(ctx context.Context) (*ingest.Report, error) {
		rows, err := r.store.ListBarangays(ctx, store.BarangayFilter{
			RiskLevel: opts.RiskLevel,
			Ordering:  "-overall_score",
			Limit:     opts.Limit,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list barangays")
		}

		var munis []model.MunicipalitySummary
		if opts.Municipalities {
			if munis, err = r.store.ListMunicipalities(ctx, store.MunicipalityFilter{}); err != nil {
				return nil, eris.Wrap(err, "pipeline: list municipalities")
			}
		}

		items := make([]Narration, len(rows)+len(munis))
		errs := make([]error, len(items))
		err = forEach(ctx, r.workers, len(items), func(i int) {
			if i < len(rows) {
				items[i], errs[i] = r.narrateBarangay(ctx, rows[i])
				return
			}
			items[i], errs[i] = r.narrateMunicipality(ctx, munis[i-len(rows)])
		})
		if err != nil {
			return nil, err
		}

		rep := &ingest.Report{}
		for i, it := range items {
			if errs[i] != nil {
				rep.Fail(it.Name, errs[i])
				continue
			}
			rep.Processed++
			out = append(out, it)
		}
		return rep, nil
	})
	return out, o, err
}

func (r *Runner) narrateBarangay(ctx context.Context, b model.BarangayListItem) (Narration, error) {
	n := Narration{Subject: fmt.Sprintf("barangay:%d", b.ID), Name: fmt.Sprintf("%s (%s)", b.Name, b.Municipality)}
	d, err := r.store.GetBarangay(ctx, b.ID)
	if err != nil {
		return n, err
	}
	n.Result = r.narrator.BarangayAnalysis(ctx, d)
	if n.Result.Fallback {
		return n, errPlaceholder
	}
	return n, nil
}

func (r *Runner) narrateMunicipality(ctx context.Context, m model.MunicipalitySummary) (Narration, error) {
	n := Narration{Subject: fmt.Sprintf("municipality:%d", m.ID), Name: m.Name}
	roll, err := r.store.MunicipalityRollup(ctx, m.ID)
	if err != nil {
		return n, err
	}
	n.Result = r.narrator.MunicipalReport(ctx, roll)
	if n.Result.Fallback {
		return n, errPlaceholder
	}
	return n, nil
}

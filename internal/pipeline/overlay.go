package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/hazard"
	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/overlay"
)

// LayerSpec names a hazard layer file and how to read it.
type LayerSpec struct {
	Path   string
	Hazard model.HazardType
	// Period is the raw return period or advisory level, e.g. "100yr" or
	// "ssa4". Empty for single-period hazards.
	Period string
	// Field overrides classification field detection.
	Field string
}

// Subject identifies the layer in run records.
func (s LayerSpec) Subject() string {
	if s.Period == "" {
		return fmt.Sprintf("%s %s", s.Hazard, s.Path)
	}
	return fmt.Sprintf("%s/%s %s", s.Hazard, s.Period, s.Path)
}

// LayerOutcome adds layer diagnostics to a run outcome.
type LayerOutcome struct {
	Outcome
	Layer        hazard.Stats
	InvalidZones int
	// NoCoverage counts units no zone covered; they get no record.
	NoCoverage int
}

// Overlay computes class percentages of one layer for every barangay and
// replaces the stored records of that hazard and period.
func (r *Runner) Overlay(ctx context.Context, spec LayerSpec) (*LayerOutcome, error) {
	out := &LayerOutcome{}
	o, err := r.Track(ctx, model.RunKindOverlay, spec.Subject(), func(ctx context.Context) (*ingest.Report, error) {
		layer, err := r.loadLayer(spec, true)
		if err != nil {
			return nil, err
		}
		out.Layer = layer.Stats

		prepared, targets, rep, err := r.prepare(ctx, layer)
		if err != nil {
			return rep, err
		}
		out.InvalidZones = prepared.Invalid

		results := make([]*overlay.Result, len(targets))
		err = forEach(ctx, r.workers, len(targets), func(i int) {
			if res, ok := prepared.Percentages(targets[i]); ok {
				results[i] = &res
			}
		})
		if err != nil {
			return rep, err
		}

		now := r.clock.Now().UTC()
		recs := make([]model.ClassRecord, 0, len(results))
		for _, res := range results {
			if res == nil {
				out.NoCoverage++
				continue
			}
			recs = append(recs, model.ClassRecord{
				BarangayID:  res.UnitID,
				Hazard:      layer.Hazard,
				Period:      layer.Period,
				Percentages: res.Percentages,
				Normalized:  res.Normalized,
				UpdatedAt:   now,
			})
		}
		if _, err := r.store.ReplaceClassRecords(ctx, layer.Hazard, layer.Period, recs); err != nil {
			return rep, eris.Wrap(err, "pipeline: write class records")
		}
		rep.Processed = len(recs)
		return rep, nil
	})
	if o != nil {
		out.Outcome = *o
	}
	return out, err
}

// Exposure assigns every barangay the highest class among the zones it
// touches and replaces the stored LDRRMD exposures of that hazard.
func (r *Runner) Exposure(ctx context.Context, spec LayerSpec) (*LayerOutcome, error) {
	out := &LayerOutcome{}
	o, err := r.Track(ctx, model.RunKindExposure, spec.Subject(), func(ctx context.Context) (*ingest.Report, error) {
		layer, err := r.loadLayer(spec, false)
		if err != nil {
			return nil, err
		}
		out.Layer = layer.Stats

		prepared, targets, rep, err := r.prepare(ctx, layer)
		if err != nil {
			return rep, err
		}
		out.InvalidZones = prepared.Invalid

		classes := make([]model.Class, len(targets))
		err = forEach(ctx, r.workers, len(targets), func(i int) {
			classes[i], _ = prepared.MaxClass(targets[i])
		})
		if err != nil {
			return rep, err
		}

		assessed := r.clock.Now().UTC()
		es := make([]model.HazardExposure, 0, len(targets))
		for i, c := range classes {
			if c == model.ClassUnknown {
				out.NoCoverage++
				continue
			}
			es = append(es, model.HazardExposure{
				BarangayID:     targets[i].ID,
				BarangayName:   targets[i].Name,
				Hazard:         layer.Hazard,
				Susceptibility: c.String(),
				Score:          c.Score(),
				Source:         model.SourceLDRRMD,
				AssessedDate:   &assessed,
			})
		}
		if _, err := r.store.ReplaceExposures(ctx, layer.Hazard, model.SourceLDRRMD, es); err != nil {
			return rep, eris.Wrap(err, "pipeline: write exposures")
		}
		rep.Processed = len(es)
		return rep, nil
	})
	if o != nil {
		out.Outcome = *o
	}
	return out, err
}

// loadLayer reads spec's file. Discrete exposure layers carry no period.
func (r *Runner) loadLayer(spec LayerSpec, periodic bool) (*hazard.Layer, error) {
	period := model.PeriodNone
	if periodic {
		var err error
		if period, err = model.ParsePeriod(spec.Hazard, spec.Period); err != nil {
			return nil, err
		}
	}
	return hazard.Load(spec.Path, hazard.Options{
		Hazard: spec.Hazard,
		Period: period,
		Field:  spec.Field,
		SRID:   r.engine.SRID(),
	})
}

// prepare loads the units, checks frames and validates geometry on both
// sides. Units that cannot be overlaid are skipped and named.
func (r *Runner) prepare(ctx context.Context, layer *hazard.Layer) (*overlay.Prepared, []*overlay.Target, *ingest.Report, error) {
	rep := &ingest.Report{}
	barangays, err := r.store.LoadUnits(ctx)
	if err != nil {
		return nil, nil, rep, eris.Wrap(err, "pipeline: load units")
	}
	if len(barangays) == 0 {
		return nil, nil, rep, ErrNoUnits
	}

	units := make([]overlay.Unit, len(barangays))
	for i, b := range barangays {
		units[i] = overlay.Unit{ID: b.ID, Name: unitName(b), Geometry: b.Geometry}
	}
	if err := r.engine.CheckFrame(units); err != nil {
		return nil, nil, rep, err
	}
	prepared, err := r.engine.Prepare(layer)
	if err != nil {
		return nil, nil, rep, err
	}
	if prepared.Invalid > 0 {
		r.log.Warn("pipeline: skipped invalid zones",
			zap.String("hazard", string(layer.Hazard)),
			zap.String("period", string(layer.Period)),
			zap.Int("invalid", prepared.Invalid),
		)
	}

	built := make([]*overlay.Target, len(units))
	errs := make([]error, len(units))
	err = forEach(ctx, r.workers, len(units), func(i int) {
		built[i], errs[i] = r.engine.Target(units[i])
	})
	if err != nil {
		return nil, nil, rep, err
	}

	targets := make([]*overlay.Target, 0, len(units))
	for i, t := range built {
		if errs[i] != nil {
			rep.Skip(fmt.Sprintf("%s: %v", units[i].Name, errs[i]))
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) > 0 && prepared.Len() > 0 && !prepared.Touches(targets) {
		r.log.Warn("pipeline: no zone touches any barangay; check the layer's reference frame",
			zap.String("hazard", string(layer.Hazard)),
			zap.Int("srid", r.engine.SRID()),
		)
	}
	return prepared, targets, rep, nil
}

func unitName(b model.Barangay) string {
	if b.Municipality == "" {
		return b.Name
	}
	return fmt.Sprintf("%s (%s)", b.Name, b.Municipality)
}

package scoring

import (
	"github.com/negros-cram/brrs/internal/model"
)

// FloodScore weights the High share of each NOAH return period. Missing
// periods contribute zero.
func FloodScore(w Weights, p model.HazardProfile) float64 {
	return periodScore(w.Flood, model.FloodPeriods, p)
}

// StormSurgeScore weights the High share of each advisory level.
func StormSurgeScore(w Weights, p model.HazardProfile) float64 {
	return periodScore(w.StormSurge, model.SurgeAdvisories, p)
}

// periodScore sums in the fixed period order so results are bit-identical
// across runs.
func periodScore(pw PeriodWeights, order []model.Period, p model.HazardProfile) float64 {
	var score float64
	for _, period := range order {
		if pct, ok := p[period]; ok {
			score += pct.High * pw[period]
		}
	}
	return clamp(score)
}

// LiquefactionScore weights every class of the single liquefaction period.
func LiquefactionScore(w Weights, p model.HazardProfile) float64 {
	pct := p[model.PeriodNone]
	lw := w.Liquefaction
	return clamp(pct.Low*lw.Low + pct.Medium*lw.Medium + pct.High*lw.High + pct.VeryHigh*lw.VeryHigh)
}

// DiscreteScore scales a 1-4 susceptibility score to 0-100.
func DiscreteScore(w Weights, e model.HazardExposure) float64 {
	return clamp(float64(e.Score) * w.DiscreteScale)
}

// HazardScores are the per-hazard composites of one barangay. Absent values
// had no source record.
type HazardScores struct {
	Flood        model.Optional
	StormSurge   model.Optional
	Landslide    model.Optional
	Liquefaction model.Optional
}

// Any reports whether at least one hazard had a record.
func (h HazardScores) Any() bool {
	return h.Flood.Valid() || h.StormSurge.Valid() || h.Landslide.Valid() || h.Liquefaction.Valid()
}

// Composites computes each hazard's composite. Flood prefers NOAH overlay
// percentages and falls back to the discrete LDRRMD flood exposure.
func Composites(w Weights, in model.ScoringInput) HazardScores {
	var out HazardScores

	if p, ok := in.Profile(model.HazardFlood); ok {
		out.Flood = model.Some(FloodScore(w, p))
	} else if e, ok := in.Exposure(model.HazardFlood); ok {
		out.Flood = model.Some(DiscreteScore(w, e))
	}
	if p, ok := in.Profile(model.HazardStormSurge); ok {
		out.StormSurge = model.Some(StormSurgeScore(w, p))
	}
	if e, ok := in.Exposure(model.HazardLandslide); ok {
		out.Landslide = model.Some(DiscreteScore(w, e))
	}
	if p, ok := in.Profile(model.HazardLiquefaction); ok {
		out.Liquefaction = model.Some(LiquefactionScore(w, p))
	}
	return out
}

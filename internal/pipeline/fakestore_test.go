package pipeline

import (
	"context"
	"sync"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/store"
)

// fakeStore implements the store methods the runner uses. Embedding the
// interface makes any other call panic.
type fakeStore struct {
	store.Store

	mu        sync.Mutex
	units     []model.Barangay
	inputs    []model.ScoringInput
	listed    []model.BarangayListItem
	details   map[int64]*model.BarangayDetail
	munis     []model.MunicipalitySummary
	rollups   map[int64]*model.MunicipalityRollup
	loadErr   error
	runs      []model.Run
	classRecs map[string][]model.ClassRecord
	exposures map[string][]model.HazardExposure
	scores    [][]model.ResilienceScore
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		details:   map[int64]*model.BarangayDetail{},
		rollups:   map[int64]*model.MunicipalityRollup{},
		classRecs: map[string][]model.ClassRecord{},
		exposures: map[string][]model.HazardExposure{},
	}
}

func (f *fakeStore) LoadUnits(context.Context) ([]model.Barangay, error) {
	return f.units, f.loadErr
}

func (f *fakeStore) LoadScoringInputs(context.Context) ([]model.ScoringInput, error) {
	return f.inputs, f.loadErr
}

func (f *fakeStore) ReplaceClassRecords(_ context.Context, h model.HazardType, p model.Period, recs []model.ClassRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classRecs[string(h)+"/"+string(p)] = recs
	return int64(len(recs)), nil
}

func (f *fakeStore) ReplaceExposures(_ context.Context, h model.HazardType, source string, es []model.HazardExposure) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposures[string(h)+"/"+source] = es
	return int64(len(es)), nil
}

func (f *fakeStore) UpsertScores(_ context.Context, scores []model.ResilienceScore) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, scores)
	return int64(len(scores)), nil
}

func (f *fakeStore) RecordRun(_ context.Context, r *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *r)
	return nil
}

func (f *fakeStore) ListBarangays(_ context.Context, flt store.BarangayFilter) ([]model.BarangayListItem, error) {
	var out []model.BarangayListItem
	for _, b := range f.listed {
		if flt.RiskLevel != "" && b.RiskLevel != string(flt.RiskLevel) {
			continue
		}
		out = append(out, b)
	}
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeStore) GetBarangay(_ context.Context, id int64) (*model.BarangayDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListMunicipalities(context.Context, store.MunicipalityFilter) ([]model.MunicipalitySummary, error) {
	return f.munis, nil
}

func (f *fakeStore) MunicipalityRollup(_ context.Context, id int64) (*model.MunicipalityRollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rollups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

// lastRun returns the final record of the most recent run.
func (f *fakeStore) lastRun() model.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[len(f.runs)-1]
}

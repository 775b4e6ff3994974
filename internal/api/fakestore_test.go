package api

import (
	"context"
	"sync"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/store"
)

// fakeStore serves canned rows and records the filters it was given.
// Methods the API never calls panic through the embedded interface.
type fakeStore struct {
	store.Store

	mu sync.Mutex

	pingErr   error
	munis     []model.MunicipalitySummary
	muni      map[int64]*model.Municipality
	barangays []model.BarangayListItem
	details   map[int64]*model.BarangayDetail
	classRecs map[model.HazardType][]model.ClassRecord
	exposures []model.HazardExposure
	air       []model.AirQuality
	cyclones  []model.CycloneTrack
	scores    []model.ScoreListItem
	stats     *model.Statistics
	rollups   map[int64]*model.MunicipalityRollup

	muniFilter     store.MunicipalityFilter
	barangayFilter store.BarangayFilter
	exposureFilter store.ExposureFilter
	airFilter      store.AirQualityFilter
	cycloneFilter  store.CycloneFilter
	scoreFilter    store.ScoreFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		muni:      map[int64]*model.Municipality{},
		details:   map[int64]*model.BarangayDetail{},
		classRecs: map[model.HazardType][]model.ClassRecord{},
		rollups:   map[int64]*model.MunicipalityRollup{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListMunicipalities(_ context.Context, mf store.MunicipalityFilter) ([]model.MunicipalitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muniFilter = mf
	return f.munis, nil
}

func (f *fakeStore) GetMunicipality(_ context.Context, id int64) (*model.Municipality, error) {
	m, ok := f.muni[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) ListBarangays(_ context.Context, bf store.BarangayFilter) ([]model.BarangayListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barangayFilter = bf
	return f.barangays, nil
}

func (f *fakeStore) GetBarangay(_ context.Context, id int64) (*model.BarangayDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListClassRecords(_ context.Context, h model.HazardType) ([]model.ClassRecord, error) {
	return f.classRecs[h], nil
}

func (f *fakeStore) ListExposures(_ context.Context, ef store.ExposureFilter) ([]model.HazardExposure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposureFilter = ef
	return f.exposures, nil
}

func (f *fakeStore) ListAirQuality(_ context.Context, af store.AirQualityFilter) ([]model.AirQuality, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.airFilter = af
	return f.air, nil
}

func (f *fakeStore) ListCycloneTracks(_ context.Context, cf store.CycloneFilter) ([]model.CycloneTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycloneFilter = cf
	return f.cyclones, nil
}

func (f *fakeStore) ListScores(_ context.Context, sf store.ScoreFilter) ([]model.ScoreListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreFilter = sf
	return f.scores, nil
}

func (f *fakeStore) Statistics(context.Context) (*model.Statistics, error) {
	if f.stats == nil {
		return &model.Statistics{}, nil
	}
	return f.stats, nil
}

func (f *fakeStore) MunicipalityRollup(_ context.Context, id int64) (*model.MunicipalityRollup, error) {
	r, ok := f.rollups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

// tileStore adds tile rendering to fakeStore.
type tileStore struct {
	*fakeStore
	calls int
	data  []byte
}

func (t *tileStore) Tile(_ context.Context, _ string, _, _, _ int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.data, nil
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/observability"
	"github.com/negros-cram/brrs/internal/overlay"
	"github.com/negros-cram/brrs/internal/scoring"
	"github.com/negros-cram/brrs/internal/shapefile/shapefiletest"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func squareMP(t *testing.T, minX, minY, size float64) *geom.MultiPolygon {
	t.Helper()
	ring := []float64{minX, minY, minX + size, minY, minX + size, minY + size, minX, minY + size, minX, minY}
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, ring)))
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	require.NoError(t, mp.Push(poly))
	return mp
}

// floodLayer writes one high-class zone covering the lower-left quarter of
// the square [0,10]x[0,10].
func floodLayer(t *testing.T) string {
	t.Helper()
	return shapefiletest.Write(t, t.TempDir(), "flood_100yr", []string{"OBJECTID", "Var"}, []shapefiletest.Record{
		{Rings: [][][2]float64{shapefiletest.Square(0, 0, 5)}, Attrs: map[string]string{"OBJECTID": "1", "Var": "3"}},
	})
}

func unitsFixture(t *testing.T) []model.Barangay {
	return []model.Barangay{
		{ID: 1, Name: "Tinago", Municipality: "Dumaguete", Geometry: squareMP(t, 0, 0, 10)},
		{ID: 2, Name: "Malaunay", Municipality: "Valencia", Geometry: squareMP(t, 100, 100, 10)},
		{ID: 3, Name: "Poblacion", Municipality: "Zamboanguita"},
	}
}

func newRunner(st *fakeStore, opts ...Option) *Runner {
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	return New(st, overlay.New(4326), opts...)
}

func TestOverlay_WritesClassRecords(t *testing.T) {
	st := newFakeStore()
	st.units = unitsFixture(t)

	out, err := newRunner(st).Overlay(context.Background(), LayerSpec{
		Path:   floodLayer(t),
		Hazard: model.HazardFlood,
		Period: "100",
	})
	require.NoError(t, err)

	recs := st.classRecs["flood/100yr"]
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].BarangayID)
	assert.Equal(t, model.PeriodFlood100, recs[0].Period)
	assert.InDelta(t, 25.0, recs[0].Percentages.High, 1e-6)
	assert.Zero(t, recs[0].Percentages.Low)
	assert.Equal(t, testNow, recs[0].UpdatedAt)

	assert.Equal(t, 1, out.Report.Processed)
	assert.Equal(t, 1, out.Report.Skipped)
	assert.Contains(t, out.Report.Named[0], "Poblacion (Zamboanguita)")
	assert.Equal(t, 1, out.NoCoverage)
	assert.Equal(t, 1, out.Layer.Kept)

	require.Len(t, st.runs, 2)
	assert.Equal(t, model.RunStatusRunning, st.runs[0].Status)
	final := st.lastRun()
	assert.Equal(t, st.runs[0].ID, final.ID)
	assert.Equal(t, model.RunKindOverlay, final.Kind)
	assert.Equal(t, model.RunStatusComplete, final.Status)
	assert.Equal(t, 1, final.Processed)
	require.NotNil(t, final.FinishedAt)
}

func TestOverlay_RejectsMissingPeriod(t *testing.T) {
	st := newFakeStore()
	st.units = unitsFixture(t)

	out, err := newRunner(st).Overlay(context.Background(), LayerSpec{Path: floodLayer(t), Hazard: model.HazardFlood})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return period")
	assert.Empty(t, st.classRecs)
	assert.Equal(t, model.RunStatusFailed, out.Run.Status)
	assert.Equal(t, model.RunStatusFailed, st.lastRun().Status)
}

func TestOverlay_FrameMismatchAborts(t *testing.T) {
	st := newFakeStore()
	st.units = unitsFixture(t)

	r := New(st, overlay.New(32651), WithClock(clockwork.NewFakeClockAt(testNow)))
	_, err := r.Overlay(context.Background(), LayerSpec{Path: floodLayer(t), Hazard: model.HazardFlood, Period: "5yr"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, overlay.ErrFrameMismatch))
	assert.Empty(t, st.classRecs)
}

func TestOverlay_NoUnits(t *testing.T) {
	st := newFakeStore()

	_, err := newRunner(st).Overlay(context.Background(), LayerSpec{Path: floodLayer(t), Hazard: model.HazardFlood, Period: "25yr"})
	assert.True(t, errors.Is(err, ErrNoUnits))
}

func TestExposure_AssignsMaxClass(t *testing.T) {
	st := newFakeStore()
	st.units = unitsFixture(t)

	out, err := newRunner(st).Exposure(context.Background(), LayerSpec{Path: floodLayer(t), Hazard: model.HazardLandslide})
	require.NoError(t, err)

	es := st.exposures["landslide/"+model.SourceLDRRMD]
	require.Len(t, es, 1)
	assert.Equal(t, int64(1), es[0].BarangayID)
	assert.Equal(t, "High", es[0].Susceptibility)
	assert.Equal(t, 3, es[0].Score)
	require.NotNil(t, es[0].AssessedDate)
	assert.Equal(t, testNow, *es[0].AssessedDate)
	assert.Equal(t, model.RunKindExposure, out.Run.Kind)
	assert.Equal(t, 1, out.NoCoverage)
}

func scoringInputs() []model.ScoringInput {
	pop, hh := 12000, 300
	area, poverty := 50.0, 22.5
	return []model.ScoringInput{
		{Barangay: model.Barangay{ID: 9, Name: "Bantayan", IsCoastal: true, Population: &pop, TotalArea: &area}},
		{Barangay: model.Barangay{ID: 2, Name: "Tinago", Households: &hh, PovertyIncidence: &poverty}},
		{
			Barangay:  model.Barangay{ID: 5, Name: "Looc"},
			Exposures: map[model.HazardType]model.HazardExposure{model.HazardLandslide: {Hazard: model.HazardLandslide, Score: 4}},
		},
	}
}

func TestCalculate_SortedBulkWrite(t *testing.T) {
	st := newFakeStore()
	st.inputs = scoringInputs()

	out, err := newRunner(st).Calculate(context.Background())
	require.NoError(t, err)
	require.Len(t, st.scores, 1)

	scores := st.scores[0]
	require.Len(t, scores, 3)
	assert.Equal(t, []int64{2, 5, 9}, []int64{scores[0].BarangayID, scores[1].BarangayID, scores[2].BarangayID})
	for _, s := range scores {
		var in model.ScoringInput
		for _, i := range st.inputs {
			if i.Barangay.ID == s.BarangayID {
				in = i
			}
		}
		assert.Equal(t, scoring.Score(scoring.DefaultWeights(), in, testNow), s)
	}
	assert.Equal(t, 3, out.Report.Processed)
	assert.Equal(t, model.RunKindScore, out.Run.Kind)
}

func TestCalculate_SameResultForAnyWorkerCount(t *testing.T) {
	run := func(workers int) []model.ResilienceScore {
		st := newFakeStore()
		st.inputs = scoringInputs()
		_, err := newRunner(st, WithWorkers(workers)).Calculate(context.Background())
		require.NoError(t, err)
		return st.scores[0]
	}

	one := run(1)
	assert.Equal(t, one, run(8))
	assert.Equal(t, one, run(1), "rerun is idempotent")
}

func TestCalculate_NoUnits(t *testing.T) {
	st := newFakeStore()
	m := observability.NewMetricsForTesting()

	out, err := newRunner(st, WithMetrics(m)).Calculate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUnits))
	assert.Equal(t, model.RunStatusFailed, out.Run.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("score", "failed")))
	assert.Empty(t, st.scores)
}

func TestCalculate_StoreError(t *testing.T) {
	st := newFakeStore()
	st.loadErr = errors.New("connection refused")

	_, err := newRunner(st).Calculate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load scoring inputs")
}

func TestTrack_RecordsMetrics(t *testing.T) {
	st := newFakeStore()
	m := observability.NewMetricsForTesting()
	r := newRunner(st, WithMetrics(m))

	out, err := r.Track(context.Background(), model.RunKindLoad, "barangays", func(context.Context) (*ingest.Report, error) {
		rep := &ingest.Report{Processed: 4}
		rep.Skip("Unnamed")
		return rep, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "barangays", out.Run.Subject)
	assert.Equal(t, 1, out.Run.Skipped)
	assert.NotEmpty(t, out.Run.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("load", "complete")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.UnitsProcessed.WithLabelValues("load", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsProcessed.WithLabelValues("load", "skipped")))
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := forEach(ctx, 1, 10, func(int) { calls++ })
	require.Error(t, err)
	assert.Zero(t, calls)
}

package hazard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/shapefile"
	"github.com/negros-cram/brrs/internal/shapefile/shapefiletest"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseClass_Synonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Class
	}{
		{"Low", model.ClassLow},
		{"L", model.ClassLow},
		{"DF", model.ClassLow},
		{"lf", model.ClassLow},
		{"Moderate", model.ClassMedium},
		{"MF", model.ClassMedium},
		{"HIGH", model.ClassHigh},
		{"hf", model.ClassHigh},
		{"Very  High", model.ClassVeryHigh},
		{" VHF ", model.ClassVeryHigh},
		{"very_high", model.ClassVeryHigh},
		{"VF", model.ClassVeryHigh},
		{"1", model.ClassLow},
		{"2.0", model.ClassMedium},
		{"3", model.ClassHigh},
		{"4", model.ClassVeryHigh},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseClass(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClass_Unrecognized(t *testing.T) {
	for _, raw := range []string{"", "  ", "0", "5", "2.5", "extreme", "n/a"} {
		_, ok := ParseClass(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseLabel_FreeText(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Class
	}{
		{"Very High Susceptibility", model.ClassVeryHigh},
		{"HIGH_SUSCEPTIBILITY", model.ClassHigh},
		{"Moderate liquefaction potential", model.ClassMedium},
		{"low potential", model.ClassLow},
		{"VH", model.ClassVeryHigh},
	}
	for _, tt := range tests {
		got, ok := ParseLabel(tt.raw)
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, ok := ParseLabel("not susceptible")
	assert.False(t, ok)
}

func TestClassField(t *testing.T) {
	got, err := ClassField([]string{"OBJECTID", "AREA", "Var"}, "")
	require.NoError(t, err)
	assert.Equal(t, "VAR", got)

	got, err = ClassField([]string{"OBJECTID", "LIQUEFACTI", "GRIDCODE"}, "")
	require.NoError(t, err)
	assert.Equal(t, "LIQUEFACTI", got, "first match in field order wins")

	got, err = ClassField([]string{"OBJECTID", "FLD_SUSCEP"}, "")
	require.NoError(t, err)
	assert.Equal(t, "FLD_SUSCEP", got)

	got, err = ClassField([]string{"VAR", "MYCLASS"}, "myclass")
	require.NoError(t, err)
	assert.Equal(t, "MYCLASS", got)

	_, err = ClassField([]string{"OBJECTID", "AREA"}, "")
	assert.True(t, errors.Is(err, ErrNoClassField))

	_, err = ClassField([]string{"VAR"}, "MISSING")
	assert.True(t, errors.Is(err, ErrNoClassField))
}

func TestFromFile_DropsAndCounts(t *testing.T) {
	square := func(x float64) [][][2]float64 {
		return [][][2]float64{shapefiletest.Square(x, 0, 1)}
	}
	dir := t.TempDir()
	path := shapefiletest.Write(t, dir, "flood_100yr", []string{"OBJECTID", "Var"}, []shapefiletest.Record{
		{Rings: square(0), Attrs: map[string]string{"OBJECTID": "1", "Var": "3"}},
		{Rings: square(2), Attrs: map[string]string{"OBJECTID": "2", "Var": "1"}},
		{Rings: square(4), Attrs: map[string]string{"OBJECTID": "3", "Var": "9"}},
		{Rings: square(6), Attrs: map[string]string{"OBJECTID": "4"}},
		{Rings: square(8), Attrs: map[string]string{"OBJECTID": "5", "Var": "9"}},
	})

	f, err := shapefile.Read(path, 4326)
	require.NoError(t, err)

	layer, err := FromFile(f, Options{Hazard: model.HazardFlood, Period: model.PeriodFlood100})
	require.NoError(t, err)

	assert.Equal(t, "VAR", layer.Field)
	assert.Equal(t, 4326, layer.SRID)
	require.Len(t, layer.Zones, 2)
	assert.Equal(t, model.ClassHigh, layer.Zones[0].Class)
	assert.Equal(t, model.ClassLow, layer.Zones[1].Class)

	assert.Equal(t, 5, layer.Stats.Records)
	assert.Equal(t, 2, layer.Stats.Kept)
	assert.Equal(t, 3, layer.Stats.DroppedTotal())
	assert.Equal(t, []string{"9", ""}, layer.Stats.DroppedValues())
}

func TestLoad_NoClassField(t *testing.T) {
	dir := t.TempDir()
	path := shapefiletest.Write(t, dir, "zones", []string{"OBJECTID", "AREA"}, []shapefiletest.Record{
		{Rings: [][][2]float64{shapefiletest.Square(0, 0, 1)}, Attrs: map[string]string{"OBJECTID": "1"}},
	})

	_, err := Load(path, Options{Hazard: model.HazardLandslide})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoClassField))
}

func TestLoad_LiquefactionLabels(t *testing.T) {
	dir := t.TempDir()
	path := shapefiletest.Write(t, dir, "liq", []string{"LIQUEFACTI"}, []shapefiletest.Record{
		{Rings: [][][2]float64{shapefiletest.Square(0, 0, 1)}, Attrs: map[string]string{"LIQUEFACTI": "High Potential"}},
		{Rings: [][][2]float64{shapefiletest.Square(2, 0, 1)}, Attrs: map[string]string{"LIQUEFACTI": "Very High Potential"}},
	})

	layer, err := Load(path, Options{Hazard: model.HazardLiquefaction, SRID: 4326})
	require.NoError(t, err)
	require.Len(t, layer.Zones, 2)
	assert.Equal(t, model.ClassHigh, layer.Zones[0].Class)
	assert.Equal(t, model.ClassVeryHigh, layer.Zones[1].Class)
}

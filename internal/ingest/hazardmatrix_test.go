package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/negros-cram/brrs/internal/fetcher"
	"github.com/negros-cram/brrs/internal/model"
)

var matrixRows = [][]string{
	{"LDRRMD Hazard Matrix"},
	{"Municipality", "Flooding", "Rain-induced Land Slide", "Storm Surge", "Strong Wind", "Drought"},
	{"-", "-", "-", "-", "-", "-"},
	{"Bais City", "P", "", "p", "", ""},
	{"Sibulan", "", "", "", "", ""},
	{"Zamboanguita", "", "P", "", "P", "P"},
	{"", "P"},
}

func TestParseHazardMatrix(t *testing.T) {
	cells, rep := ParseHazardMatrix(matrixRows)
	assert.Equal(t, []MatrixCell{
		{Municipality: "Bais City", Hazard: model.HazardFlood},
		{Municipality: "Bais City", Hazard: model.HazardStormSurge},
		{Municipality: "Zamboanguita", Hazard: model.HazardLandslide},
		{Municipality: "Zamboanguita", Hazard: model.HazardCyclone},
		{Municipality: "Zamboanguita", Hazard: model.HazardFlood},
	}, cells)
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, []string{"Sibulan"}, rep.Named)
}

func TestParseHazardMatrix_Short(t *testing.T) {
	cells, rep := ParseHazardMatrix([][]string{{"title"}})
	assert.Empty(t, cells)
	assert.Equal(t, 0, rep.Processed)
}

func TestMatrixHazard(t *testing.T) {
	assert.Equal(t, model.HazardLandslide, matrixHazard("LANDSLIDE"))
	assert.Equal(t, model.HazardCyclone, matrixHazard("Typhoon"))
	assert.Equal(t, model.HazardStormSurge, matrixHazard("storm surge"))
	assert.Equal(t, model.HazardFlood, matrixHazard("Earthquake"))
}

func TestExpandHazardMatrix(t *testing.T) {
	cells := []MatrixCell{
		{Municipality: "Bais City", Hazard: model.HazardFlood},
		{Municipality: "BAIS", Hazard: model.HazardFlood},
		{Municipality: "Zamboanguita", Hazard: model.HazardFlood},
		{Municipality: "Zamboanguita", Hazard: model.HazardCyclone},
		{Municipality: "Nowhere", Hazard: model.HazardFlood},
	}
	bs := []model.BarangayListItem{
		{ID: 2, Name: "B", Municipality: "City of Bais"},
		{ID: 1, Name: "A", Municipality: "Bais City"},
		{ID: 3, Name: "C", Municipality: "Zamboanguita"},
	}

	out, rep := ExpandHazardMatrix(cells, bs)
	require.Len(t, out[model.HazardFlood], 3)
	assert.Equal(t, []int64{1, 2, 3}, exposureIDs(out[model.HazardFlood]))
	assert.Equal(t, []int64{3}, exposureIDs(out[model.HazardCyclone]))

	e := out[model.HazardFlood][0]
	assert.Equal(t, "Present", e.Susceptibility)
	assert.Equal(t, 2, e.Score)
	assert.Equal(t, model.SourceLDRRMDMunicipality, e.Source)
	assert.Equal(t, 4, rep.Processed)
	assert.Equal(t, []string{"Nowhere"}, rep.Named)
}

func exposureIDs(es []model.HazardExposure) []int64 {
	ids := make([]int64, len(es))
	for i, e := range es {
		ids[i] = e.BarangayID
	}
	return ids
}

func TestReadHazardMatrix(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Matrix")
	require.NoError(t, err)
	for _, r := range matrixRows[:4] {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "matrix.xlsx")
	require.NoError(t, f.Save(path))

	cells, rep, err := ReadHazardMatrix(path, fetcher.XLSXOptions{})
	require.NoError(t, err)
	assert.Len(t, cells, 2)
	assert.Equal(t, 1, rep.Processed)

	_, _, err = ReadHazardMatrix(filepath.Join(t.TempDir(), "missing.xlsx"), fetcher.XLSXOptions{})
	assert.Error(t, err)
}

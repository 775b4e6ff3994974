package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/negros-cram/brrs/internal/model"
)

func TestNameKey(t *testing.T) {
	assert.Equal(t, "STA. NINO", NameKey("  Sta.   Niño "))
	assert.Equal(t, "AGAN-AN", NameKey("Agan-an"))
	assert.Equal(t, "", NameKey("   "))
}

func TestMunicipalityKey(t *testing.T) {
	for _, in := range []string{"CITY OF BAIS (Capital)", "Bais City", "bais", "City of Bais"} {
		assert.Equal(t, "BAIS", MunicipalityKey(in), in)
	}
	assert.Equal(t, "DUMAGUETE", MunicipalityKey("Dumaguete City"))
	assert.Equal(t, "STA. CATALINA", MunicipalityKey("Sta. Catalina"))
}

func TestIndex_ExactBeforeContains(t *testing.T) {
	var idx Index
	idx.Add("SAN JOSE", 1)
	idx.Add("SAN JOSE EXTENSION", 2)
	idx.Add("CALINDAGAN (POB.)", 4)
	idx.Add("", 3)
	assert.Equal(t, 3, idx.Len())

	id, ok := idx.Match("SAN JOSE EXTENSION")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	id, ok = idx.Match("SAN JOSE")
	assert.True(t, ok, "exact match wins over longer keys")
	assert.Equal(t, int64(1), id)

	id, ok = idx.Match("CALINDAGAN")
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	_, ok = idx.Match("")
	assert.False(t, ok)
	_, ok = idx.Match("TAVERA")
	assert.False(t, ok)
}

func TestIndex_ContainsIsOneDirectional(t *testing.T) {
	var idx Index
	idx.Add("JOSE", 1)

	_, ok := idx.Match("SAN JOSE")
	assert.False(t, ok, "a stored key inside the query does not match")
}

func TestIndex_AmbiguousMatchesNothing(t *testing.T) {
	var idx Index
	idx.Add("SAN JOSE", 1)
	idx.Add("SAN JOSE EXTENSION", 2)
	idx.Add("POBLACION", 5)
	idx.Add("POBLACION", 6)

	_, ok := idx.Match("JOSE")
	assert.False(t, ok)
	_, ok = idx.Match("POBLACION")
	assert.False(t, ok)
}

func TestLink(t *testing.T) {
	barangays := []model.BarangayListItem{
		{ID: 10, Name: "Bantayan", Municipality: "Dumaguete City"},
		{ID: 11, Name: "Tavera", Municipality: "CITY OF BAIS"},
		{ID: 12, Name: "Lost", Municipality: "Unknown Town"},
	}
	munis := []model.MunicipalitySummary{
		{ID: 2, Name: "Dumaguete"},
		{ID: 1, Name: "Bais City"},
	}

	links, rep := Link(barangays, munis)
	assert.Equal(t, map[int64]int64{10: 2, 11: 1}, links)
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, []string{"Lost (Unknown Town)"}, rep.Named)
}

func TestReport_CapsNames(t *testing.T) {
	rep := &Report{}
	for i := 0; i < MaxNamed+5; i++ {
		rep.Skip("x")
	}
	assert.Equal(t, MaxNamed+5, rep.Skipped)
	assert.Len(t, rep.Named, MaxNamed)
	assert.Equal(t, "processed=0 skipped=15 errored=0", rep.String())
}

func TestReport_Merge(t *testing.T) {
	a := &Report{Processed: 3}
	a.Skip("Bagacay")
	b := &Report{Processed: 2}
	b.Fail("row 4", errors.New("bad month"))

	a.Merge(b)
	a.Merge(nil)
	assert.Equal(t, 5, a.Processed)
	assert.Equal(t, 1, a.Skipped)
	assert.Equal(t, 1, a.Errored)
	assert.Equal(t, []string{"Bagacay", "row 4: bad month"}, a.Named)
}

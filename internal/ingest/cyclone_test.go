package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tracksJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"AGATON","category":"TS","begin":0,"end":5},
  "geometry":{"type":"LineString","coordinates":[[125,12],[124.2,10.8]]}},
 {"type":"Feature","properties":{"name":"KRISTINE","cat":"STS","year":2024},
  "geometry":{"type":"MultiLineString","coordinates":[[[130,15],[124,11]],[[124,11],[123,9.5]]]}},
 {"type":"Feature","properties":{"name":"POINTY"},
  "geometry":{"type":"Point","coordinates":[123,9]}},
 {"type":"Feature","properties":{"year":"2022"},
  "geometry":{"type":"LineString","coordinates":[[124.0,11.0],[126,12]]}}
]}`

func TestReadCycloneTracks(t *testing.T) {
	ts, rep, err := ReadCycloneTracks(strings.NewReader(tracksJSON), CycloneOptions{Year: 2023})
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, 3, rep.Processed)
	assert.Equal(t, 1, rep.Errored)

	agaton := ts[0]
	assert.Equal(t, "AGATON", agaton.Name)
	assert.Equal(t, "TS", agaton.Category)
	assert.Equal(t, 5, agaton.EndIndex)
	assert.Equal(t, 2023, agaton.Year)
	assert.False(t, agaton.Affected)
	assert.Equal(t, 4326, agaton.Track.SRID())

	kristine := ts[1]
	assert.Equal(t, "STS", kristine.Category)
	assert.Equal(t, 2024, kristine.Year)
	assert.Equal(t, 3, kristine.Track.NumCoords())
	assert.True(t, kristine.Affected)

	unnamed := ts[2]
	assert.Equal(t, "Unknown", unnamed.Name)
	assert.Equal(t, 2022, unnamed.Year)
	assert.True(t, unnamed.Affected, "touching the buffered box counts")
}

func TestReadCycloneTracks_BadJSON(t *testing.T) {
	_, _, err := ReadCycloneTracks(strings.NewReader("{"), CycloneOptions{})
	assert.Error(t, err)
}

func TestBoxTouches(t *testing.T) {
	assert.True(t, Box{MinX: 123, MinY: 9.5, MaxX: 123.1, MaxY: 9.6}.Touches(ProvinceBox, 0))
	assert.False(t, Box{MinX: 124.01, MinY: 9, MaxX: 125, MaxY: 10}.Touches(ProvinceBox, 0.5))
	assert.True(t, Box{MinX: 124.0, MinY: 9, MaxX: 125, MaxY: 10}.Touches(ProvinceBox, 0.5))
}

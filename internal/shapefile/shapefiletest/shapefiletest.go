// Package shapefiletest writes small polygon shapefiles for tests.
package shapefiletest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// Record is one polygon with its string attributes. Rings are given as
// closed or open point lists; the first ring should be clockwise.
type Record struct {
	Rings [][][2]float64
	Attrs map[string]string
}

// Square returns a clockwise axis-aligned square ring.
func Square(minX, minY, size float64) [][2]float64 {
	return [][2]float64{
		{minX, minY},
		{minX, minY + size},
		{minX + size, minY + size},
		{minX + size, minY},
		{minX, minY},
	}
}

// Rect returns a clockwise axis-aligned rectangle ring.
func Rect(minX, minY, maxX, maxY float64) [][2]float64 {
	return [][2]float64{
		{minX, minY},
		{minX, maxY},
		{maxX, maxY},
		{maxX, minY},
		{minX, minY},
	}
}

// Write creates dir/name.shp (with .shx and .dbf) holding the records and
// returns the .shp path. Every field is a 32-byte string column.
func Write(t *testing.T, dir, name string, fields []string, records []Record) string {
	t.Helper()

	path := filepath.Join(dir, name+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	dbfFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		dbfFields[i] = shp.StringField(f, 32)
	}
	require.NoError(t, w.SetFields(dbfFields))

	for _, rec := range records {
		parts := make([][]shp.Point, len(rec.Rings))
		for i, ring := range rec.Rings {
			for _, p := range ring {
				parts[i] = append(parts[i], shp.Point{X: p[0], Y: p[1]})
			}
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&poly)
		for i, f := range fields {
			if v, ok := rec.Attrs[f]; ok {
				require.NoError(t, w.WriteAttribute(int(row), i, v))
			}
		}
	}
	w.Close()

	// go-shp v0.1.1 names the table "<base>dbf" without the dot.
	base := path[:len(path)-len(".shp")]
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

// Zip packs the .shp, .shx and .dbf siblings of shpPath into dir/name.zip.
func Zip(t *testing.T, shpPath, dir, name string) string {
	t.Helper()

	zipPath := filepath.Join(dir, name+".zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	base := shpPath[:len(shpPath)-len(".shp")]
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(base + ext)
		require.NoError(t, err)
		dst, err := zw.Create(filepath.Base(base + ext))
		require.NoError(t, err)
		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	return zipPath
}

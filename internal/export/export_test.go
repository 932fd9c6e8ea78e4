package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

func testLogger(buf *bytes.Buffer) logger.Logger {
	return logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
}

// stack builds a (time, y, x) classified stack whose slice i is filled
// with value i.
func stack(t *testing.T, times raster.Coord, attrs raster.Attrs) *raster.DataArray {
	t.Helper()
	n := times.Len()
	data := raster.NewArray(n, 2, 3)
	for i := range n {
		for j := range 6 {
			data.Values[i*6+j] = int32(i % 3)
		}
	}
	da, err := raster.NewDataArray("woody_class",
		[]string{raster.DimTime, raster.DimY, raster.DimX}, data,
		[]raster.Coord{
			times,
			raster.FloatCoord(raster.DimY, []float64{-3_000_050, -3_000_150}),
			raster.FloatCoord(raster.DimX, []float64{1_000_050, 1_000_150, 1_000_250}),
		}, attrs)
	require.NoError(t, err)
	return da
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ACT_woody_2019.tif", FileName("ACT", 2019))
	assert.Equal(t, "NSW_woody_0999.tif", FileName("NSW", 999))
	assert.Less(t, FileName("NSW", 999), FileName("NSW", 2000))
}

func TestSelectYear(t *testing.T) {
	times := raster.TimeCoord(raster.DimTime, raster.YearLabels(2018, 2020))
	i, m, ok := SelectYear(times, 2019)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, MatchExact, m)

	midYear := raster.TimeCoord(raster.DimTime, []time.Time{
		time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	i, m, ok = SelectYear(midYear, 2019)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, MatchContains, m)

	strs := raster.Coord{Dim: raster.DimTime, Strings: []string{"FY2017-2018", "FY2018-2019"}}
	i, m, ok = SelectYear(strs, 2019)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, MatchContains, m)

	// A two-digit suffix does not contain the year text.
	short := raster.Coord{Dim: raster.DimTime, Strings: []string{"FY2017-18", "FY2018-19"}}
	i, m, ok = SelectYear(short, 2019)
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, MatchFallback, m)

	i, m, ok = SelectYear(times, 1990)
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, MatchFallback, m)
	assert.True(t, m.Substituted())

	_, _, ok = SelectYear(raster.Coord{Dim: raster.DimTime}, 2019)
	assert.False(t, ok)
}

func TestExportExactYear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ACT", FileName("ACT", 2019))
	da := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2018, 2020)),
		raster.Attrs{raster.AttrCRS: "EPSG:3577", raster.AttrClassification: "woody_non_woody"})

	var buf bytes.Buffer
	res, err := Export(da, 2019, path, WithState("ACT"), WithLogger(testLogger(&buf)))
	require.NoError(t, err)
	assert.Equal(t, MatchExact, res.Match)
	assert.False(t, res.Substituted)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, 3, res.Width)
	assert.Equal(t, 2, res.Height)

	r, err := geotiff.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1, 1, 1, 1, 1}, r.Data.Values)
	assert.Equal(t, 3577, r.Meta.EPSG)
	assert.False(t, r.Meta.Geographic)
	assert.Equal(t, "2019", r.Meta.BandDescription)
	assert.Equal(t, "woody_non_woody", r.Meta.Items["classification"])
	nd, ok := r.Nodata()
	require.True(t, ok)
	assert.Equal(t, int32(DefaultNodata), nd)

	assert.InDelta(t, 1_000_000, r.Meta.Transform.C, 1e-6)
	assert.InDelta(t, -3_000_000, r.Meta.Transform.F, 1e-6)
	assert.InDelta(t, 100, r.Meta.Transform.A, 1e-6)
	assert.InDelta(t, -100, r.Meta.Transform.E, 1e-6)

	assert.Contains(t, buf.String(), "exported yearly raster")
	assert.Contains(t, buf.String(), "ACT")
}

func TestExportMissingYearSubstitutes(t *testing.T) {
	da := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2018, 2020)), nil)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.tif")
	res, err := Export(da, 2005, path, WithLogger(testLogger(&buf)))
	require.NoError(t, err)
	assert.True(t, res.Substituted)
	assert.Equal(t, MatchFallback, res.Match)
	assert.Equal(t, 2018, res.RepresentedYear)
	assert.Contains(t, buf.String(), "requested year not found")

	r, err := geotiff.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2018", r.Meta.BandDescription)
	assert.Equal(t, "2005", r.Meta.Items["requested_year"])
	assert.Equal(t, 3577, r.Meta.EPSG, "missing CRS falls back to the default")
}

func TestExportWithoutTimeLabels(t *testing.T) {
	data := raster.NewArray(2, 1, 2)
	copy(data.Values, []int32{1, 2, 2, 1})
	da, err := raster.NewDataArray("woody_class",
		[]string{raster.DimTime, raster.DimY, raster.DimX}, data, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.tif")
	res, err := Export(da, 2020, path, WithLogger(testLogger(&buf)))
	require.NoError(t, err)
	assert.True(t, res.Substituted)
	assert.Contains(t, buf.String(), "zero-origin transform")

	r, err := geotiff.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, r.Data.Values)
	assert.Equal(t, raster.Identity, r.Meta.Transform)
}

func TestExportTwoDimensional(t *testing.T) {
	data, err := raster.FromRows([][]int32{{0, 1}, {2, 1}})
	require.NoError(t, err)
	da, err := raster.NewDataArray("woody_class",
		[]string{raster.DimY, raster.DimX}, data,
		[]raster.Coord{
			raster.FloatCoord(raster.DimY, []float64{-35.1, -35.2}),
			raster.FloatCoord(raster.DimX, []float64{149.1, 149.2}),
		},
		raster.Attrs{raster.AttrCRS: "EPSG:4326", raster.AttrTime: "2021-01-01T00:00:00"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.tif")
	res, err := Export(da, 2021, path, WithCompression(geotiff.CompressionDeflate))
	require.NoError(t, err)
	assert.Equal(t, MatchContains, res.Match)

	r, err := geotiff.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4326, r.Meta.EPSG)
	assert.True(t, r.Meta.Geographic)
	assert.Equal(t, geotiff.CompressionDeflate, r.Meta.Compression)
}

func TestExportIsIdempotent(t *testing.T) {
	da := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2019, 2020)), nil)
	path := filepath.Join(t.TempDir(), "ACT_woody_2020.tif")

	// A partial file from an interrupted run.
	require.NoError(t, os.WriteFile(path, []byte("II*\x00truncated"), 0o644))

	_, err := Export(da, 2020, path)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Export(da, 2020, path)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	r, err := geotiff.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1, 1, 1, 1, 1}, r.Data.Values)
}

func TestExportValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")

	_, err := Export(nil, 2020, path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	da := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2020, 2020)), nil)
	_, err = Export(da, 2020, path, WithNodata(300))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	da.Data.Values[0] = 1000
	_, err = Export(da, 2020, path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.NoFileExists(t, path)

	empty, err := raster.NewDataArray("woody_class",
		[]string{raster.DimTime, raster.DimY, raster.DimX}, raster.NewArray(0, 2, 2), nil, nil)
	require.NoError(t, err)
	_, err = Export(empty, 2020, path)
	require.Error(t, err)

	bad := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2020, 2020)),
		raster.Attrs{raster.AttrCRS: "EPSG:999999"})
	_, err = Export(bad, 2020, path)
	assert.Error(t, err)
}

func TestExportUnwritableDestination(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	da := stack(t, raster.TimeCoord(raster.DimTime, raster.YearLabels(2020, 2020)), nil)

	_, err := Export(da, 2020, filepath.Join(blocker, "sub", "out.tif"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

package index

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

const product = "ga_ls_landcover_class_cyear_2"

func openStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC)
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "db", "index.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, &buf
}

// writeTile writes a 4x4 Albers tile with its north-west corner at (x, y).
func writeTile(t *testing.T, path string, x, y float64) {
	t.Helper()
	pix := make([]uint8, 16)
	for i := range pix {
		pix[i] = uint8(i % 7)
	}
	md := geotiff.Metadata{
		EPSG:      3577,
		Transform: raster.FromBounds(x, y-100, x+100, y, 4, 4),
		HasNodata: true,
		Nodata:    255,
	}
	require.NoError(t, geotiff.WriteFile(path, geotiff.Band{Width: 4, Height: 4, Pix: pix}, md))
}

// Canberra and Perth in Australian Albers.
var (
	canberra = orb.Point{1_550_000, -3_950_000}
	perth    = orb.Point{-1_480_000, -3_580_000}
)

func TestYearFromName(t *testing.T) {
	tests := map[string]struct {
		year int
		ok   bool
	}{
		"ACT_woody_2019.tif":          {2019, true},
		"/data/2021/tile.tif":         {0, false},
		"landcover_1988_x12_y34.tiff": {1988, true},
		"tile_120190.tif":             {0, false},
		"2020.tif":                    {2020, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			y, ok := YearFromName(name)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.year, y)
		})
	}
}

func TestScanAndQuery(t *testing.T) {
	s, buf := openStore(t)
	dir := t.TempDir()
	writeTile(t, filepath.Join(dir, "act_2019.tif"), canberra[0], canberra[1])
	writeTile(t, filepath.Join(dir, "act_2020.tif"), canberra[0], canberra[1])
	writeTile(t, filepath.Join(dir, "sub", "wa_2020.tif"), perth[0], perth[1])
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken_2020.tif"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	res, err := s.Scan(t.Context(), dir, product, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, buf.String(), "skipping file")

	all, err := s.List(t.Context(), product)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "EPSG:3577", all[0].CRS)
	assert.Equal(t, 4, all[0].Width)
	assert.True(t, all[0].HasNodata)
	assert.InDelta(t, canberra[0], all[0].MinX, 1e-6)
	assert.InDelta(t, canberra[1], all[0].MaxY, 1e-6)
	assert.Positive(t, all[0].Size)

	act := orb.Bound{Min: orb.Point{148.5, -36}, Max: orb.Point{149.5, -35}}
	hits, err := s.Query(t.Context(), product, 2019, 2021, act)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 2019, hits[0].Year)
	assert.Equal(t, 2020, hits[1].Year)
	assert.True(t, act.Intersects(hits[0].LonLatBound()))

	hits, err = s.Query(t.Context(), product, 2020, 2020, act)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.Query(t.Context(), "other_product", 2019, 2021, act)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestScanIsIdempotent(t *testing.T) {
	s, _ := openStore(t)
	dir := t.TempDir()
	writeTile(t, filepath.Join(dir, "tile.tif"), canberra[0], canberra[1])

	for range 2 {
		res, err := s.Scan(t.Context(), dir, product, 2018)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Indexed)
	}
	all, err := s.List(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2018, all[0].Year)

	removed, err := s.Remove(t.Context(), all[0].Path)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Remove(t.Context(), all[0].Path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestScanMissingDirectory(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.Scan(t.Context(), filepath.Join(t.TempDir(), "absent"), product, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestRunHistory(t *testing.T) {
	s, _ := openStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, state := range []string{"nsw", "qld", "act"} {
		require.NoError(t, s.RecordRun(t.Context(), &Run{
			RunID:         "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			State:         state,
			StartYear:     2020,
			EndYear:       2022,
			Source:        "synthetic",
			Synthetic:     true,
			YearsExported: 3,
			FinalState:    "done",
			StartedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
	runs, err := s.Runs(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "act", runs[0].State)
	assert.Equal(t, "qld", runs[1].State)

	runs, err = s.Runs(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestOpenValidation(t *testing.T) {
	tests := map[string]Config{
		"unknown driver": {Driver: "postgres", Path: "x.db"},
		"sqlite no path": {Driver: "sqlite"},
		"mysql no dsn":   {Driver: "mysql"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}

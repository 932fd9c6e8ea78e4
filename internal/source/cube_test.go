package source

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/index"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// writeAOITile writes a tile covering albersAOI with every cell set to value.
func writeAOITile(t *testing.T, path string, value uint8) {
	t.Helper()
	pix := make([]uint8, 10*10)
	for i := range pix {
		pix[i] = value
	}
	require.NoError(t, geotiff.WriteFile(path, geotiff.Band{Width: 10, Height: 10, Pix: pix}, geotiff.Metadata{
		EPSG:      3577,
		Transform: raster.FromBounds(1_550_000, -3_951_000, 1_551_000, -3_950_000, 10, 10),
		HasNodata: true,
		Nodata:    255,
	}))
}

func openIndex(t *testing.T) *index.Store {
	t.Helper()
	var buf bytes.Buffer
	s, err := index.Open(index.Config{Path: filepath.Join(t.TempDir(), "index.db")}, testLogger(&buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCubeFetch(t *testing.T) {
	store := openIndex(t)
	dir := t.TempDir()
	writeAOITile(t, filepath.Join(dir, "act_2019.tif"), 4)
	writeAOITile(t, filepath.Join(dir, "act_2021.tif"), 5)
	res, err := store.Scan(t.Context(), dir, testRequest().ProductID, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.Indexed)

	// A row whose file has since disappeared.
	require.NoError(t, store.Upsert(t.Context(), &index.Dataset{
		Product: testRequest().ProductID,
		Year:    2020,
		Path:    filepath.Join(dir, "gone_2020.tif"),
		CRS:     "EPSG:3577",
		West:    148,
		South:   -36,
		East:    150,
		North:   -34,
	}))

	var buf bytes.Buffer
	c := NewCube(store, WithCubeLogger(testLogger(&buf)))
	ds, err := c.Fetch(t.Context(), testRequest())
	require.NoError(t, err)

	da := ds.First()
	require.NotNil(t, da)
	assert.Equal(t, []int{3, 10, 10}, da.Data.Shape)
	assert.Equal(t, "cube", da.Attrs.String(raster.AttrSource))

	want := []int32{4, DefaultNodata, 5}
	for i, v := range want {
		plane, err := da.Data.Plane(i)
		require.NoError(t, err)
		for _, got := range plane.Values {
			require.Equal(t, v, got, "plane %d", i)
		}
	}
	assert.Contains(t, buf.String(), "indexed tile unreadable")
	assert.Equal(t, []int{2020}, MissingYears(ds), "the unreadable year is reported as missing")
}

func TestCubeUnavailable(t *testing.T) {
	t.Run("no index", func(t *testing.T) {
		_, err := NewCube(nil).Fetch(t.Context(), testRequest())
		assert.True(t, errors.Is(err, ErrStrategyUnavailable))
	})

	t.Run("no intersecting tiles", func(t *testing.T) {
		store := openIndex(t)
		_, err := NewCube(store).Fetch(t.Context(), testRequest())
		assert.True(t, errors.Is(err, ErrStrategyUnavailable))
	})

	t.Run("every tile unreadable", func(t *testing.T) {
		store := openIndex(t)
		require.NoError(t, store.Upsert(t.Context(), &index.Dataset{
			Product: testRequest().ProductID,
			Year:    2019,
			Path:    filepath.Join(t.TempDir(), "missing.tif"),
			West:    148,
			South:   -36,
			East:    150,
			North:   -34,
		}))
		var buf bytes.Buffer
		_, err := NewCube(store, WithCubeLogger(testLogger(&buf))).Fetch(t.Context(), testRequest())
		assert.True(t, errors.Is(err, ErrStrategyUnavailable))
	})
}

func TestBuild(t *testing.T) {
	base := func() *conf.LandcoverSettings {
		return &conf.LandcoverSettings{
			ProductID: "ga_ls_landcover_class_cyear_2",
			STAC:      conf.STACSettings{Enabled: true, CatalogURL: catalogURL},
			Cube:      conf.CubeSettings{Enabled: true},
			Synthetic: conf.SyntheticSettings{Enabled: true, Seed: 7},
		}
	}
	var buf bytes.Buffer

	chain, err := Build(base(), Deps{Logger: testLogger(&buf)})
	require.NoError(t, err)
	assert.Equal(t, []string{"stac", "synthetic"}, chain.Strategies(), "cube needs an index")

	chain, err = Build(base(), Deps{Logger: testLogger(&buf), Index: openIndex(t)})
	require.NoError(t, err)
	assert.Equal(t, []string{"stac", "cube", "synthetic"}, chain.Strategies())

	l := base()
	l.STAC.CatalogURL = ""
	_, err = Build(l, Deps{Logger: testLogger(&buf)})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	l = base()
	l.STAC.Enabled = false
	l.Cube.Enabled = false
	chain, err = Build(l, Deps{Logger: testLogger(&buf)})
	require.NoError(t, err)
	res, err := chain.Fetch(t.Context(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Synthetic())
	assert.Equal(t, "synthetic", res.Strategy)
}

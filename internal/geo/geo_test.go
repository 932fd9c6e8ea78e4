package geo

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

const squareFC = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "test"},
     "geometry": {"type": "Polygon", "coordinates": [[[150,-34],[151,-34],[151,-33],[150,-33],[150,-34]]]}}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testLogger(buf *bytes.Buffer) logger.Logger {
	return logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
}

func TestParseCRS(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"EPSG:3577", 3577, false},
		{"epsg:4326", 4326, false},
		{"urn:ogc:def:crs:EPSG::4283", 4283, false},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", 4326, false},
		{"7844", 7844, false},
		{"EPSG:9473", 9473, false},
		{"EPSG:3857", 3857, false},
		{"EPSG:32756", 0, true},
		{"", 0, true},
		{"not-a-crs", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCRS(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnresolvableCRS)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.EPSG)
		})
	}
}

func TestAlbersOriginAndRoundTrip(t *testing.T) {
	origin := australianAlbers.forward(orb.Point{132, 0})
	assert.InDelta(t, 0, origin[0], 1e-6)
	assert.InDelta(t, 0, origin[1], 1e-6)

	sydney := orb.Point{151.2093, -33.8688}
	xy := australianAlbers.forward(sydney)
	assert.Greater(t, xy[0], 0.0)
	assert.Less(t, xy[1], 0.0)

	back := australianAlbers.inverse(xy)
	assert.InDelta(t, sydney[0], back[0], 1e-7)
	assert.InDelta(t, sydney[1], back[1], 1e-7)

	perth := orb.Point{115.8613, -31.9523}
	xy = australianAlbers.forward(perth)
	assert.Less(t, xy[0], 0.0)
	back = australianAlbers.inverse(xy)
	assert.InDelta(t, perth[0], back[0], 1e-7)
	assert.InDelta(t, perth[1], back[1], 1e-7)
}

func TestAlbersDistanceNearStandardParallel(t *testing.T) {
	a := australianAlbers.forward(orb.Point{140, -30})
	b := australianAlbers.forward(orb.Point{141, -30})
	// One degree of longitude at 30S on GRS80.
	assert.InEpsilon(t, 96486.0, math.Hypot(a[0]-b[0], a[1]-b[1]), 0.02)
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	poly := orb.Polygon{{{150, -34}, {151, -34}, {151, -33}, {150, -34}}}
	out, err := Transform(poly, WGS84, AustralianAlbers)
	require.NoError(t, err)

	assert.Equal(t, orb.Point{150, -34}, poly[0][0])
	assert.Greater(t, out.Bound().Max[0], 1000.0)

	back, err := Transform(out, AustralianAlbers, MustParseCRS("EPSG:4283"))
	require.NoError(t, err)
	assert.InDelta(t, 150, back.(orb.Polygon)[0][0][0], 1e-7)
}

func TestTransformWebMercator(t *testing.T) {
	p, err := TransformPoint(orb.Point{0, 0}, WGS84, MustParseCRS("EPSG:3857"))
	require.NoError(t, err)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)

	_, err = TransformPoint(orb.Point{0, 0}, WGS84, CRS{EPSG: 2193})
	assert.ErrorIs(t, err, ErrUnresolvableCRS)
}

func TestTransformBoundCoversEdges(t *testing.T) {
	b := orb.Bound{Min: orb.Point{140, -35}, Max: orb.Point{150, -30}}
	out, err := TransformBound(b, WGS84, AustralianAlbers)
	require.NoError(t, err)

	for _, p := range []orb.Point{{140, -35}, {150, -30}, {145, -35}, {145, -30}} {
		xy := australianAlbers.forward(p)
		assert.True(t, out.Contains(xy), "bound should contain %v", p)
	}
}

func TestBufferSquare(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1000, 0}, {1000, 1000}, {0, 1000}, {0, 0}}}
	g, err := Buffer(square, 100)
	require.NoError(t, err)

	b := g.Bound()
	assert.InDelta(t, -100, b.Min[0], 1e-6)
	assert.InDelta(t, -100, b.Min[1], 1e-6)
	assert.InDelta(t, 1100, b.Max[0], 1e-6)
	assert.InDelta(t, 1100, b.Max[1], 1e-6)

	want := 1000.0*1000 + 4*1000*100 + math.Pi*100*100
	assert.InEpsilon(t, want, planar.Area(g), 0.01)

	ring := g.(orb.Polygon)[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestBufferZeroAndNegative(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	g, err := Buffer(square, 0)
	require.NoError(t, err)
	assert.Equal(t, square, g)

	_, err = Buffer(square, -5)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = Buffer(orb.Point{1, 1}, 10)
	assert.Error(t, err)
}

func TestConvexHull(t *testing.T) {
	pts := []orb.Point{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 0}}
	hull := convexHull(pts)
	assert.Len(t, hull, 4)
	assert.Equal(t, orb.Point{0, 0}, hull[0])
}

func TestLoadAOIMissingFile(t *testing.T) {
	_, err := LoadAOI(filepath.Join(t.TempDir(), "nsw.geojson"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBoundaryNotFound)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), BoundaryCommand)
}

func TestLoadAOIEmpty(t *testing.T) {
	tests := map[string]string{
		"no features": `{"type":"FeatureCollection","features":[]}`,
		"points only": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[150,-33]}}]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := LoadAOI(writeFile(t, "empty.geojson", content), WithLogger(testLogger(&buf)))
			assert.ErrorIs(t, err, ErrEmptyGeometry)
		})
	}
}

func TestLoadAOIDefaultsToWGS84(t *testing.T) {
	aoi, err := LoadAOI(writeFile(t, "nsw.geojson", squareFC))
	require.NoError(t, err)

	assert.Equal(t, "nsw", aoi.Name)
	assert.Equal(t, EPSGWGS84, aoi.CRS.EPSG)
	assert.Len(t, aoi.Geometry, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{150, -34}, Max: orb.Point{151, -33}}, aoi.Bound())

	area, err := aoi.AreaKm2()
	require.NoError(t, err)
	assert.InEpsilon(t, 10300.0, area, 0.05)
}

func TestLoadAOILegacyCRSMember(t *testing.T) {
	content := `{"type":"FeatureCollection",
	  "crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::4283"}},
	  "features":[{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[150,-34],[151,-34],[151,-33],[150,-34]]],[[[152,-34],[153,-34],[153,-33],[152,-34]]]]}}]}`
	aoi, err := LoadAOI(writeFile(t, "qld.geojson", content))
	require.NoError(t, err)
	assert.Equal(t, EPSGGDA94, aoi.CRS.EPSG)
	assert.Len(t, aoi.Geometry, 2)

	bad := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"EPSG:32756"}},"features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
	_, err = LoadAOI(writeFile(t, "bad.geojson", bad))
	assert.ErrorIs(t, err, ErrUnresolvableCRS)
}

func TestLoadAOIFeatureAndBareGeometry(t *testing.T) {
	feature := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	aoi, err := LoadAOI(writeFile(t, "f.geojson", feature))
	require.NoError(t, err)
	assert.Len(t, aoi.Geometry, 1)

	bare := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`
	aoi, err = LoadAOI(writeFile(t, "g.geojson", bare), WithDefaultCRS(MustParseCRS("EPSG:7844")))
	require.NoError(t, err)
	assert.Equal(t, EPSGGDA2020, aoi.CRS.EPSG)
}

func TestLoadAOIBufferReprojectsGeographic(t *testing.T) {
	var buf bytes.Buffer
	aoi, err := LoadAOI(writeFile(t, "nsw.geojson", squareFC),
		WithBuffer(5000), WithLogger(testLogger(&buf)))
	require.NoError(t, err)

	assert.Equal(t, EPSGAustralianAlbers, aoi.CRS.EPSG)
	assert.False(t, aoi.CRS.Geographic)
	assert.InDelta(t, 5000, aoi.BufferDistance, 1e-9)

	b := aoi.Bound()
	assert.Greater(t, b.Max[0]-b.Min[0], 90000.0, "width must be in metres")

	unbuffered, err := LoadAOI(writeFile(t, "nsw2.geojson", squareFC))
	require.NoError(t, err)
	projected, err := unbuffered.BoundsIn(AustralianAlbers)
	require.NoError(t, err)
	assert.Less(t, b.Min[0], projected.Min[0])
	assert.Greater(t, b.Max[1], projected.Max[1])
	assert.Contains(t, buf.String(), "reprojected boundary for metric buffering")
}

func TestLoadAOINegativeBuffer(t *testing.T) {
	_, err := LoadAOI(writeFile(t, "nsw.geojson", squareFC), WithBuffer(-1))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

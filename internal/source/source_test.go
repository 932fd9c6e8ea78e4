package source

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

func testLogger(buf *bytes.Buffer) logger.Logger {
	return logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
}

// albersAOI is a 1 km square near Canberra in Australian Albers.
func albersAOI() *geo.AreaOfInterest {
	ring := orb.Ring{
		{1_550_000, -3_951_000}, {1_551_000, -3_951_000},
		{1_551_000, -3_950_000}, {1_550_000, -3_950_000},
		{1_550_000, -3_951_000},
	}
	return &geo.AreaOfInterest{
		Name:     "act",
		Geometry: orb.MultiPolygon{{ring}},
		CRS:      geo.AustralianAlbers,
	}
}

func testRequest() Request {
	return Request{
		State:      "act",
		AOI:        albersAOI(),
		StartYear:  2019,
		EndYear:    2021,
		ProductID:  "ga_ls_landcover_class_cyear_2",
		Resolution: 100,
		CRS:        geo.AustralianAlbers,
	}
}

// fakeStrategy returns a fixed dataset or error.
type fakeStrategy struct {
	name    string
	cap     Capability
	err     error
	missing []int
	calls   int
}

func (f *fakeStrategy) Name() string           { return f.name }
func (f *fakeStrategy) Capability() Capability { return f.cap }

func (f *fakeStrategy) Fetch(ctx context.Context, req Request) (*raster.Dataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ds, err := NewSynthetic(WithSeed(1)).Fetch(ctx, req)
	if err == nil && len(f.missing) > 0 {
		ds.First().Attrs[raster.AttrMissingYears] = f.missing
	}
	return ds, err
}

func TestChainPrefersReal(t *testing.T) {
	catalog := &fakeStrategy{name: "stac", cap: CapabilityReal}
	synth := &fakeStrategy{name: "synthetic", cap: CapabilitySynthetic}
	var buf bytes.Buffer
	chain := NewChain([]Strategy{synth, catalog}, WithChainLogger(testLogger(&buf)))
	assert.Equal(t, []string{"stac", "synthetic"}, chain.Strategies())

	res, err := chain.Fetch(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "stac", res.Strategy)
	assert.False(t, res.Synthetic())
	assert.Equal(t, 1, catalog.calls)
	assert.Zero(t, synth.calls, "synthetic must not run when a real strategy succeeds")
	assert.Len(t, res.Attempts, 1)
}

func TestChainReportsMissingYears(t *testing.T) {
	cube := &fakeStrategy{name: "cube", cap: CapabilityReal, missing: []int{2020}}
	var buf bytes.Buffer
	res, err := NewChain([]Strategy{cube}, WithChainLogger(testLogger(&buf))).Fetch(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{2020}, res.MissingYears)
	assert.Contains(t, buf.String(), "source has no data for some years")

	full := &fakeStrategy{name: "stac", cap: CapabilityReal}
	res, err = NewChain([]Strategy{full}, WithChainLogger(testLogger(&buf))).Fetch(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, res.MissingYears)
}

func TestChainFallsBackToSynthetic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSourceMetrics(reg)
	require.NoError(t, err)

	stac := &fakeStrategy{name: "stac", cap: CapabilityReal, err: fmt.Errorf("catalog down")}
	cube := &fakeStrategy{name: "cube", cap: CapabilityReal, err: unavailable("cube", "empty")}
	synth := &fakeStrategy{name: "synthetic", cap: CapabilitySynthetic}
	var buf bytes.Buffer
	chain := NewChain([]Strategy{stac, cube, synth}, WithChainLogger(testLogger(&buf)), WithChainMetrics(m))

	res, err := chain.Fetch(t.Context(), testRequest())
	require.NoError(t, err)
	assert.True(t, res.Synthetic())
	assert.Equal(t, "synthetic", res.Strategy)
	require.Len(t, res.Attempts, 3)
	assert.Error(t, res.Attempts[0].Err)
	assert.True(t, errors.Is(res.Attempts[1].Err, ErrStrategyUnavailable))
	assert.NoError(t, res.Attempts[2].Err)

	assert.Contains(t, buf.String(), "catalog down")
	assert.Contains(t, buf.String(), "falling back to synthetic")
	assert.InDelta(t, 1, testutil.ToFloat64(m.StrategyAttempts.WithLabelValues("stac", metrics.OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StrategyAttempts.WithLabelValues("synthetic", metrics.OutcomeSuccess)), 0)
}

func TestChainRequireReal(t *testing.T) {
	stac := &fakeStrategy{name: "stac", cap: CapabilityReal, err: fmt.Errorf("catalog down")}
	synth := &fakeStrategy{name: "synthetic", cap: CapabilitySynthetic}
	var buf bytes.Buffer
	chain := NewChain([]Strategy{stac, synth}, WithRequireReal(true), WithChainLogger(testLogger(&buf)))

	res, err := chain.Fetch(t.Context(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRealDataRequired))
	assert.Contains(t, err.Error(), "catalog down")
	assert.Zero(t, synth.calls)
	require.NotNil(t, res)
	assert.Len(t, res.Attempts, 1)
}

func TestChainExhausted(t *testing.T) {
	stac := &fakeStrategy{name: "stac", cap: CapabilityReal, err: fmt.Errorf("catalog down")}
	synth := &fakeStrategy{name: "synthetic", cap: CapabilitySynthetic, err: fmt.Errorf("no memory")}
	var buf bytes.Buffer
	chain := NewChain([]Strategy{stac, synth}, WithChainLogger(testLogger(&buf)))

	_, err := chain.Fetch(t.Context(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChainExhausted))
	assert.True(t, errors.IsCategory(err, errors.CategoryFetch))

	_, err = NewChain(nil, WithChainLogger(testLogger(&buf))).Fetch(t.Context(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChainExhausted))
}

func TestChainCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	stac := &fakeStrategy{name: "stac", cap: CapabilityReal, err: context.Canceled}
	synth := &fakeStrategy{name: "synthetic", cap: CapabilitySynthetic}
	var buf bytes.Buffer
	_, err := NewChain([]Strategy{stac, synth}, WithChainLogger(testLogger(&buf))).Fetch(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Zero(t, synth.calls)
}

func TestChainRejectsInvalidRequest(t *testing.T) {
	chain := NewChain([]Strategy{NewSynthetic()})
	tests := map[string]func(*Request){
		"no aoi":         func(r *Request) { r.AOI = nil },
		"years reversed": func(r *Request) { r.StartYear = 2022 },
		"no resolution":  func(r *Request) { r.Resolution = 0 },
		"no crs":         func(r *Request) { r.CRS = geo.CRS{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := testRequest()
			mutate(&req)
			_, err := chain.Fetch(t.Context(), req)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestSyntheticStack(t *testing.T) {
	var buf bytes.Buffer
	s := NewSynthetic(WithSeed(42), WithSyntheticLogger(testLogger(&buf)))
	ds, err := s.Fetch(t.Context(), testRequest())
	require.NoError(t, err)

	da, ok := ds.Var(VariableName)
	require.True(t, ok)
	assert.Equal(t, []string{raster.DimTime, raster.DimY, raster.DimX}, da.Dims)
	assert.Equal(t, []int{3, 10, 10}, da.Data.Shape)

	times := da.Times()
	require.Len(t, times, 3)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), times[0])
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), times[2])

	xs := da.Coords[raster.DimX].Floats
	ys := da.Coords[raster.DimY].Floats
	assert.InDelta(t, 1_550_000, xs[0], 1e-6)
	assert.InDelta(t, 1_551_000, xs[len(xs)-1], 1e-6)
	assert.InDelta(t, -3_950_000, ys[0], 1e-6, "first row is north")
	assert.InDelta(t, -3_951_000, ys[len(ys)-1], 1e-6)

	for _, v := range da.Data.Values {
		assert.Contains(t, DefaultAlphabet, v)
	}
	assert.True(t, ds.Attrs.Bool(raster.AttrSynthetic))
	assert.Equal(t, "synthetic", da.Attrs.String(raster.AttrSource))
	assert.Equal(t, "EPSG:3577", da.CRS())
	assert.Contains(t, buf.String(), "generated synthetic")
}

func TestSyntheticClampAndSeed(t *testing.T) {
	req := testRequest()
	s := NewSynthetic(WithSeed(7), WithAlphabet([]int32{9}))

	req.Resolution = 1
	ds, err := s.Fetch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{3, SyntheticMaxCells, SyntheticMaxCells}, ds.First().Data.Shape)
	for _, v := range ds.First().Data.Values {
		assert.Equal(t, int32(9), v)
	}

	req.Resolution = 1_000_000
	ds, err = s.Fetch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{3, SyntheticMinCells, SyntheticMinCells}, ds.First().Data.Shape)

	req.Resolution = 100
	a, err := NewSynthetic(WithSeed(99)).Fetch(t.Context(), req)
	require.NoError(t, err)
	b, err := NewSynthetic(WithSeed(99)).Fetch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, a.First().Data.Values, b.First().Data.Values)
}

func TestSyntheticGeographicAOI(t *testing.T) {
	ring := orb.Ring{{149.0, -35.5}, {149.2, -35.5}, {149.2, -35.3}, {149.0, -35.3}, {149.0, -35.5}}
	req := testRequest()
	req.AOI = &geo.AreaOfInterest{Name: "act", Geometry: orb.MultiPolygon{{ring}}, CRS: geo.WGS84}
	req.Resolution = 1000

	ds, err := NewSynthetic(WithSeed(3)).Fetch(t.Context(), req)
	require.NoError(t, err)
	shape := ds.First().Data.Shape
	// The projected bounds of the rotated box are about 20.9 km by 24.4 km.
	assert.Equal(t, 24, shape[1])
	assert.Equal(t, 20, shape[2])
}

func TestMemoryGuard(t *testing.T) {
	g := &MemoryGuard{fraction: 0.5, available: func() (uint64, error) { return 1000, nil }}
	assert.NoError(t, g.Check(125))
	err := g.Check(126)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryResource))

	failing := &MemoryGuard{fraction: 0.5, available: func() (uint64, error) { return 0, fmt.Errorf("probe") }}
	assert.NoError(t, failing.Check(1<<40))

	var nilGuard *MemoryGuard
	assert.NoError(t, nilGuard.Check(1<<40))
	assert.NoError(t, NewMemoryGuard(0).Check(1<<40))

	s := NewSynthetic(WithSyntheticGuard(g))
	_, err = s.Fetch(t.Context(), testRequest())
	assert.True(t, errors.IsCategory(err, errors.CategoryResource))
}

func TestMosaic(t *testing.T) {
	grid := raster.NewGrid(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 2}}, 1, "EPSG:3577")

	// Left tile covers x in [0, 2), right tile overlaps at x in [1, 4).
	left := tile{
		data:      raster.Array{Shape: []int{2, 2}, Values: []int32{1, 1, 1, 9}},
		transform: raster.FromBounds(0, 0, 2, 2, 2, 2),
		crs:       geo.AustralianAlbers,
		nodata:    9,
		hasNodata: true,
	}
	right := tile{
		data:      raster.Array{Shape: []int{2, 3}, Values: []int32{2, 2, 2, 2, 2, 2}},
		transform: raster.FromBounds(1, 0, 4, 2, 3, 2),
		crs:       geo.AustralianAlbers,
	}
	out, filled, err := mosaic(grid, geo.AustralianAlbers, []tile{left, right}, DefaultNodata)
	require.NoError(t, err)
	assert.Equal(t, 8, filled)
	// Row 1 col 1 is nodata in the left tile, so the right tile fills it.
	assert.Equal(t, []int32{1, 1, 2, 2, 1, 2, 2, 2}, out.Values)

	out, filled, err = mosaic(grid, geo.AustralianAlbers, nil, DefaultNodata)
	require.NoError(t, err)
	assert.Zero(t, filled)
	for _, v := range out.Values {
		assert.Equal(t, DefaultNodata, v)
	}
}

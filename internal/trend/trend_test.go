package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

func classifiedStack(t *testing.T, planes ...[]int32) *raster.DataArray {
	t.Helper()
	arrays := make([]raster.Array, 0, len(planes))
	for _, p := range planes {
		arrays = append(arrays, raster.Array{Shape: []int{2, 2}, Values: p})
	}
	data, err := raster.Stack(arrays)
	require.NoError(t, err)
	da, err := raster.NewDataArray("woody", []string{raster.DimTime, raster.DimY, raster.DimX}, data,
		[]raster.Coord{
			raster.TimeCoord(raster.DimTime, raster.YearLabels(2019, 2018+len(planes))),
			raster.FloatCoord(raster.DimY, []float64{-50, -150}),
			raster.FloatCoord(raster.DimX, []float64{50, 150}),
		}, nil)
	require.NoError(t, err)
	return da
}

func TestWoodyFraction(t *testing.T) {
	da := classifiedStack(t,
		[]int32{1, 1, 2, 0},
		[]int32{1, 255, 2, 2},
		[]int32{255, 255, 255, 255},
	)
	series, err := WoodyFraction(da, 255)
	require.NoError(t, err)
	assert.Equal(t, Series{
		{Year: 2019, Woody: 2, Valid: 4, Fraction: 0.5},
		{Year: 2020, Woody: 1, Valid: 3, Fraction: 1.0 / 3},
		{Year: 2021, Woody: 0, Valid: 0, Fraction: 0},
	}, series)
}

func TestWoodyFractionStringLabels(t *testing.T) {
	data := raster.NewArray(2, 1, 1)
	data.Values[0] = 1
	da, err := raster.NewDataArray("woody", []string{raster.DimTime, raster.DimY, raster.DimX}, data,
		[]raster.Coord{{Dim: raster.DimTime, Strings: []string{"2016-17", "2017-18"}}}, nil)
	require.NoError(t, err)

	series, err := WoodyFraction(da, 255)
	require.NoError(t, err)
	assert.Equal(t, 2016, series[0].Year)
	assert.Equal(t, 2017, series[1].Year)
	assert.InDelta(t, 1.0, series[0].Fraction, 1e-12)
}

func TestWoodyFractionRejectsBadInput(t *testing.T) {
	_, err := WoodyFraction(nil, 255)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	da, err := raster.NewDataArray("flat", []string{raster.DimY, raster.DimX}, raster.NewArray(2, 2), nil, nil)
	require.NoError(t, err)
	_, err = WoodyFraction(da, 255)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	da, err = raster.NewDataArray("unlabelled", []string{raster.DimTime, raster.DimY, raster.DimX}, raster.NewArray(1, 2, 2), nil, nil)
	require.NoError(t, err)
	_, err = WoodyFraction(da, 255)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestChangeStatistics(t *testing.T) {
	series := Series{
		{Year: 2016, Valid: 10, Fraction: 0.6},
		{Year: 2017, Valid: 10, Fraction: 0.4},
		{Year: 2018, Valid: 0},
		{Year: 2020, Valid: 10, Fraction: 0.3},
		{Year: 2021, Valid: 10, Fraction: 0.1},
	}

	st, err := ChangeStatistics(series, Period{2016, 2018}, Period{2020, 2021})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, st.BaselineMean, 1e-12)
	assert.InDelta(t, 0.2, st.ComparisonMean, 1e-12)
	assert.InDelta(t, -0.3, st.AbsoluteChange, 1e-12)
	assert.InDelta(t, -60, st.PercentChange, 1e-9)

	zero := Series{{Year: 2016, Valid: 5}, {Year: 2020, Valid: 5, Fraction: 0.2}}
	st, err = ChangeStatistics(zero, Period{2016, 2016}, Period{2020, 2020})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, st.AbsoluteChange, 1e-12)
	assert.Zero(t, st.PercentChange)

	_, err = ChangeStatistics(series, Period{2018, 2018}, Period{2020, 2021})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	_, err = ChangeStatistics(series, Period{2016, 2017}, Period{2030, 2031})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestDetectClearingEvents(t *testing.T) {
	series := Series{
		{Year: 2015, Valid: 1, Fraction: 0.50},
		{Year: 2016, Valid: 1, Fraction: 0.40}, // -20%
		{Year: 2017, Valid: 1, Fraction: 0.30}, // -25%
		{Year: 2018, Valid: 1, Fraction: 0.31},
		{Year: 2019, Valid: 1, Fraction: 0.30}, // about -3%
		{Year: 2020, Valid: 1, Fraction: 0.15}, // -50%
	}

	tests := map[string]struct {
		threshold   float64
		minDuration int
		want        []Event
	}{
		"single steps": {threshold: 10, minDuration: 1, want: []Event{
			{StartYear: 2015, EndYear: 2017, Magnitude: -40},
			{StartYear: 2019, EndYear: 2020, Magnitude: -50},
		}},
		"sustained only": {threshold: 10, minDuration: 2, want: []Event{
			{StartYear: 2015, EndYear: 2017, Magnitude: -40},
		}},
		"negative threshold is a drop": {threshold: -30, minDuration: 1, want: []Event{
			{StartYear: 2019, EndYear: 2020, Magnitude: -50},
		}},
		"any decline": {threshold: 0, minDuration: 1, want: []Event{
			{StartYear: 2015, EndYear: 2017, Magnitude: -40},
			{StartYear: 2018, EndYear: 2020, Magnitude: (0.15 - 0.31) / 0.31 * 100},
		}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := DetectClearingEvents(series, tc.threshold, tc.minDuration)
			require.Len(t, got, len(tc.want))
			for i, e := range tc.want {
				assert.Equal(t, e.StartYear, got[i].StartYear)
				assert.Equal(t, e.EndYear, got[i].EndYear)
				assert.InDelta(t, e.Magnitude, got[i].Magnitude, 1e-9)
			}
		})
	}

	assert.Empty(t, DetectClearingEvents(nil, 10, 1))
	assert.Empty(t, DetectClearingEvents(Series{{Year: 2020, Valid: 1, Fraction: 0}, {Year: 2021, Valid: 1, Fraction: 0}}, 10, 1))
}

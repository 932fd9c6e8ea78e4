// Package trend summarises classified stacks over time: the woody fraction
// per year, change between two periods and threshold-based clearing events.
package trend

import (
	"math"
	"strconv"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// WoodyClass is the classified value counted as woody.
const WoodyClass int32 = 1

// Point is the woody fraction of one year.
type Point struct {
	Year     int     `yaml:"year"`
	Woody    int     `yaml:"woody_cells"`
	Valid    int     `yaml:"valid_cells"`
	Fraction float64 `yaml:"fraction"` // Woody/Valid, 0 when Valid is 0
}

// Series is a per-year woody fraction time series in stack order.
type Series []Point

// Period is an inclusive range of years.
type Period struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

func (p Period) contains(year int) bool {
	return year >= p.Start && year <= p.End
}

// ChangeStats compares the mean woody fraction of two periods.
type ChangeStats struct {
	Baseline       Period  `yaml:"baseline"`
	Comparison     Period  `yaml:"comparison"`
	BaselineMean   float64 `yaml:"baseline_mean"`
	ComparisonMean float64 `yaml:"comparison_mean"`
	AbsoluteChange float64 `yaml:"absolute_change"`
	PercentChange  float64 `yaml:"percent_change"`
}

// Event is a run of consecutive year-over-year declines.
type Event struct {
	StartYear int     `yaml:"start_year"` // last year before the decline
	EndYear   int     `yaml:"end_year"`
	Magnitude float64 `yaml:"magnitude_percent"`
}

// WoodyFraction counts woody cells per time slice of a classified stack.
// Cells equal to nodata are excluded from the valid count.
func WoodyFraction(stack *raster.DataArray, nodata int32) (Series, error) {
	if stack == nil {
		return nil, validationError("classified stack is nil")
	}
	t := stack.Axis(raster.DimTime)
	if t != 0 || stack.Data.Rank() != 3 {
		return nil, validationError("classified stack must have dims (time, y, x)")
	}
	coord := stack.Coords[raster.DimTime]

	out := make(Series, 0, stack.Data.Shape[0])
	for i := range stack.Data.Shape[0] {
		year, ok := yearOf(coord, i)
		if !ok {
			return nil, errors.Newf("time slice %d has no year label", i).
				Component("trend").
				Category(errors.CategoryValidation).
				Context("index", i).
				Build()
		}
		plane, err := stack.Data.Plane(i)
		if err != nil {
			return nil, err
		}
		p := Point{Year: year}
		for _, v := range plane.Values {
			if v == nodata {
				continue
			}
			p.Valid++
			if v == WoodyClass {
				p.Woody++
			}
		}
		if p.Valid > 0 {
			p.Fraction = float64(p.Woody) / float64(p.Valid)
		}
		out = append(out, p)
	}
	return out, nil
}

func yearOf(c raster.Coord, i int) (int, bool) {
	if i >= c.Len() {
		return 0, false
	}
	if c.Times != nil {
		return c.Times[i].Year(), true
	}
	label := c.Label(i)
	if len(label) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(label[:4])
	return y, err == nil
}

// ChangeStatistics compares the mean fraction of the baseline and comparison
// periods. Years without valid cells are ignored. PercentChange is 0 when the
// baseline mean is 0.
func ChangeStatistics(series Series, baseline, comparison Period) (ChangeStats, error) {
	st := ChangeStats{Baseline: baseline, Comparison: comparison}
	var ok bool
	if st.BaselineMean, ok = series.mean(baseline); !ok {
		return st, periodError("baseline", baseline)
	}
	if st.ComparisonMean, ok = series.mean(comparison); !ok {
		return st, periodError("comparison", comparison)
	}
	st.AbsoluteChange = st.ComparisonMean - st.BaselineMean
	if st.BaselineMean != 0 {
		st.PercentChange = st.AbsoluteChange / st.BaselineMean * 100
	}
	return st, nil
}

func (s Series) mean(p Period) (float64, bool) {
	var sum float64
	n := 0
	for _, pt := range s {
		if pt.Valid == 0 || !p.contains(pt.Year) {
			continue
		}
		sum += pt.Fraction
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// DetectClearingEvents flags runs of at least minDuration consecutive
// year-over-year drops of thresholdPercent or more in the woody fraction.
// Steps from a zero or invalid year break a run.
func DetectClearingEvents(series Series, thresholdPercent float64, minDuration int) []Event {
	minDuration = max(1, minDuration)
	threshold := -math.Abs(thresholdPercent)

	var events []Event
	start, steps := -1, 0
	flush := func(end int) {
		if steps >= minDuration {
			from, to := series[start].Fraction, series[end].Fraction
			events = append(events, Event{
				StartYear: series[start].Year,
				EndYear:   series[end].Year,
				Magnitude: (to - from) / from * 100,
			})
		}
		start, steps = -1, 0
	}

	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		declined := false
		if prev.Valid > 0 && cur.Valid > 0 && prev.Fraction > 0 {
			change := (cur.Fraction - prev.Fraction) / prev.Fraction * 100
			declined = change < 0 && change <= threshold
		}
		switch {
		case declined && start < 0:
			start, steps = i-1, 1
		case declined:
			steps++
		case start >= 0:
			flush(i - 1)
		}
	}
	if start >= 0 {
		flush(len(series) - 1)
	}
	return events
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("trend").
		Category(errors.CategoryValidation).
		Build()
}

func periodError(name string, p Period) error {
	return errors.Newf("no valid years in %s period %d-%d", name, p.Start, p.End).
		Component("trend").
		Category(errors.CategoryValidation).
		Context("period", name).
		Build()
}

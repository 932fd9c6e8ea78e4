package raster

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Dimension names.
const (
	DimTime = "time"
	DimY    = "y"
	DimX    = "x"
)

// Attribute keys shared by sources, the reclassifier and the exporter.
const (
	AttrCRS            = "crs"
	AttrResolution     = "resolution"
	AttrProductID      = "product_id"
	AttrSource         = "source"
	AttrSynthetic      = "synthetic"
	AttrDerivedFrom    = "derived_from"
	AttrClassification = "classification"
	AttrNodata         = "nodata"
	AttrTime           = "time"
	// AttrMissingYears lists years a real source had no data for.
	AttrMissingYears   = "missing_years"
)

// Coord labels one dimension. Exactly one of Floats, Times or Strings is set.
type Coord struct {
	Dim     string
	Floats  []float64
	Times   []time.Time
	Strings []string
}

// FloatCoord builds a numeric coordinate.
func FloatCoord(dim string, v []float64) Coord {
	return Coord{Dim: dim, Floats: v}
}

// TimeCoord builds a time coordinate.
func TimeCoord(dim string, v []time.Time) Coord {
	return Coord{Dim: dim, Times: v}
}

// YearLabels returns 1 January UTC of every year in [start, end].
func YearLabels(start, end int) []time.Time {
	out := make([]time.Time, 0, max(end-start+1, 0))
	for y := start; y <= end; y++ {
		out = append(out, time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	return out
}

// Len returns the number of labels.
func (c Coord) Len() int {
	switch {
	case c.Times != nil:
		return len(c.Times)
	case c.Strings != nil:
		return len(c.Strings)
	default:
		return len(c.Floats)
	}
}

// Label returns the string form of the i-th label.
func (c Coord) Label(i int) string {
	switch {
	case c.Times != nil:
		return c.Times[i].Format("2006-01-02T15:04:05")
	case c.Strings != nil:
		return c.Strings[i]
	default:
		return strconv.FormatFloat(c.Floats[i], 'f', -1, 64)
	}
}

// Slice returns labels [i, j).
func (c Coord) Slice(i, j int) Coord {
	out := Coord{Dim: c.Dim}
	switch {
	case c.Times != nil:
		out.Times = slices.Clone(c.Times[i:j])
	case c.Strings != nil:
		out.Strings = slices.Clone(c.Strings[i:j])
	default:
		out.Floats = slices.Clone(c.Floats[i:j])
	}
	return out
}

// Clone returns a deep copy.
func (c Coord) Clone() Coord {
	return Coord{
		Dim:     c.Dim,
		Floats:  slices.Clone(c.Floats),
		Times:   slices.Clone(c.Times),
		Strings: slices.Clone(c.Strings),
	}
}

// Extent returns the numeric min and max.
func (c Coord) Extent() (lo, hi float64, ok bool) {
	if len(c.Floats) == 0 {
		return 0, 0, false
	}
	return slices.Min(c.Floats), slices.Max(c.Floats), true
}

// checkIncreasing verifies time labels are strictly increasing.
func (c Coord) checkIncreasing() error {
	for i := 1; i < len(c.Times); i++ {
		if !c.Times[i].After(c.Times[i-1]) {
			return fmt.Errorf("time labels not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Attrs is a free-form attribute bag.
type Attrs map[string]any

// Clone returns a shallow copy of the bag.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return Attrs{}
	}
	return maps.Clone(a)
}

// String returns a string attribute or "".
func (a Attrs) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Float returns a numeric attribute.
func (a Attrs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Ints returns an integer list attribute, nil when absent.
func (a Attrs) Ints(key string) []int {
	switch v := a[key].(type) {
	case []int:
		return slices.Clone(v)
	case []any:
		out := make([]int, 0, len(v))
		for _, x := range v {
			if n, ok := x.(int); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// Bool returns a boolean attribute, false when absent.
func (a Attrs) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

package raster

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// DataArray is a labelled grid: named dimensions, per-dimension coordinates
// and an attribute bag.
type DataArray struct {
	Name   string
	Dims   []string
	Data   Array
	Coords map[string]Coord
	Attrs  Attrs
}

// NewDataArray builds and validates a labelled array. Coordinates are keyed
// by their dimension name.
func NewDataArray(name string, dims []string, data Array, coords []Coord, attrs Attrs) (*DataArray, error) {
	da := &DataArray{
		Name:   name,
		Dims:   slices.Clone(dims),
		Data:   data,
		Coords: make(map[string]Coord, len(coords)),
		Attrs:  attrs.Clone(),
	}
	for _, c := range coords {
		da.Coords[c.Dim] = c
	}
	if err := da.Validate(); err != nil {
		return nil, err
	}
	return da, nil
}

// Validate checks dimension, coordinate and time-label consistency.
func (d *DataArray) Validate() error {
	if err := d.Data.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	if len(d.Dims) != d.Data.Rank() {
		return fmt.Errorf("%s: %d dims for rank %d data", d.Name, len(d.Dims), d.Data.Rank())
	}
	for dim, c := range d.Coords {
		axis := d.Axis(dim)
		if axis < 0 {
			return fmt.Errorf("%s: coordinate %q has no matching dimension", d.Name, dim)
		}
		if c.Len() != d.Data.Shape[axis] {
			return fmt.Errorf("%s: coordinate %q has %d labels for extent %d", d.Name, dim, c.Len(), d.Data.Shape[axis])
		}
		if err := c.checkIncreasing(); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	return nil
}

// Axis returns the position of a dimension, or -1.
func (d *DataArray) Axis(dim string) int {
	return slices.Index(d.Dims, dim)
}

// Size returns the extent of a dimension, or 0.
func (d *DataArray) Size(dim string) int {
	if i := d.Axis(dim); i >= 0 {
		return d.Data.Shape[i]
	}
	return 0
}

// Clone returns a deep copy.
func (d *DataArray) Clone() *DataArray {
	coords := make(map[string]Coord, len(d.Coords))
	for k, c := range d.Coords {
		coords[k] = c.Clone()
	}
	return &DataArray{
		Name:   d.Name,
		Dims:   slices.Clone(d.Dims),
		Data:   d.Data.Clone(),
		Coords: coords,
		Attrs:  d.Attrs.Clone(),
	}
}

// WithData returns a copy that shares labels with d but carries new values
// of the same shape.
func (d *DataArray) WithData(data Array) (*DataArray, error) {
	if !slices.Equal(data.Shape, d.Data.Shape) {
		return nil, fmt.Errorf("shape %v does not match %v", data.Shape, d.Data.Shape)
	}
	out := d.Clone()
	out.Data = data
	return out, nil
}

// Times returns the time labels, or nil when the array has no time axis.
func (d *DataArray) Times() []time.Time {
	return d.Coords[DimTime].Times
}

// TimeSlice returns the 2-D (y, x) array at index i of the time axis. The
// slice records its time label in the time attribute.
func (d *DataArray) TimeSlice(i int) (*DataArray, error) {
	axis := d.Axis(DimTime)
	if axis != 0 {
		return nil, fmt.Errorf("%s: time must be the leading dimension, dims are %v", d.Name, d.Dims)
	}
	plane, err := d.Data.Plane(i)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}

	coords := make(map[string]Coord, len(d.Coords))
	for k, c := range d.Coords {
		if k != DimTime {
			coords[k] = c.Clone()
		}
	}
	attrs := d.Attrs.Clone()
	if tc, ok := d.Coords[DimTime]; ok {
		attrs[AttrTime] = tc.Label(i)
	}
	return &DataArray{
		Name:   d.Name,
		Dims:   slices.Clone(d.Dims[1:]),
		Data:   plane,
		Coords: coords,
		Attrs:  attrs,
	}, nil
}

// CRS returns the recorded CRS attribute.
func (d *DataArray) CRS() string {
	return d.Attrs.String(AttrCRS)
}

// Transform derives the affine transform from the x and y coordinates.
// ok is false when spatial coordinates are absent.
func (d *DataArray) Transform() (Transform, bool) {
	res, _ := d.Attrs.Float(AttrResolution)
	return TransformFromCoords(d.Coords[DimX].Floats, d.Coords[DimY].Floats, res)
}

// Dataset is a set of named variables that share coordinates.
type Dataset struct {
	Vars  map[string]*DataArray
	Order []string
	Attrs Attrs
}

// NewDataset creates an empty dataset.
func NewDataset(attrs Attrs) *Dataset {
	return &Dataset{Vars: make(map[string]*DataArray), Attrs: attrs.Clone()}
}

// Add inserts or replaces a variable, keeping insertion order.
func (ds *Dataset) Add(v *DataArray) {
	if _, exists := ds.Vars[v.Name]; !exists {
		ds.Order = append(ds.Order, v.Name)
	}
	ds.Vars[v.Name] = v
}

// Var returns a variable by name.
func (ds *Dataset) Var(name string) (*DataArray, bool) {
	v, ok := ds.Vars[name]
	return v, ok
}

// Names returns the variable names in insertion order.
func (ds *Dataset) Names() []string {
	return slices.Clone(ds.Order)
}

// First returns the first variable added, or nil.
func (ds *Dataset) First() *DataArray {
	if len(ds.Order) == 0 {
		return nil
	}
	return ds.Vars[ds.Order[0]]
}

// MergedAttrs returns the dataset attributes overlaid with a variable's own.
func (ds *Dataset) MergedAttrs(v *DataArray) Attrs {
	out := ds.Attrs.Clone()
	maps.Copy(out, v.Attrs)
	return out
}

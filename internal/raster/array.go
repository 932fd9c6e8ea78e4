// Package raster holds the in-memory model for categorical land-cover
// rasters: dense grids, labelled arrays with coordinates, multi-variable
// datasets and affine transforms.
package raster

import (
	"fmt"
	"slices"
)

// Array is a dense row-major int32 grid of any rank.
type Array struct {
	Shape  []int
	Values []int32
}

// NewArray allocates a zero-filled array.
func NewArray(shape ...int) Array {
	return Array{Shape: slices.Clone(shape), Values: make([]int32, size(shape))}
}

// FromRows builds a 2-D array from nested rows. All rows must share a length.
func FromRows(rows [][]int32) (Array, error) {
	if len(rows) == 0 {
		return Array{Shape: []int{0, 0}}, nil
	}
	w := len(rows[0])
	a := NewArray(len(rows), w)
	for i, r := range rows {
		if len(r) != w {
			return Array{}, fmt.Errorf("row %d has %d values, want %d", i, len(r), w)
		}
		copy(a.Values[i*w:], r)
	}
	return a, nil
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Len returns the number of cells.
func (a Array) Len() int {
	return len(a.Values)
}

// Rank returns the number of dimensions.
func (a Array) Rank() int {
	return len(a.Shape)
}

// Validate checks that the value count matches the shape.
func (a Array) Validate() error {
	for i, s := range a.Shape {
		if s < 0 {
			return fmt.Errorf("negative extent %d on axis %d", s, i)
		}
	}
	if want := size(a.Shape); want != len(a.Values) {
		return fmt.Errorf("shape %v needs %d values, have %d", a.Shape, want, len(a.Values))
	}
	return nil
}

// offset converts an index tuple to a flat offset.
func (a Array) offset(idx []int) int {
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the value at an index tuple.
func (a Array) At(idx ...int) int32 {
	return a.Values[a.offset(idx)]
}

// Set writes the value at an index tuple.
func (a Array) Set(v int32, idx ...int) {
	a.Values[a.offset(idx)] = v
}

// Clone returns a deep copy.
func (a Array) Clone() Array {
	return Array{Shape: slices.Clone(a.Shape), Values: slices.Clone(a.Values)}
}

// Plane returns a copy of the i-th slice along the first axis.
func (a Array) Plane(i int) (Array, error) {
	if a.Rank() < 2 {
		return Array{}, fmt.Errorf("cannot slice rank %d array", a.Rank())
	}
	if i < 0 || i >= a.Shape[0] {
		return Array{}, fmt.Errorf("index %d out of range [0,%d)", i, a.Shape[0])
	}
	n := size(a.Shape[1:])
	return Array{
		Shape:  slices.Clone(a.Shape[1:]),
		Values: slices.Clone(a.Values[i*n : (i+1)*n]),
	}, nil
}

// Stack joins equally-shaped arrays along a new first axis.
func Stack(planes []Array) (Array, error) {
	if len(planes) == 0 {
		return Array{}, fmt.Errorf("nothing to stack")
	}
	shape := planes[0].Shape
	out := NewArray(append([]int{len(planes)}, shape...)...)
	n := size(shape)
	for i, p := range planes {
		if !slices.Equal(p.Shape, shape) {
			return Array{}, fmt.Errorf("plane %d has shape %v, want %v", i, p.Shape, shape)
		}
		copy(out.Values[i*n:], p.Values)
	}
	return out, nil
}

// MinMax returns the smallest and largest values, ignoring cells equal to
// nodata when skipNodata is set. ok is false when no valid cell exists.
func (a Array) MinMax(nodata int32, skipNodata bool) (lo, hi int32, ok bool) {
	for _, v := range a.Values {
		if skipNodata && v == nodata {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}

package reclass

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// VariablePreference is the order in which dataset variables are tried.
var VariablePreference = []string{"landcover_class", "level3", "level4", "classification", "band_1"}

// OutputName is the variable name of reclassified arrays.
const OutputName = "woody_class"

// Classification is the value of the classification attribute on outputs.
const Classification = "woody_non_woody"

// GetLogger returns the reclass module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("reclass")
}

type options struct {
	classMap   ClassMap
	scheme     Scheme
	nodata     int32
	keepNodata bool
	log        logger.Logger
}

// Option configures Reclassify.
type Option func(*options)

// WithClassMap overrides the default class map.
func WithClassMap(m ClassMap) Option {
	return func(o *options) { o.classMap = m }
}

// WithScheme selects ternary or binary output.
func WithScheme(s Scheme) Option {
	return func(o *options) { o.scheme = s }
}

// WithNodata keeps cells equal to v as v in the output.
func WithNodata(v int32) Option {
	return func(o *options) {
		o.nodata = v
		o.keepNodata = true
	}
}

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{classMap: DefaultClassMap(), scheme: SchemeTernary}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = GetLogger()
	}
	if o.scheme == "" {
		o.scheme = SchemeTernary
	}
	return o
}

// Reclassify rewrites every cell of src through the class map. The result
// mirrors the input: an Array yields an Array, a *DataArray or *Dataset
// yields a *DataArray with all dimension and coordinate labels preserved.
func Reclassify(src raster.Source, opts ...Option) (raster.Source, error) {
	o := newOptions(opts)
	if err := o.classMap.Validate(); err != nil {
		o.log.Warn("class map has overlapping codes, non_woody takes precedence",
			logger.Error(err))
	}

	switch s := src.(type) {
	case raster.Array:
		if err := s.Validate(); err != nil {
			return nil, invalidInput(err)
		}
		return apply(s, o), nil
	case *raster.DataArray:
		if s == nil {
			return nil, invalidInput(fmt.Errorf("nil data array"))
		}
		out, err := reclassifyLabelled(s, nil, o)
		if err != nil {
			return nil, err
		}
		return out, nil
	case *raster.Dataset:
		if s == nil {
			return nil, invalidInput(fmt.Errorf("nil dataset"))
		}
		v, err := pickVariable(s, o.log)
		if err != nil {
			return nil, err
		}
		out, err := reclassifyLabelled(v, s.Attrs, o)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, invalidInput(fmt.Errorf("unsupported input %s", raster.Kind(src)))
	}
}

// ReclassifyArray is the canonical operation on a bare grid.
func ReclassifyArray(a raster.Array, opts ...Option) raster.Array {
	return apply(a, newOptions(opts))
}

func reclassifyLabelled(v *raster.DataArray, datasetAttrs raster.Attrs, o options) (*raster.DataArray, error) {
	if err := v.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	out, err := v.WithData(apply(v.Data, o))
	if err != nil {
		return nil, invalidInput(err)
	}
	attrs := datasetAttrs.Clone()
	maps.Copy(attrs, v.Attrs)
	attrs[raster.AttrDerivedFrom] = v.Name
	attrs[raster.AttrClassification] = Classification
	attrs["scheme"] = string(o.scheme)
	if o.keepNodata {
		attrs[raster.AttrNodata] = o.nodata
	}
	out.Name = OutputName
	out.Attrs = attrs
	return out, nil
}

// pickVariable chooses the dataset variable to reclassify.
func pickVariable(ds *raster.Dataset, log logger.Logger) (*raster.DataArray, error) {
	for _, name := range VariablePreference {
		if v, ok := ds.Var(name); ok {
			return v, nil
		}
	}
	first := ds.First()
	if first == nil {
		return nil, invalidInput(fmt.Errorf("dataset has no variables"))
	}
	log.Warn("no conventional land-cover variable found, using first variable",
		logger.String("variable", first.Name),
		logger.Any("tried", slices.Clone(VariablePreference)))
	return first, nil
}

// apply rewrites values through a lookup table.
func apply(a raster.Array, o options) raster.Array {
	table := buildTable(o.classMap, o.scheme)
	out := raster.Array{Shape: slices.Clone(a.Shape), Values: make([]int32, len(a.Values))}
	for i, v := range a.Values {
		if o.keepNodata && v == o.nodata {
			out.Values[i] = v
			continue
		}
		out.Values[i] = table.get(v)
	}
	return out
}

// lookup resolves codes either through a dense slice or a map when the code
// range is wide.
type lookup struct {
	base  int32
	dense []int32
	wide  map[int32]int32
}

const maxDenseRange = 1 << 16

func buildTable(m ClassMap, scheme Scheme) lookup {
	assign := make(map[int32]int32)
	for _, c := range m.Woody {
		assign[c] = ClassWoody
	}
	nonWoody := ClassNonWoody
	if scheme == SchemeBinary {
		nonWoody = ClassOther
	}
	for _, c := range m.NonWoody {
		assign[c] = nonWoody
	}

	if len(assign) == 0 {
		return lookup{}
	}
	lo, hi := int32(0), int32(0)
	first := true
	for c := range assign {
		if first {
			lo, hi, first = c, c, false
			continue
		}
		lo, hi = min(lo, c), max(hi, c)
	}
	if int64(hi)-int64(lo) >= maxDenseRange {
		return lookup{wide: assign}
	}
	t := lookup{base: lo, dense: make([]int32, hi-lo+1)}
	for c, v := range assign {
		t.dense[c-lo] = v
	}
	return t
}

func (t lookup) get(v int32) int32 {
	if t.wide != nil {
		return t.wide[v]
	}
	i := int64(v) - int64(t.base)
	if i < 0 || i >= int64(len(t.dense)) {
		return ClassOther
	}
	return t.dense[i]
}

func invalidInput(err error) error {
	return errors.New(err).
		Component("reclass").
		Category(errors.CategoryValidation).
		Build()
}

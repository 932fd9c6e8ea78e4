// Package export writes one georeferenced raster per year from a classified
// stack.
package export

import (
	"fmt"
	"strconv"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Defaults applied when options are omitted.
const (
	DefaultNodata = 255
	DefaultCRS    = "EPSG:3577"
)

// GetLogger returns the export module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("export")
}

// FileName returns the deterministic per-year raster name. Four-digit years
// keep lexical order chronological.
func FileName(state string, year int) string {
	return fmt.Sprintf("%s_woody_%04d.tif", state, year)
}

// Result describes a written raster.
type Result struct {
	Path            string
	Year            int
	RepresentedYear int
	Index           int
	Label           string
	Match           Match
	Substituted     bool
	Width, Height   int
}

type options struct {
	nodata      int
	compression geotiff.Compression
	defaultCRS  string
	state       string
	log         logger.Logger
}

// Option configures Export.
type Option func(*options)

// WithNodata sets the nodata sentinel written to the file.
func WithNodata(v int) Option {
	return func(o *options) { o.nodata = v }
}

// WithCompression selects the strip codec.
func WithCompression(c geotiff.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithDefaultCRS sets the CRS used when the stack records none.
func WithDefaultCRS(crs string) Option {
	return func(o *options) { o.defaultCRS = crs }
}

// WithState adds the state code to log lines.
func WithState(state string) Option {
	return func(o *options) { o.state = state }
}

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Export writes the slice for year to path as a single-band GeoTIFF. A year
// missing from the time labels does not fail: the best available slice is
// written and Result.Substituted is set. Re-running overwrites the file.
func Export(stack *raster.DataArray, year int, path string, opts ...Option) (*Result, error) {
	o := options{nodata: DefaultNodata, compression: geotiff.CompressionLZW, defaultCRS: DefaultCRS}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = GetLogger()
	}
	log = log.With(logger.Int("year", year), logger.String("stage", "export"))
	if o.state != "" {
		log = log.With(logger.String("state", o.state))
	}

	if stack == nil {
		return nil, validationError(fmt.Errorf("nil stack"), year)
	}
	if o.nodata < 0 || o.nodata > 255 {
		return nil, validationError(fmt.Errorf("nodata %d does not fit an 8-bit band", o.nodata), year)
	}

	res := &Result{Path: path, Year: year, RepresentedYear: year}
	slice, err := pickSlice(stack, year, res)
	if err != nil {
		return nil, err
	}
	if res.Substituted {
		log.Warn("requested year not found in time labels, exporting first available slice",
			logger.String("label", res.Label))
	}

	if slice.Data.Rank() != 2 {
		return nil, validationError(fmt.Errorf("slice has dims %v, want (y, x)", slice.Dims), year)
	}
	res.Height, res.Width = slice.Data.Shape[0], slice.Data.Shape[1]

	transform, ok := slice.Transform()
	if !ok {
		log.Warn("slice has no spatial coordinates, writing zero-origin transform")
	}

	crsID := slice.CRS()
	if crsID == "" {
		crsID = o.defaultCRS
	}
	crs, err := geo.ParseCRS(crsID)
	if err != nil {
		return nil, err
	}

	pix := make([]uint8, len(slice.Data.Values))
	for i, v := range slice.Data.Values {
		if v < 0 || v > 255 {
			return nil, validationError(fmt.Errorf("value %d at cell %d does not fit an 8-bit band", v, i), year)
		}
		pix[i] = uint8(v)
	}

	md := geotiff.Metadata{
		EPSG:            crs.EPSG,
		Geographic:      crs.Geographic,
		Transform:       transform,
		HasNodata:       true,
		Nodata:          float64(o.nodata),
		Description:     fmt.Sprintf("woody vegetation classification %d", res.RepresentedYear),
		BandDescription: strconv.Itoa(res.RepresentedYear),
		Compression:     o.compression,
		Items: map[string]string{
			"requested_year": strconv.Itoa(year),
			"time_label":     res.Label,
			"year_match":     string(res.Match),
		},
	}
	if c := stack.Attrs.String(raster.AttrClassification); c != "" {
		md.Items["classification"] = c
	}
	if p := stack.Attrs.String(raster.AttrProductID); p != "" {
		md.Items["product_id"] = p
	}
	if stack.Attrs.Bool(raster.AttrSynthetic) {
		md.Items["synthetic"] = "true"
	}

	band := geotiff.Band{Width: res.Width, Height: res.Height, Pix: pix}
	if err := geotiff.WriteFile(path, band, md); err != nil {
		log.Error("failed to write raster", logger.String("path", path), logger.Error(err))
		return nil, err
	}

	log.Info("exported yearly raster",
		logger.String("path", path),
		logger.String("match", string(res.Match)),
		logger.Int("width", res.Width),
		logger.Int("height", res.Height))
	return res, nil
}

// pickSlice resolves the 2-D slice to export and fills the match fields.
func pickSlice(stack *raster.DataArray, year int, res *Result) (*raster.DataArray, error) {
	if stack.Axis(raster.DimTime) < 0 {
		label := stack.Attrs.String(raster.AttrTime)
		c := raster.Coord{Dim: raster.DimTime, Strings: []string{label}}
		res.Label = label
		if _, ok := (labelContains{}).find(c, year); ok && label != "" {
			res.Match = MatchContains
		} else {
			res.Match = MatchFallback
		}
		res.Substituted = res.Match.Substituted()
		return stack, nil
	}

	tc, hasLabels := stack.Coords[raster.DimTime]
	if !hasLabels {
		n := stack.Size(raster.DimTime)
		labels := make([]string, n)
		tc = raster.Coord{Dim: raster.DimTime, Strings: labels}
	}
	idx, match, ok := SelectYear(tc, year)
	if !ok {
		return nil, validationError(fmt.Errorf("stack has no time slices"), year)
	}
	slice, err := stack.TimeSlice(idx)
	if err != nil {
		return nil, validationError(err, year)
	}
	res.Index = idx
	res.Label = tc.Label(idx)
	res.Match = match
	res.Substituted = match.Substituted()
	res.RepresentedYear = representedYear(tc, idx, year)
	return slice, nil
}

func validationError(err error, year int) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryValidation).
		Context("year", year).
		Build()
}

package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// GetLogger returns the geo module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("geo")
}

// AreaOfInterest is the polygonal boundary that constrains every raster
// request for a region. It is immutable after LoadAOI returns.
type AreaOfInterest struct {
	Name           string
	Path           string
	Geometry       orb.MultiPolygon
	CRS            CRS
	BufferDistance float64
}

// Bound returns the bounding box in the AOI's own CRS.
func (a *AreaOfInterest) Bound() orb.Bound {
	return a.Geometry.Bound()
}

// BoundsIn returns the bounding box expressed in another CRS.
func (a *AreaOfInterest) BoundsIn(c CRS) (orb.Bound, error) {
	return TransformBound(a.Bound(), a.CRS, c)
}

// In returns a copy of the AOI reprojected to c.
func (a *AreaOfInterest) In(c CRS) (*AreaOfInterest, error) {
	g, err := Transform(a.Geometry, a.CRS, c)
	if err != nil {
		return nil, err
	}
	out := *a
	out.Geometry = g.(orb.MultiPolygon)
	out.CRS = c
	return &out, nil
}

// AreaKm2 returns the planar area in square kilometres, measured in the
// Australian Albers equal-area projection.
func (a *AreaOfInterest) AreaKm2() (float64, error) {
	g := orb.Geometry(a.Geometry)
	if a.CRS.EPSG != EPSGAustralianAlbers && a.CRS.EPSG != EPSGGDA2020Albers {
		var err error
		if g, err = Transform(a.Geometry, a.CRS, AustralianAlbers); err != nil {
			return 0, err
		}
	}
	return planar.Area(g) / 1e6, nil
}

// Option configures LoadAOI.
type Option func(*loadOptions)

type loadOptions struct {
	buffer     float64
	defaultCRS CRS
	log        logger.Logger
}

// WithBuffer expands the boundary by a distance in metres.
func WithBuffer(meters float64) Option {
	return func(o *loadOptions) { o.buffer = meters }
}

// WithDefaultCRS sets the CRS assumed when the file does not declare one.
func WithDefaultCRS(c CRS) Option {
	return func(o *loadOptions) { o.defaultCRS = c }
}

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *loadOptions) { o.log = l }
}

// geojsonProbe reads the members orb does not model.
type geojsonProbe struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
			Code int    `json:"code"`
		} `json:"properties"`
	} `json:"crs"`
}

// LoadAOI reads a GeoJSON boundary file. Geographic boundaries that are
// buffered are reprojected to EPSG:3577 first and stay in that CRS.
func LoadAOI(path string, opts ...Option) (*AreaOfInterest, error) {
	o := loadOptions{defaultCRS: WGS84}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = GetLogger()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(fmt.Errorf("%w: %s (run %q to fetch it)", ErrBoundaryNotFound, path, BoundaryCommand)).
				Component("geo").
				Category(errors.CategoryNotFound).
				Context("path", path).
				Build()
		}
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var probe geojsonProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, parseError(err, path)
	}

	var geoms []orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, parseError(err, path)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, parseError(err, path)
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, parseError(err, path)
		}
		geoms = append(geoms, g.Geometry())
	}

	var polys orb.MultiPolygon
	for _, g := range geoms {
		polys = collectPolygons(polys, g, log)
	}
	if len(polys) == 0 {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrEmptyGeometry, path)).
			Component("geo").
			Category(errors.CategoryGeometry).
			Context("path", path).
			Build()
	}

	crs := o.defaultCRS
	if crs.IsZero() {
		crs = WGS84
	}
	if probe.CRS != nil {
		id := probe.CRS.Properties.Name
		if id == "" && probe.CRS.Properties.Code != 0 {
			id = fmt.Sprintf("EPSG:%d", probe.CRS.Properties.Code)
		}
		if crs, err = ParseCRS(id); err != nil {
			return nil, err
		}
	}

	aoi := &AreaOfInterest{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:     path,
		Geometry: polys,
		CRS:      crs,
	}

	if o.buffer != 0 {
		if err := aoi.buffer(o.buffer, log); err != nil {
			return nil, err
		}
	}

	log.Debug("loaded area of interest",
		logger.String("path", path),
		logger.Int("polygons", len(aoi.Geometry)),
		logger.String("crs", aoi.CRS.String()),
		logger.Float64("buffer_m", aoi.BufferDistance))
	return aoi, nil
}

// buffer applies the one-time metric expansion.
func (a *AreaOfInterest) buffer(meters float64, log logger.Logger) error {
	if meters < 0 {
		return errors.Newf("buffer distance must not be negative, got %v", meters).
			Component("geo").
			Category(errors.CategoryValidation).
			Context("path", a.Path).
			Build()
	}

	if a.CRS.Geographic {
		projected, err := a.In(AustralianAlbers)
		if err != nil {
			return err
		}
		log.Debug("reprojected boundary for metric buffering",
			logger.String("from", a.CRS.String()),
			logger.String("to", AustralianAlbers.String()))
		*a = *projected
	}

	g, err := Buffer(a.Geometry, meters)
	if err != nil {
		return err
	}
	a.Geometry = g.(orb.MultiPolygon)
	a.BufferDistance = meters
	return nil
}

func collectPolygons(dst orb.MultiPolygon, g orb.Geometry, log logger.Logger) orb.MultiPolygon {
	switch geom := g.(type) {
	case nil:
	case orb.Polygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			dst = append(dst, geom)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			dst = collectPolygons(dst, p, log)
		}
	case orb.Collection:
		for _, c := range geom {
			dst = collectPolygons(dst, c, log)
		}
	default:
		log.Warn("skipping non-polygon boundary feature",
			logger.String("geometry_type", g.GeoJSONType()))
	}
	return dst
}

func parseError(err error, path string) error {
	return errors.New(err).
		Component("geo").
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Build()
}

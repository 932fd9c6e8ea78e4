package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// ScanResult counts the outcome of a directory scan.
type ScanResult struct {
	Indexed int
	Skipped int
}

var yearPattern = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)[0-9]{2})(?:[^0-9]|$)`)

// YearFromName extracts a four-digit year from a file name.
func YearFromName(name string) (int, bool) {
	m := yearPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

// Scan indexes every GeoTIFF under dir as product. When year is zero the
// year is taken from each file name. Unreadable files and files without a
// resolvable CRS are skipped with a warning.
func (s *Store) Scan(ctx context.Context, dir, product string, year int) (ScanResult, error) {
	var res ScanResult
	log := s.log.With(logger.String("dir", dir), logger.String("product", product))

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".tif" && ext != ".tiff" {
			return nil
		}

		ds, reason := describe(path, product, year)
		if ds == nil {
			res.Skipped++
			log.Warn("skipping file", logger.String("path", path), logger.String("reason", reason))
			return nil
		}
		if info, err := d.Info(); err == nil {
			ds.Size = info.Size()
			ds.ModTime = info.ModTime()
		}
		if err := s.Upsert(ctx, ds); err != nil {
			return err
		}
		res.Indexed++
		return nil
	})
	if err != nil {
		if errors.IsCategory(err, errors.CategoryDatabase) || errors.Is(err, context.Canceled) {
			return res, err
		}
		return res, errors.New(err).
			Component("index").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	log.Info("scan complete",
		logger.Int("indexed", res.Indexed),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

// describe reads a tile header into a Dataset row. A nil row comes with
// the reason it was skipped.
func describe(path, product string, year int) (*Dataset, string) {
	if year == 0 {
		y, ok := YearFromName(path)
		if !ok {
			return nil, "no year in file name"
		}
		year = y
	}
	r, err := geotiff.ReadFile(path)
	if err != nil {
		return nil, err.Error()
	}
	if r.Meta.EPSG == 0 {
		return nil, "no EPSG code in GeoKeyDirectory"
	}
	crs, err := geo.LookupEPSG(r.Meta.EPSG)
	if err != nil {
		return nil, err.Error()
	}

	native := pixelBound(r)
	lonlat, err := geo.TransformBound(native, crs, geo.WGS84)
	if err != nil {
		return nil, err.Error()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Dataset{
		Product:   product,
		Year:      year,
		Path:      abs,
		CRS:       crs.String(),
		MinX:      native.Min[0],
		MinY:      native.Min[1],
		MaxX:      native.Max[0],
		MaxY:      native.Max[1],
		West:      lonlat.Min[0],
		South:     lonlat.Min[1],
		East:      lonlat.Max[0],
		North:     lonlat.Max[1],
		Width:     r.Width,
		Height:    r.Height,
		HasNodata: r.Meta.HasNodata,
		Nodata:    r.Meta.Nodata,
	}, ""
}

// pixelBound maps the raster corners through its transform.
func pixelBound(r *geotiff.Raster) orb.Bound {
	t := r.Meta.Transform
	w, h := float64(r.Width), float64(r.Height)
	x, y := t.Apply(0, 0)
	b := orb.Point{x, y}.Bound()
	for _, c := range [][2]float64{{w, 0}, {0, h}, {w, h}} {
		x, y := t.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

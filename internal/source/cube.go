package source

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/index"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// TileIndex finds local tiles. *index.Store implements it.
type TileIndex interface {
	Query(ctx context.Context, product string, startYear, endYear int, lonlat orb.Bound) ([]index.Dataset, error)
}

// Cube reads land cover from locally indexed GeoTIFF tiles.
type Cube struct {
	index TileIndex
	guard *MemoryGuard
	log   logger.Logger
}

// CubeOption configures the cube strategy.
type CubeOption func(*Cube)

// WithCubeGuard sets the memory guard.
func WithCubeGuard(g *MemoryGuard) CubeOption {
	return func(c *Cube) { c.guard = g }
}

// WithCubeLogger injects a logger.
func WithCubeLogger(l logger.Logger) CubeOption {
	return func(c *Cube) { c.log = l }
}

// NewCube creates the local cube strategy.
func NewCube(idx TileIndex, opts ...CubeOption) *Cube {
	c := &Cube{index: idx}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
	}
	return c
}

func (c *Cube) Name() string { return "cube" }

func (c *Cube) Capability() Capability { return CapabilityReal }

// Fetch mosaics the indexed tiles of each requested year onto the target
// grid.
func (c *Cube) Fetch(ctx context.Context, req Request) (*raster.Dataset, error) {
	if c.index == nil {
		return nil, unavailable(c.Name(), "no tile index configured")
	}
	lonlat, err := req.AOI.BoundsIn(geo.WGS84)
	if err != nil {
		return nil, err
	}
	rows, err := c.index.Query(ctx, req.ProductID, req.StartYear, req.EndYear, lonlat)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, unavailable(c.Name(), "no indexed tiles intersect the area of interest")
	}

	grid, err := targetGrid(req)
	if err != nil {
		return nil, err
	}
	years := req.Years()
	if err := c.guard.Check(int64(len(years)) * int64(grid.Cells())); err != nil {
		return nil, err
	}

	byYear := make(map[int][]index.Dataset)
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r)
	}

	log := c.log.With(logger.String("state", req.State), logger.String("strategy", c.Name()))
	planes := make([]raster.Array, 0, len(years))
	var missing []int
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var tiles []tile
		for _, row := range byYear[year] {
			r, err := geotiff.ReadFile(row.Path)
			if err != nil {
				log.Warn("indexed tile unreadable, skipping",
					logger.Int("year", year),
					logger.String("path", row.Path),
					logger.Error(err))
				continue
			}
			fallback := req.CRS
			if parsed, err := geo.ParseCRS(row.CRS); err == nil {
				fallback = parsed
			}
			t, err := tileFromRaster(r, fallback)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, t)
		}
		if len(tiles) == 0 {
			log.Warn("no local tiles for year", logger.Int("year", year))
			planes = append(planes, emptyPlane(grid))
			missing = append(missing, year)
			continue
		}
		plane, filled, err := mosaic(grid, req.CRS, tiles, DefaultNodata)
		if err != nil {
			return nil, err
		}
		if filled == 0 {
			log.Warn("local tiles do not cover the area for year", logger.Int("year", year))
			planes = append(planes, plane)
			missing = append(missing, year)
			continue
		}
		log.Debug("mosaicked local tiles",
			logger.Int("year", year),
			logger.Int("tiles", len(tiles)),
			logger.Int("cells_filled", filled))
		planes = append(planes, plane)
	}
	if len(missing) == len(years) {
		return nil, unavailable(c.Name(), "no readable tiles for any requested year")
	}
	return stackDataset(req, grid, planes, c.Name(), missing, nil)
}

package source

import (
	"maps"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// tile is a decoded source raster with its georeferencing.
type tile struct {
	data      raster.Array // (y, x)
	transform raster.Transform
	crs       geo.CRS
	nodata    int32
	hasNodata bool
}

func tileFromRaster(r *geotiff.Raster, fallback geo.CRS) (tile, error) {
	t := tile{data: r.Data, transform: r.Meta.Transform, crs: fallback}
	if r.Meta.EPSG != 0 {
		c, err := geo.LookupEPSG(r.Meta.EPSG)
		if err != nil {
			return tile{}, err
		}
		t.crs = c
	}
	t.nodata, t.hasNodata = r.Nodata()
	return t, nil
}

// targetGrid is the output grid covering the AOI in the request CRS.
func targetGrid(req Request) (raster.Grid, error) {
	b, err := req.AOI.BoundsIn(req.CRS)
	if err != nil {
		return raster.Grid{}, err
	}
	return raster.NewGrid(b, req.Resolution, req.CRS.String()), nil
}

// mosaic resamples tiles onto grid by nearest neighbour. Earlier tiles win
// where tiles overlap; uncovered cells hold nodata. It returns the number of
// cells filled.
func mosaic(grid raster.Grid, gridCRS geo.CRS, tiles []tile, nodata int32) (raster.Array, int, error) {
	out := raster.NewArray(grid.Height, grid.Width)
	for i := range out.Values {
		out.Values[i] = nodata
	}
	filled := make([]bool, len(out.Values))
	count := 0

	for _, t := range tiles {
		if t.data.Rank() != 2 {
			continue
		}
		if _, _, err := t.transform.Invert(0, 0); err != nil {
			continue
		}
		th, tw := t.data.Shape[0], t.data.Shape[1]
		var proj orb.Projection
		if t.crs.EPSG != gridCRS.EPSG {
			p, err := geo.Projection(gridCRS, t.crs)
			if err != nil {
				return raster.Array{}, 0, err
			}
			proj = p
		}
		for row := range grid.Height {
			for col := range grid.Width {
				i := row*grid.Width + col
				if filled[i] {
					continue
				}
				x, y := grid.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
				if proj != nil {
					p := proj(orb.Point{x, y})
					x, y = p[0], p[1]
				}
				fc, fr, _ := t.transform.Invert(x, y)
				c, r := int(math.Floor(fc)), int(math.Floor(fr))
				if c < 0 || r < 0 || c >= tw || r >= th {
					continue
				}
				v := t.data.Values[r*tw+c]
				if t.hasNodata && v == t.nodata {
					continue
				}
				out.Values[i] = v
				filled[i] = true
				count++
			}
		}
	}
	return out, count, nil
}

// stackDataset wraps per-year planes into the dataset shape shared by all
// strategies. missing names the years whose plane is all nodata.
func stackDataset(req Request, grid raster.Grid, planes []raster.Array, sourceName string, missing []int, extra raster.Attrs) (*raster.Dataset, error) {
	data, err := raster.Stack(planes)
	if err != nil {
		return nil, err
	}
	da, err := raster.NewDataArray(VariableName,
		[]string{raster.DimTime, raster.DimY, raster.DimX}, data,
		[]raster.Coord{
			raster.TimeCoord(raster.DimTime, raster.YearLabels(req.StartYear, req.EndYear)),
			raster.FloatCoord(raster.DimY, grid.YCoords()),
			raster.FloatCoord(raster.DimX, grid.XCoords()),
		}, nil)
	if err != nil {
		return nil, err
	}
	attrs := raster.Attrs{
		raster.AttrCRS:        req.CRS.String(),
		raster.AttrResolution: req.Resolution,
		raster.AttrProductID:  req.ProductID,
		raster.AttrSource:     sourceName,
		raster.AttrNodata:     DefaultNodata,
	}
	if len(missing) > 0 {
		attrs[raster.AttrMissingYears] = slices.Clone(missing)
	}
	maps.Copy(attrs, extra)
	da.Attrs = attrs.Clone()
	ds := raster.NewDataset(attrs)
	ds.Add(da)
	return ds, nil
}

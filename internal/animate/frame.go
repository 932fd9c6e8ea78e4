package animate

import (
	"image"
	"image/color"

	"github.com/aus-land-clearing/landcover/internal/geotiff"
)

// grayPalette maps index i to gray level i.
var grayPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}()

// frame is one rendered raster.
type frame struct {
	img   *image.Paletted
	blank bool
}

func loadFrame(path string) (*frame, error) {
	r, err := geotiff.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return render(r), nil
}

// render stretches the raster linearly onto 0..255. Nodata cells are ignored
// for the range and drawn black. A raster with no valid cells, or a single
// value, renders as an all-zero frame.
func render(r *geotiff.Raster) *frame {
	img := image.NewPaletted(image.Rect(0, 0, r.Width, r.Height), grayPalette)
	nodata, hasNodata := r.Nodata()
	lo, hi, ok := r.Data.MinMax(nodata, hasNodata)
	if !ok || lo == hi {
		return &frame{img: img, blank: true}
	}
	span := float64(hi - lo)
	for i, v := range r.Data.Values {
		if hasNodata && v == nodata {
			continue
		}
		img.Pix[(i/r.Width)*img.Stride+i%r.Width] = uint8(float64(v-lo) / span * 255)
	}
	return &frame{img: img}
}

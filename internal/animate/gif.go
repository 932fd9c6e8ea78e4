package animate

import (
	"image"
	"image/gif"
	"math"
	"os"
	"time"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// gifDelay converts a frame duration to GIF centiseconds, at least 1.
func gifDelay(d time.Duration) int {
	return max(1, int(math.Round(d.Seconds()*100)))
}

func encodeGIF(frames []*frame, out string, delay time.Duration, loop int) error {
	anim := &gif.GIF{LoopCount: loop}
	cs := gifDelay(delay)
	w, h := 0, 0
	for _, f := range frames {
		anim.Image = append(anim.Image, f.img)
		anim.Delay = append(anim.Delay, cs)
		w = max(w, f.img.Rect.Dx())
		h = max(h, f.img.Rect.Dy())
	}
	anim.Config = image.Config{ColorModel: grayPalette, Width: w, Height: h}

	file, err := os.Create(out)
	if err != nil {
		return errors.New(err).
			Component("animate").
			Category(errors.CategoryFileIO).
			Context("path", out).
			Build()
	}
	if err := gif.EncodeAll(file, anim); err != nil {
		_ = file.Close()
		return errors.New(err).
			Component("animate").
			Category(errors.CategoryAnimation).
			Context("path", out).
			Build()
	}
	if err := file.Close(); err != nil {
		return errors.New(err).
			Component("animate").
			Category(errors.CategoryFileIO).
			Context("path", out).
			Build()
	}
	return nil
}

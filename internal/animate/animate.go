// Package animate assembles yearly rasters into a looping animation. Each
// raster becomes one grayscale frame stretched to its own value range.
package animate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// Output formats.
const (
	FormatGIF = "gif"
	FormatMP4 = "mp4"
)

// DefaultFPS is the frame rate used when none is configured.
const DefaultFPS = 2.0

var (
	// ErrEmptyInput is returned when no input rasters were given or matched.
	ErrEmptyInput = errors.NewStd("no input rasters to animate")
	// ErrCodecUnavailable is returned when the encoder for the requested
	// format is not installed. Callers treat it as skippable.
	ErrCodecUnavailable = errors.NewStd("animation codec unavailable")
)

// GetLogger returns the animate module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("animate")
}

// Inputs resolves the ordered list of rasters to animate.
type Inputs interface {
	Resolve() ([]string, error)
}

type fileList []string

// Files animates the given rasters in the given order.
func Files(paths []string) Inputs {
	return fileList(slices.Clone(paths))
}

func (f fileList) Resolve() ([]string, error) {
	if len(f) == 0 {
		return nil, emptyInput("no files given")
	}
	return []string(f), nil
}

type globInput struct {
	dir, pattern string
}

// Glob animates the rasters in dir matching pattern, sorted lexically.
// File names must sort chronologically, e.g. zero-padded years.
func Glob(dir, pattern string) Inputs {
	return globInput{dir: dir, pattern: pattern}
}

func (g globInput) Resolve() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(g.dir, g.pattern))
	if err != nil {
		return nil, errors.New(err).
			Component("animate").
			Category(errors.CategoryValidation).
			Context("pattern", g.pattern).
			Build()
	}
	if len(matches) == 0 {
		return nil, emptyInput(fmt.Sprintf("nothing matches %s in %s", g.pattern, g.dir))
	}
	slices.Sort(matches)
	return matches, nil
}

func emptyInput(detail string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrEmptyInput, detail)).
		Component("animate").
		Category(errors.CategoryValidation).
		Build()
}

// Artifact describes a written animation.
type Artifact struct {
	Path   string
	Frames int
	Format string
}

type options struct {
	fps        float64
	frameDelay time.Duration
	loop       int
	format     string
	ffmpegPath string
	log        logger.Logger
}

// Option configures Animate.
type Option func(*options)

// WithFPS sets the frame rate.
func WithFPS(fps float64) Option {
	return func(o *options) { o.fps = fps }
}

// WithFrameDuration sets how long each frame shows. It overrides WithFPS.
func WithFrameDuration(d time.Duration) Option {
	return func(o *options) { o.frameDelay = d }
}

// WithLoop sets the GIF loop count; 0 loops forever.
func WithLoop(n int) Option {
	return func(o *options) { o.loop = n }
}

// WithFormat forces the output format. By default it follows the output
// file extension.
func WithFormat(format string) Option {
	return func(o *options) { o.format = strings.ToLower(format) }
}

// WithFFmpegPath sets the ffmpeg binary used for MP4 output.
func WithFFmpegPath(path string) Option {
	return func(o *options) { o.ffmpegPath = path }
}

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// frameDuration resolves the per-frame display time.
func (o *options) frameDuration() (time.Duration, error) {
	if o.frameDelay > 0 {
		return o.frameDelay, nil
	}
	if o.fps <= 0 {
		return 0, errors.Newf("frame rate must be positive, got %g", o.fps).
			Component("animate").
			Category(errors.CategoryValidation).
			Build()
	}
	return time.Duration(float64(time.Second) / o.fps), nil
}

// Animate renders one frame per input raster and encodes them to out.
func Animate(ctx context.Context, inputs Inputs, out string, opts ...Option) (*Artifact, error) {
	o := &options{fps: DefaultFPS}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = GetLogger()
	}
	if o.format == "" {
		o.format = FormatGIF
		if strings.EqualFold(filepath.Ext(out), ".mp4") {
			o.format = FormatMP4
		}
	}
	if o.format != FormatGIF && o.format != FormatMP4 {
		return nil, errors.Newf("unsupported animation format %q", o.format).
			Component("animate").
			Category(errors.CategoryValidation).
			Build()
	}
	delay, err := o.frameDuration()
	if err != nil {
		return nil, err
	}

	files, err := inputs.Resolve()
	if err != nil {
		return nil, err
	}
	log := o.log.With(logger.String("output", out), logger.String("format", o.format))

	frames := make([]*frame, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := loadFrame(path)
		if err != nil {
			return nil, err
		}
		if f.blank {
			log.Warn("raster has no value range, writing blank frame", logger.String("path", path))
		}
		frames = append(frames, f)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, errors.New(err).
			Component("animate").
			Category(errors.CategoryFileIO).
			Context("path", out).
			Build()
	}

	switch o.format {
	case FormatMP4:
		err = encodeMP4(ctx, frames, out, delay, o.ffmpegPath, log)
	default:
		err = encodeGIF(frames, out, delay, o.loop)
	}
	if err != nil {
		return nil, err
	}

	log.Info("animation written",
		logger.Int("frames", len(frames)),
		logger.Duration("frame_duration", delay))
	return &Artifact{Path: out, Frames: len(frames), Format: o.format}, nil
}

package animate

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// encodeMP4 pipes PNG frames through ffmpeg.
func encodeMP4(ctx context.Context, frames []*frame, out string, delay time.Duration, ffmpegPath string, log logger.Logger) error {
	bin, err := conf.ResolveTool(ffmpegPath, conf.FfmpegBinaryName())
	if err != nil {
		return errors.New(fmt.Errorf("%w: ffmpeg: %w", ErrCodecUnavailable, err)).
			Component("animate").
			Category(errors.CategoryAnimation).
			Context("format", FormatMP4).
			Build()
	}

	rate := strconv.FormatFloat(float64(time.Second)/float64(delay), 'f', -1, 64)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "image2pipe", "-framerate", rate, "-c:v", "png", "-i", "-",
		// yuv420p needs even dimensions
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	}
	log.Debug("running ffmpeg", logger.String("binary", bin), logger.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return ffmpegError(err, "", out)
	}
	if err := cmd.Start(); err != nil {
		return ffmpegError(err, "", out)
	}

	writeErr := writeFrames(stdin, frames)
	_ = stdin.Close()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ffmpegError(err, stderr.String(), out)
	}
	if writeErr != nil {
		return ffmpegError(writeErr, stderr.String(), out)
	}
	return nil
}

func writeFrames(w io.Writer, frames []*frame) error {
	for _, f := range frames {
		if err := png.Encode(w, f.img); err != nil {
			return err
		}
	}
	return nil
}

func ffmpegError(err error, stderr, out string) error {
	b := errors.New(err).
		Component("animate").
		Category(errors.CategoryCommandExecution).
		Context("path", out)
	if s := strings.TrimSpace(stderr); s != "" {
		b = b.Context("stderr", s)
	}
	return b.Build()
}

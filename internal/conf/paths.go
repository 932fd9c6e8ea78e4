package conf

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// ConfigFileName is the file searched for in each config directory.
const ConfigFileName = "config.yaml"

// SearchPaths lists the directories searched for config.yaml, most specific
// first: the working directory, the user config directory and, outside
// Windows, /etc/landcover.
func SearchPaths() ([]string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategorySystem).
			Context("operation", "user-config-dir").
			Build()
	}
	paths := []string{".", filepath.Join(userDir, "landcover")}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/landcover")
	}
	return paths, nil
}

// AOIPath returns the boundary path configured for a state, matching the
// code case-insensitively.
func (l *LandcoverSettings) AOIPath(state string) (string, bool) {
	path, ok := l.AOIPaths[strings.ToLower(state)]
	return path, ok
}

// FfmpegBinaryName is the ffmpeg executable name on this OS.
func FfmpegBinaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// ResolveTool returns configured when it exists, otherwise looks tool up
// on PATH. Either failure is a NotFound error.
func ResolveTool(configured, tool string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", errors.New(err).
				Component("configuration").
				Category(errors.CategoryNotFound).
				Context("tool", tool).
				Build()
		}
		return configured, nil
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errors.New(err).
			Component("configuration").
			Category(errors.CategoryNotFound).
			Context("tool", tool).
			Build()
	}
	return path, nil
}

// Package secrets resolves credential settings that may reference environment
// variables or mounted secret files instead of holding the value inline.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// maxFileSize bounds secret file reads; credentials are short.
const maxFileSize = 64 * 1024

// ExpandString expands ${VAR} and ${VAR:-default} references in s.
// A referenced variable that is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, such as a Docker or Kubernetes mounted
// secret, with trailing newlines removed. The content is never logged.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("path", clean).
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("secret path is not a regular file").
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("path", clean).
			Build()
	}
	if info.Size() > maxFileSize {
		return "", errors.Newf("secret file larger than %d bytes", maxFileSize).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("path", clean).
			Build()
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", clean).
			Build()
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", errors.Newf("secret file is empty").
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("path", clean).
			Build()
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty yields "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}

package errors

import (
	"runtime"
	"strings"
)

const modulePrefix = "github.com/aus-land-clearing/landcover/"

// componentAliases renames packages whose directory name is not the
// component name used in logs and telemetry.
var componentAliases = map[string]string{
	"conf": "configuration",
	"cmd":  "cli",
}

// callerComponent names the landcover package skip frames above the
// function that called it.
func callerComponent(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return ComponentUnknown
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ComponentUnknown
	}
	return componentFromFunc(fn.Name())
}

// componentFromFunc maps a qualified function name such as
// ".../landcover/internal/source.(*STAC).Fetch" to "source". Nested
// packages report their top directory.
func componentFromFunc(name string) string {
	rest, ok := strings.CutPrefix(name, modulePrefix)
	if !ok {
		return ComponentUnknown
	}
	rest = strings.TrimPrefix(rest, "internal/")

	// the package path ends at the first dot after its last slash
	start := max(strings.LastIndex(rest, "/"), 0)
	if dot := strings.Index(rest[start:], "."); dot >= 0 {
		rest = rest[:start+dot]
	}
	top, _, _ := strings.Cut(rest, "/")
	if alias, ok := componentAliases[top]; ok {
		return alias
	}
	return top
}

// componentCategories is the fallback category per component.
var componentCategories = map[string]ErrorCategory{
	"geo":           CategoryGeometry,
	"boundary":      CategoryGeometry,
	"source":        CategoryFetch,
	"index":         CategoryDatabase,
	"geotiff":       CategoryRaster,
	"raster":        CategoryRaster,
	"reclass":       CategoryRaster,
	"export":        CategoryExport,
	"animate":       CategoryAnimation,
	"publish":       CategoryPublish,
	"pipeline":      CategoryState,
	"configuration": CategoryConfiguration,
}

// detectCategory infers a category from an existing EnhancedError in the
// chain, then from the message, then from the component.
func detectCategory(err error, component string) ErrorCategory {
	var inner *EnhancedError
	if As(err, &inner) && inner.Category != "" {
		return inner.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context canceled"):
		return CategoryCancellation
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return CategoryNotFound
	case strings.Contains(msg, "permission denied"):
		return CategoryFileIO
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial "):
		return CategoryNetwork
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return CategoryValidation
	}

	if c, ok := componentCategories[component]; ok {
		return c
	}
	return CategoryGeneric
}

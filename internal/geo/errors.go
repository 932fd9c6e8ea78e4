package geo

import "github.com/aus-land-clearing/landcover/internal/errors"

var (
	// ErrBoundaryNotFound is returned when the boundary file does not exist.
	ErrBoundaryNotFound = errors.NewStd("boundary file not found")
	// ErrEmptyGeometry is returned when a boundary has no polygonal features.
	ErrEmptyGeometry = errors.NewStd("boundary contains no polygon features")
	// ErrUnresolvableCRS is returned for CRS identifiers outside the registry.
	ErrUnresolvableCRS = errors.NewStd("unresolvable coordinate reference system")
)

// BoundaryCommand names the command that produces boundary files.
const BoundaryCommand = "landcover boundaries"

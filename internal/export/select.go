package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Match describes how a time slice was chosen for a requested year.
type Match string

const (
	// MatchExact is a time label equal to 1 January of the year.
	MatchExact Match = "exact"
	// MatchContains is a label whose text contains the year.
	MatchContains Match = "contains"
	// MatchFallback is the first slice, used when nothing matched.
	MatchFallback Match = "fallback"
)

// Substituted reports whether the slice may belong to another year.
func (m Match) Substituted() bool {
	return m == MatchFallback
}

// yearSelector is one strategy for locating a year on the time axis.
type yearSelector interface {
	match() Match
	find(c raster.Coord, year int) (int, bool)
}

type exactDate struct{}

func (exactDate) match() Match { return MatchExact }

func (exactDate) find(c raster.Coord, year int) (int, bool) {
	if c.Times == nil {
		return 0, false
	}
	ref := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, t := range c.Times {
		if t.Equal(ref) {
			return i, true
		}
	}
	return 0, false
}

type labelContains struct{}

func (labelContains) match() Match { return MatchContains }

func (labelContains) find(c raster.Coord, year int) (int, bool) {
	y := strconv.Itoa(year)
	for i := range c.Len() {
		if strings.Contains(c.Label(i), y) {
			return i, true
		}
	}
	return 0, false
}

type firstAvailable struct{}

func (firstAvailable) match() Match { return MatchFallback }

func (firstAvailable) find(c raster.Coord, _ int) (int, bool) {
	return 0, c.Len() > 0
}

// selectors run in priority order.
var selectors = []yearSelector{exactDate{}, labelContains{}, firstAvailable{}}

// SelectYear locates the slice for year on a time coordinate. ok is false
// only when the coordinate is empty.
func SelectYear(c raster.Coord, year int) (index int, match Match, ok bool) {
	for _, s := range selectors {
		if i, found := s.find(c, year); found {
			return i, s.match(), true
		}
	}
	return 0, "", false
}

// representedYear returns the calendar year a slice label stands for.
func representedYear(c raster.Coord, i, fallback int) int {
	if i >= c.Len() {
		return fallback
	}
	if c.Times != nil {
		return c.Times[i].Year()
	}
	label := c.Label(i)
	if len(label) >= 4 {
		if y, err := strconv.Atoi(label[:4]); err == nil {
			return y
		}
	}
	return fallback
}

package pipeline

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aus-land-clearing/landcover/internal/boundary"
	"github.com/aus-land-clearing/landcover/internal/errors"
)

// AllStates selects every configured state.
const AllStates = "all"

// ResolveStates expands a --state value. "all" (or empty) yields the
// configured states; otherwise a comma-separated list of known codes.
func ResolveStates(flag string, configured []string) ([]string, error) {
	flag = strings.ToLower(strings.TrimSpace(flag))
	var codes []string
	if flag == "" || flag == AllStates {
		codes = configured
		if len(codes) == 0 {
			codes = boundary.StateCodes()
		}
	} else {
		codes = strings.Split(flag, ",")
	}

	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || slices.Contains(out, c) {
			continue
		}
		if _, ok := boundary.States[c]; !ok {
			return nil, errors.New(fmt.Errorf("%w: %q (known: %s)", boundary.ErrUnknownState, c,
				strings.Join(boundary.StateCodes(), ", "))).
				Component("pipeline").
				Category(errors.CategoryValidation).
				Build()
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.Newf("no states selected").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	return out, nil
}

// ParseYears reads "2020" or "2020-2023". An empty value returns fallback.
func ParseYears(s string, fallback []int) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if len(fallback) == 0 {
			return nil, yearsError(s, fmt.Errorf("no years configured"))
		}
		return fallback, nil
	}

	startStr, endStr, isRange := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return nil, yearsError(s, err)
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(strings.TrimSpace(endStr)); err != nil {
			return nil, yearsError(s, err)
		}
	}
	if end < start {
		return nil, yearsError(s, fmt.Errorf("end year %d before start year %d", end, start))
	}

	years := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, y)
	}
	return years, nil
}

func yearsError(s string, err error) error {
	return errors.New(fmt.Errorf("invalid years %q: %w", s, err)).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Build()
}

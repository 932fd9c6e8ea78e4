// Package reclass maps land-cover category codes onto the woody / non-woody
// output alphabet.
package reclass

import (
	"fmt"
	"slices"
	"strings"
)

// Output class values.
const (
	ClassOther    int32 = 0
	ClassWoody    int32 = 1
	ClassNonWoody int32 = 2
)

// ClassMap assigns input codes to output buckets. A code should appear in at
// most one bucket; when it does not, non_woody wins over woody.
type ClassMap struct {
	Woody    []int32 `yaml:"woody" mapstructure:"woody" json:"woody"`
	NonWoody []int32 `yaml:"non_woody" mapstructure:"non_woody" json:"non_woody"`
	Other    []int32 `yaml:"other" mapstructure:"other" json:"other"`
}

// DefaultClassMap is the baseline used when no map is configured: woody {2},
// non_woody {1, 3}, other {0, 4, 5, 6}.
func DefaultClassMap() ClassMap {
	return ClassMap{
		Woody:    []int32{2},
		NonWoody: []int32{1, 3},
		Other:    []int32{0, 4, 5, 6},
	}
}

// IsZero reports whether no bucket has codes.
func (m ClassMap) IsZero() bool {
	return len(m.Woody) == 0 && len(m.NonWoody) == 0 && len(m.Other) == 0
}

// Overlaps returns codes listed in more than one bucket, sorted.
func (m ClassMap) Overlaps() []int32 {
	seen := make(map[int32]int)
	for _, bucket := range [][]int32{m.Woody, m.NonWoody, m.Other} {
		for _, c := range slices.Compact(slices.Sorted(slices.Values(bucket))) {
			seen[c]++
		}
	}
	var out []int32
	for c, n := range seen {
		if n > 1 {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// Validate reports overlapping codes. Overlaps are resolved by precedence,
// so callers treat this as a warning.
func (m ClassMap) Validate() error {
	overlaps := m.Overlaps()
	if len(overlaps) == 0 {
		return nil
	}
	parts := make([]string, len(overlaps))
	for i, c := range overlaps {
		parts[i] = fmt.Sprint(c)
	}
	return fmt.Errorf("class codes in more than one bucket: %s", strings.Join(parts, ", "))
}

// Scheme selects the output encoding.
type Scheme string

const (
	// SchemeTernary writes woody=1, non_woody=2, everything else 0.
	SchemeTernary Scheme = "ternary"
	// SchemeBinary writes woody=1, everything else 0.
	SchemeBinary Scheme = "binary"
)

// ParseScheme accepts "ternary", "binary" or "" (ternary).
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeTernary:
		return SchemeTernary, nil
	case SchemeBinary:
		return SchemeBinary, nil
	default:
		return "", fmt.Errorf("unknown reclassification scheme %q", s)
	}
}

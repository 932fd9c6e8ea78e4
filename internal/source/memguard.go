package source

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// bytesPerCell is the in-memory size of one stack cell.
const bytesPerCell = 4

// MemoryGuard refuses allocations larger than a fraction of available
// memory. A nil guard or a non-positive fraction allows everything.
type MemoryGuard struct {
	fraction  float64
	available func() (uint64, error)
}

// NewMemoryGuard reads available memory from the host.
func NewMemoryGuard(fraction float64) *MemoryGuard {
	return &MemoryGuard{
		fraction: fraction,
		available: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Available, nil
		},
	}
}

// Check reports whether cells stack cells fit the budget. A failed memory
// probe allows the allocation.
func (g *MemoryGuard) Check(cells int64) error {
	if g == nil || g.fraction <= 0 || g.available == nil {
		return nil
	}
	avail, err := g.available()
	if err != nil {
		GetLogger().Debug("memory probe failed, skipping guard")
		return nil
	}
	need := uint64(cells) * bytesPerCell
	budget := uint64(float64(avail) * g.fraction)
	if need > budget {
		return errors.New(fmt.Errorf("stack of %d cells needs %d bytes, budget is %d bytes", cells, need, budget)).
			Component("source").
			Category(errors.CategoryResource).
			Context("cells", cells).
			Context("available_bytes", avail).
			Build()
	}
	return nil
}

package source

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Synthetic grid bounds per axis.
const (
	SyntheticMinCells = 2
	SyntheticMaxCells = 100
)

// DefaultAlphabet is the category set synthetic cells are drawn from.
var DefaultAlphabet = []int32{0, 1, 2, 3, 4, 5, 6}

// Synthetic generates uniformly random categorical stacks over the AOI
// bounds. It is the strategy of last resort.
type Synthetic struct {
	alphabet []int32
	seed     uint64
	guard    *MemoryGuard
	log      logger.Logger
}

// SyntheticOption configures the synthetic strategy.
type SyntheticOption func(*Synthetic)

// WithAlphabet sets the category values drawn.
func WithAlphabet(a []int32) SyntheticOption {
	return func(s *Synthetic) {
		if len(a) > 0 {
			s.alphabet = slices.Clone(a)
		}
	}
}

// WithSeed makes output reproducible. Zero draws a random seed per call.
func WithSeed(seed uint64) SyntheticOption {
	return func(s *Synthetic) { s.seed = seed }
}

// WithSyntheticGuard sets the memory guard.
func WithSyntheticGuard(g *MemoryGuard) SyntheticOption {
	return func(s *Synthetic) { s.guard = g }
}

// WithSyntheticLogger injects a logger.
func WithSyntheticLogger(l logger.Logger) SyntheticOption {
	return func(s *Synthetic) { s.log = l }
}

// NewSynthetic creates the synthetic strategy.
func NewSynthetic(opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{alphabet: slices.Clone(DefaultAlphabet)}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	return s
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Capability() Capability { return CapabilitySynthetic }

// Fetch builds a (time, y, x) stack whose axes span the AOI bounds in the
// request CRS. Each axis has extent/resolution cells clamped to
// [SyntheticMinCells, SyntheticMaxCells].
func (s *Synthetic) Fetch(ctx context.Context, req Request) (*raster.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := req.AOI.BoundsIn(req.CRS)
	if err != nil {
		return nil, err
	}
	width := axisCells(b.Max[0]-b.Min[0], req.Resolution)
	height := axisCells(b.Max[1]-b.Min[1], req.Resolution)
	years := req.Years()
	if err := s.guard.Check(int64(len(years) * width * height)); err != nil {
		return nil, err
	}

	seed := s.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	data := raster.NewArray(len(years), height, width)
	for i := range data.Values {
		data.Values[i] = s.alphabet[rng.IntN(len(s.alphabet))]
	}

	xs := raster.Linspace(b.Min[0], b.Max[0], width)
	ys := raster.Linspace(b.Max[1], b.Min[1], height)
	da, err := raster.NewDataArray(VariableName,
		[]string{raster.DimTime, raster.DimY, raster.DimX}, data,
		[]raster.Coord{
			raster.TimeCoord(raster.DimTime, raster.YearLabels(req.StartYear, req.EndYear)),
			raster.FloatCoord(raster.DimY, ys),
			raster.FloatCoord(raster.DimX, xs),
		}, nil)
	if err != nil {
		return nil, err
	}

	attrs := raster.Attrs{
		raster.AttrCRS:        req.CRS.String(),
		raster.AttrResolution: req.Resolution,
		raster.AttrProductID:  req.ProductID,
		raster.AttrSource:     s.Name(),
		raster.AttrSynthetic:  true,
	}
	da.Attrs = attrs.Clone()
	ds := raster.NewDataset(attrs)
	ds.Add(da)

	s.log.Warn("generated synthetic land-cover stack",
		logger.String("state", req.State),
		logger.Int("width", width),
		logger.Int("height", height),
		logger.Int("years", len(years)))
	return ds, nil
}

func axisCells(extent, res float64) int {
	n := int(extent / res)
	return min(max(n, SyntheticMinCells), SyntheticMaxCells)
}

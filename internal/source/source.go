// Package source obtains multi-year land-cover stacks for an area of
// interest. Strategies are tried in order: real sources first (catalog,
// local cube), a synthetic generator last.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// VariableName is the dataset variable every strategy produces.
const VariableName = "landcover_class"

// DefaultNodata marks cells no source tile covered.
const DefaultNodata int32 = 255

var (
	// ErrStrategyUnavailable means a strategy has nothing to offer for a
	// request, e.g. no catalog items or no indexed tiles.
	ErrStrategyUnavailable = errors.NewStd("source strategy unavailable")
	// ErrChainExhausted means every strategy failed.
	ErrChainExhausted = errors.NewStd("all source strategies failed")
	// ErrRealDataRequired means real strategies failed and synthetic data
	// was not permitted.
	ErrRealDataRequired = errors.NewStd("real data required but no real source succeeded")
)

// GetLogger returns the source module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("source")
}

// Capability distinguishes real observations from generated data.
type Capability int

const (
	// CapabilityReal strategies return observed land cover.
	CapabilityReal Capability = iota
	// CapabilitySynthetic strategies generate placeholder data.
	CapabilitySynthetic
)

func (c Capability) String() string {
	if c == CapabilitySynthetic {
		return "synthetic"
	}
	return "real"
}

// Request describes the stack to obtain.
type Request struct {
	State      string
	AOI        *geo.AreaOfInterest
	StartYear  int
	EndYear    int
	ProductID  string
	Resolution float64 // target cell size in CRS units
	CRS        geo.CRS
}

// Years returns the inclusive year range.
func (r Request) Years() []int {
	var out []int
	for y := r.StartYear; y <= r.EndYear; y++ {
		out = append(out, y)
	}
	return out
}

// Validate checks the request is usable by any strategy.
func (r Request) Validate() error {
	switch {
	case r.AOI == nil:
		return fmt.Errorf("request has no area of interest")
	case r.StartYear > r.EndYear:
		return fmt.Errorf("start year %d after end year %d", r.StartYear, r.EndYear)
	case r.Resolution <= 0:
		return fmt.Errorf("resolution must be positive, got %g", r.Resolution)
	case r.CRS.IsZero():
		return fmt.Errorf("request has no target CRS")
	}
	return nil
}

// Strategy is one way of obtaining a stack.
type Strategy interface {
	Name() string
	Capability() Capability
	Fetch(ctx context.Context, req Request) (*raster.Dataset, error)
}

// Attempt records one strategy invocation.
type Attempt struct {
	Strategy   string
	Capability Capability
	Duration   time.Duration
	Err        error
}

// Result is the outcome of a chain fetch. MissingYears are requested years
// the winning strategy had no data for; their planes hold only nodata.
type Result struct {
	Dataset      *raster.Dataset
	Strategy     string
	Capability   Capability
	MissingYears []int
	Attempts     []Attempt
}

// Synthetic reports whether the stack was generated.
func (r *Result) Synthetic() bool {
	return r != nil && r.Capability == CapabilitySynthetic
}

// Chain tries strategies until one succeeds.
type Chain struct {
	real        []Strategy
	synthetic   []Strategy
	requireReal bool
	log         logger.Logger
	metrics     *metrics.SourceMetrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithRequireReal stops the chain before synthetic strategies.
func WithRequireReal(require bool) ChainOption {
	return func(c *Chain) { c.requireReal = require }
}

// WithChainLogger injects a logger.
func WithChainLogger(l logger.Logger) ChainOption {
	return func(c *Chain) { c.log = l }
}

// WithChainMetrics records attempts.
func WithChainMetrics(m *metrics.SourceMetrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds a chain. Real strategies keep their relative order and
// always run before synthetic ones, whatever order they are passed in.
func NewChain(strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{}
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if s.Capability() == CapabilitySynthetic {
			c.synthetic = append(c.synthetic, s)
		} else {
			c.real = append(c.real, s)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
	}
	return c
}

// Strategies lists strategy names in execution order.
func (c *Chain) Strategies() []string {
	names := make([]string, 0, len(c.real)+len(c.synthetic))
	for _, s := range c.real {
		names = append(names, s.Name())
	}
	for _, s := range c.synthetic {
		names = append(names, s.Name())
	}
	return names
}

// Fetch runs the chain. Strategy failures are logged and recorded in the
// attempt log; only cancellation, an invalid request or exhaustion of the
// chain is returned as an error.
func (c *Chain) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryValidation).
			Context("state", req.State).
			Build()
	}
	log := c.log.With(logger.String("state", req.State), logger.String("stage", "fetch"))
	res := &Result{}

	try := func(s Strategy) (*raster.Dataset, bool, error) {
		start := time.Now()
		ds, err := s.Fetch(ctx, req)
		if err == nil {
			err = checkDataset(ds)
		}
		res.Attempts = append(res.Attempts, Attempt{
			Strategy:   s.Name(),
			Capability: s.Capability(),
			Duration:   time.Since(start),
			Err:        err,
		})
		if err != nil {
			c.metrics.RecordAttempt(s.Name(), metrics.OutcomeFailure)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, errors.New(ctxErr).
					Component("source").
					Category(errors.CategoryCancellation).
					Context("strategy", s.Name()).
					Build()
			}
			log.Warn("source strategy failed, trying next",
				logger.String("strategy", s.Name()),
				logger.Error(err))
			return nil, false, nil
		}
		c.metrics.RecordAttempt(s.Name(), metrics.OutcomeSuccess)
		log.Info("source strategy succeeded",
			logger.String("strategy", s.Name()),
			logger.String("capability", s.Capability().String()),
			logger.Duration("elapsed", time.Since(start)))
		return ds, true, nil
	}

	for _, s := range c.real {
		ds, ok, err := try(s)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Dataset, res.Strategy, res.Capability = ds, s.Name(), CapabilityReal
			res.MissingYears = MissingYears(ds)
			if len(res.MissingYears) > 0 {
				log.Warn("source has no data for some years",
					logger.String("strategy", s.Name()),
					logger.Any("years", res.MissingYears))
			}
			return res, nil
		}
	}

	if c.requireReal {
		return res, errors.New(fmt.Errorf("%w: %w", ErrRealDataRequired, attemptErrors(res.Attempts))).
			Component("source").
			Category(errors.CategoryFetch).
			Context("state", req.State).
			Context("attempts", len(res.Attempts)).
			Build()
	}

	if len(c.real) > 0 {
		log.Warn("no real source succeeded, falling back to synthetic data")
	}
	for _, s := range c.synthetic {
		ds, ok, err := try(s)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Dataset, res.Strategy, res.Capability = ds, s.Name(), CapabilitySynthetic
			return res, nil
		}
	}

	return res, errors.New(fmt.Errorf("%w: %w", ErrChainExhausted, attemptErrors(res.Attempts))).
		Component("source").
		Category(errors.CategoryFetch).
		Context("state", req.State).
		Context("attempts", len(res.Attempts)).
		Build()
}

func attemptErrors(attempts []Attempt) error {
	errs := make([]error, 0, len(attempts))
	for _, a := range attempts {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Strategy, a.Err))
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("no strategies configured")
	}
	return errors.Join(errs...)
}

// MissingYears reads the years a strategy recorded as having no data.
func MissingYears(ds *raster.Dataset) []int {
	if ds == nil {
		return nil
	}
	if v := ds.First(); v != nil {
		if years := v.Attrs.Ints(raster.AttrMissingYears); len(years) > 0 {
			return years
		}
	}
	return ds.Attrs.Ints(raster.AttrMissingYears)
}

// checkDataset rejects empty results so the chain can move on.
func checkDataset(ds *raster.Dataset) error {
	if ds == nil || ds.First() == nil {
		return fmt.Errorf("strategy returned an empty dataset: %w", ErrStrategyUnavailable)
	}
	return nil
}

func unavailable(name, reason string) error {
	return errors.New(fmt.Errorf("%s: %s: %w", name, reason, ErrStrategyUnavailable)).
		Component("source").
		Category(errors.CategoryNotFound).
		Context("strategy", name).
		Build()
}

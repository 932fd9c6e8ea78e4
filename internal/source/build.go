package source

import (
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/httpclient"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
)

// Deps are the collaborators Build wires into strategies. Every field is
// optional.
type Deps struct {
	HTTP    *httpclient.Client
	Index   TileIndex
	Metrics *metrics.SourceMetrics
	Logger  logger.Logger
	// Strict stops the chain before synthetic data.
	Strict bool
}

// Build assembles the strategy chain from settings: catalog, then local
// cube, then synthetic, each only when enabled.
func Build(l *conf.LandcoverSettings, deps Deps) (*Chain, error) {
	log := deps.Logger
	if log == nil {
		log = GetLogger()
	}
	guard := NewMemoryGuard(l.Processing.MaxMemoryFraction)

	var strategies []Strategy
	if l.STAC.Enabled {
		collection := l.STAC.Collection
		if collection == "" {
			collection = l.ProductID
		}
		stac, err := NewSTAC(STACConfig{
			CatalogURL:             l.STAC.CatalogURL,
			Collection:             collection,
			Asset:                  l.STAC.Asset,
			Limit:                  l.STAC.Limit,
			RateLimit:              l.STAC.RateLimit,
			CacheTTL:               l.STAC.CacheTTL,
			MaxConcurrentDownloads: l.STAC.MaxConcurrentDownloads,
		}, deps.HTTP,
			WithSTACGuard(guard),
			WithSTACMetrics(deps.Metrics),
			WithSTACLogger(log))
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, stac)
	}
	if l.Cube.Enabled && deps.Index != nil {
		strategies = append(strategies, NewCube(deps.Index, WithCubeGuard(guard), WithCubeLogger(log)))
	}
	if l.Synthetic.Enabled {
		strategies = append(strategies, NewSynthetic(
			WithAlphabet(l.Synthetic.Alphabet),
			WithSeed(l.Synthetic.Seed),
			WithSyntheticGuard(guard),
			WithSyntheticLogger(log)))
	}

	chain := NewChain(strategies,
		WithRequireReal(deps.Strict),
		WithChainLogger(log),
		WithChainMetrics(deps.Metrics))
	log.Debug("source chain assembled", logger.Any("strategies", chain.Strategies()))
	return chain, nil
}
